package steps

import (
	"context"

	"github.com/itchyny/gojq"
	"github.com/simon020286/go-autopilot/builder"
	"github.com/simon020286/go-autopilot/models"
)

// CallStep invokes any enabled web service function by its full name.
// String parameters may reference context values with a jq path by
// starting with "$", e.g. courseid: "$.course.id". An optional jq query
// reshapes the response before it is exposed as "result".
type CallStep struct {
	*models.Base
	function string
	params   map[string]any
	refs     map[string]*gojq.Code
	query    *gojq.Code
}

func (s *CallStep) Run(ctx context.Context) error {
	params := make(map[string]any, len(s.params))
	for k, v := range s.params {
		params[k] = v
	}
	if len(s.refs) > 0 {
		input := s.View().Plain()
		for k, code := range s.refs {
			v, err := evalQuery(ctx, code, input)
			if err != nil {
				return err
			}
			params[k] = v
		}
	}

	res, err := s.Session().Call(ctx, s.function, params)
	if err != nil {
		return err
	}

	if s.query != nil {
		res, err = evalQuery(ctx, s.query, res)
		if err != nil {
			return err
		}
	}
	s.Expose("result", res)
	return nil
}

func init() {
	builder.RegisterStepType("Call", func(cfg models.StepConfig) (models.Step, error) {
		base, err := models.NewBase(cfg, models.Requirements{Params: []string{"function"}})
		if err != nil {
			return nil, err
		}
		step := &CallStep{
			Base:     base,
			function: base.StringParam("function", ""),
			params:   map[string]any{},
			refs:     map[string]*gojq.Code{},
		}
		if step.function == "" {
			return nil, models.ErrInvalidParam("function must not be empty")
		}
		base.RequireEndpoints(step.function)

		if raw, ok := base.Param("params"); ok && raw != nil && base.MapParam("params") == nil {
			return nil, models.ErrInvalidParam("params must be a mapping")
		}
		for k, v := range base.MapParam("params") {
			if ref, ok := v.(string); ok && len(ref) > 1 && ref[0] == '$' {
				code, err := compileQuery(ref[1:])
				if err != nil {
					return nil, err
				}
				step.refs[k] = code
				continue
			}
			step.params[k] = v
		}

		if q := base.StringParam("query", ""); q != "" {
			if step.query, err = compileQuery(q); err != nil {
				return nil, err
			}
		}
		return step, nil
	})
}
