package steps

import (
	"context"

	"github.com/itchyny/gojq"
	"github.com/simon020286/go-autopilot/builder"
	"github.com/simon020286/go-autopilot/models"
)

// JqStep evaluates a jq query over its resolved context, keyed by alias.
// The result is exposed as "result", or under the name given by "as".
type JqStep struct {
	*models.Base
	code *gojq.Code
	as   string
}

func (s *JqStep) Run(ctx context.Context) error {
	res, err := evalQuery(ctx, s.code, s.View().Plain())
	if err != nil {
		return err
	}
	s.Expose(s.as, res)
	return nil
}

func init() {
	builder.RegisterStepType("Jq", func(cfg models.StepConfig) (models.Step, error) {
		base, err := models.NewBase(cfg, models.Requirements{Params: []string{"query"}})
		if err != nil {
			return nil, err
		}
		code, err := compileQuery(base.StringParam("query", ""))
		if err != nil {
			return nil, err
		}
		return &JqStep{Base: base, code: code, as: base.StringParam("as", "result")}, nil
	})
}
