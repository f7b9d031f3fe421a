package autopilot

import (
	"github.com/simon020286/go-autopilot/config"
	_ "github.com/simon020286/go-autopilot/steps"
)

// BuildFromConfig builds an engine from a workflow spec. Every step is
// constructed here, so unknown types and missing parameters are reported
// before any remote call.
func BuildFromConfig(spec *config.WorkflowSpec, opts ...Option) (*Engine, error) {
	e := newEngine(spec.Environment.URL, opts...)

	steps, err := e.registry.BuildSteps(spec)
	if err != nil {
		return nil, err
	}
	e.steps = steps
	return e, nil
}
