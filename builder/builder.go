package builder

import (
	"fmt"

	"github.com/simon020286/go-autopilot/config"
	"github.com/simon020286/go-autopilot/models"
)

// CreateStep resolves the step type and builds the step. The type lookup
// happens first, so an unknown type never reaches parameter validation.
func (r *Registry) CreateStep(cfg models.StepConfig) (models.Step, error) {
	factory, err := r.Lookup(cfg.Type)
	if err != nil {
		return nil, err
	}
	step, err := factory(cfg)
	if err != nil {
		return nil, err
	}
	if step == nil {
		return nil, fmt.Errorf("factory for %s returned no step", cfg.Type)
	}
	return step, nil
}

// CreateStep builds a step with the default registry
func CreateStep(cfg models.StepConfig) (models.Step, error) {
	return defaultRegistry.CreateStep(cfg)
}

// BuildSteps builds every step of spec in order. The first failure is
// returned wrapped in a StepError carrying the step position.
func (r *Registry) BuildSteps(spec *config.WorkflowSpec) ([]models.Step, error) {
	steps := make([]models.Step, 0, len(spec.Workflow))
	for i, s := range spec.Workflow {
		cfg := s.StepConfig()
		step, err := r.CreateStep(cfg)
		if err != nil {
			return nil, models.WrapStepError(i, models.StepInfo{Type: cfg.Type, Name: cfg.Name, ID: cfg.ID}, err)
		}
		steps = append(steps, step)
	}
	return steps, nil
}
