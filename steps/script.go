package steps

import (
	"context"
	"fmt"

	"github.com/dop251/goja"
	"github.com/simon020286/go-autopilot/builder"
	"github.com/simon020286/go-autopilot/logging"
	"github.com/simon020286/go-autopilot/models"
	"go.uber.org/zap"
)

// ScriptStep runs user JavaScript. The script sees a copy of its context
// as `context` and publishes values with `expose(name, value)` (also
// available as `output`). It has no access to the session.
type ScriptStep struct {
	*models.Base
	program *goja.Program
}

func (s *ScriptStep) Run(ctx context.Context) error {
	logger := logging.FromContext(ctx)

	_, err := runScript(ctx, s.program, func(vm *goja.Runtime) error {
		expose := func(name string, value goja.Value) {
			s.Expose(name, exportValue(value))
		}
		if err := vm.Set("context", s.View().Plain()); err != nil {
			return err
		}
		if err := vm.Set("expose", expose); err != nil {
			return err
		}
		if err := vm.Set("output", expose); err != nil {
			return err
		}
		return vm.Set("log", func(args ...any) {
			logger.Info("script", zap.Any("args", args))
		})
	})
	if err != nil {
		return fmt.Errorf("script %s: %w", s.Info().Name, err)
	}
	return nil
}

func exportValue(v goja.Value) any {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	return v.Export()
}

func init() {
	builder.RegisterStepType("Script", func(cfg models.StepConfig) (models.Step, error) {
		base, err := models.NewBase(cfg, models.Requirements{Params: []string{"script"}})
		if err != nil {
			return nil, err
		}
		program, err := compileScript(cfg.Name, base.StringParam("script", ""))
		if err != nil {
			return nil, err
		}
		return &ScriptStep{Base: base, program: program}, nil
	})
}
