package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/simon020286/go-autopilot/builder"
	"github.com/simon020286/go-autopilot/logging"
	"github.com/simon020286/go-autopilot/models"
	"go.uber.org/zap"
)

// LogStep dumps its resolved context. It is meant for inspecting what
// earlier steps published while writing a workflow.
type LogStep struct {
	*models.Base
	message string
	out     io.Writer
}

func (s *LogStep) Run(ctx context.Context) error {
	plain := s.View().Plain()
	logging.FromContext(ctx).Info(s.message, zap.Strings("aliases", s.View().Aliases()))

	if s.out == nil {
		return nil
	}
	b, err := json.MarshalIndent(plain, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode context: %w", err)
	}
	_, err = fmt.Fprintln(s.out, string(b))
	return err
}

func init() {
	builder.RegisterStepType("Log", func(cfg models.StepConfig) (models.Step, error) {
		base, err := models.NewBase(cfg, models.Requirements{})
		if err != nil {
			return nil, err
		}
		var out io.Writer
		switch target := base.StringParam("output", "stdout"); target {
		case "stdout":
			out = os.Stdout
		case "stderr":
			out = os.Stderr
		case "none":
		default:
			return nil, models.ErrInvalidParam("Log output must be stdout, stderr or none, got %q", target)
		}
		return &LogStep{
			Base:    base,
			message: base.StringParam("message", "context"),
			out:     out,
		}, nil
	})
}
