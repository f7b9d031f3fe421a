package steps

import (
	"context"

	"github.com/simon020286/go-autopilot/builder"
	"github.com/simon020286/go-autopilot/logging"
	"github.com/simon020286/go-autopilot/models"
	"go.uber.org/zap"
)

// AssignmentSubmissionStep loads the submitted attempts of one assignment
// of the course in its context.
type AssignmentSubmissionStep struct {
	*models.Base
	name string
}

func (s *AssignmentSubmissionStep) Run(ctx context.Context) error {
	courseID, err := requireID(s.View(), "course")
	if err != nil {
		return err
	}

	assignment, err := findAssignment(ctx, s.Session(), courseID, s.name)
	if err != nil {
		return err
	}
	if err := checkSubmissionsEnabled(assignment); err != nil {
		return err
	}

	submissions, err := fetchSubmissions(ctx, s.Session(), assignment["id"])
	if err != nil {
		return err
	}

	logging.FromContext(ctx).Info("submissions loaded",
		zap.Any("assignment", assignment["id"]),
		zap.Int("count", len(submissions)))

	s.Expose("assignment", assignment["id"])
	s.Expose("submissions", submissions)
	return nil
}

func init() {
	builder.RegisterStepType("Assignment::Submission", func(cfg models.StepConfig) (models.Step, error) {
		base, err := models.NewBase(cfg, models.Requirements{
			Params:    []string{"name"},
			Endpoints: []string{opGetAssignments, opGetSubmissions},
		})
		if err != nil {
			return nil, err
		}
		return &AssignmentSubmissionStep{Base: base, name: base.StringParam("name", "")}, nil
	})
}
