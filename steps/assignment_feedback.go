package steps

import (
	"context"
	"fmt"

	"github.com/simon020286/go-autopilot/builder"
	"github.com/simon020286/go-autopilot/logging"
	"github.com/simon020286/go-autopilot/models"
	"go.uber.org/zap"
)

// Fields of a grader entry that mod_assign_save_grade rejects.
var gradeOnlyFields = []string{"id", "status", "gradingstatus", "rawtext"}

// AssignmentFeedbackStep uploads the grades published by a grader step.
// The grader output must hold a "grades" list of save_grade parameter
// sets.
type AssignmentFeedbackStep struct {
	*models.Base
	workflowState string
	concurrency   int
}

func (s *AssignmentFeedbackStep) Run(ctx context.Context) error {
	grader, err := s.ContextValue("grader")
	if err != nil {
		return err
	}

	entries := asList(grader["grades"])
	grades := make([]map[string]any, 0, len(entries))
	for i, e := range entries {
		entry := asMap(e)
		if entry == nil {
			return &models.ContextError{ID: "grader", Reason: fmt.Sprintf("grade %d is not an object", i)}
		}
		grade := make(map[string]any, len(entry)+1)
		for k, v := range entry {
			grade[k] = v
		}
		for _, f := range gradeOnlyFields {
			delete(grade, f)
		}
		grade["workflowstate"] = s.workflowState
		grades = append(grades, grade)
	}

	responses, err := saveGrades(ctx, s.Session(), grades, s.concurrency)
	if err != nil {
		return err
	}

	logging.FromContext(ctx).Info("grades saved", zap.Int("count", len(grades)))
	s.Expose("saved", len(grades))
	s.Expose("responses", responses)
	return nil
}

func init() {
	builder.RegisterStepType("Assignment::Feedback", func(cfg models.StepConfig) (models.Step, error) {
		base, err := models.NewBase(cfg, models.Requirements{Endpoints: []string{opSaveGrade}})
		if err != nil {
			return nil, err
		}
		return &AssignmentFeedbackStep{
			Base:          base,
			workflowState: base.StringParam("workflow_state", "released"),
			concurrency:   base.IntParam("concurrency", defaultSaveConcurrency),
		}, nil
	})
}
