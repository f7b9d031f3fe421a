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

// AssessmentScriptStep grades the submissions of an assignment with a user
// script. The script body runs once per submission and only sees a
// `submission` object:
//
//	submission.text      online text as submitted
//	submission.raw_text  the same text without markup
//	submission.data      flattened plugin data (files, text, format)
//	submission.score     set to grade the submission
//	submission.feedback  feedback comment sent with the grade
//	submission.expose(name, value)
//
// Submissions without a score are not graded.
type AssessmentScriptStep struct {
	*models.Base
	name          string
	program       *goja.Program
	assessAll     bool
	skipFeedback  bool
	workflowState string
	concurrency   int
}

type assessment struct {
	score    any
	feedback string
}

func (s *AssessmentScriptStep) Run(ctx context.Context) error {
	logger := logging.FromContext(ctx)

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
	assignmentID := assignment["id"]

	submissions, err := fetchSubmissions(ctx, s.Session(), assignmentID)
	if err != nil {
		return err
	}

	pending := make([]map[string]any, 0, len(submissions))
	for _, raw := range submissions {
		sub := asMap(raw)
		if sub == nil {
			continue
		}
		if s.assessAll || sub["gradingstatus"] == "notgraded" {
			pending = append(pending, sub)
		}
	}
	logger.Info("assessing submissions", zap.Int("pending", len(pending)), zap.Int("total", len(submissions)))

	results, err := s.assess(ctx, pending)
	if err != nil {
		return err
	}

	grades := make([]map[string]any, 0, len(pending))
	for i, sub := range pending {
		if results[i].score == nil {
			continue
		}
		grades = append(grades, map[string]any{
			"assignmentid":  assignmentID,
			"userid":        sub["userid"],
			"attemptnumber": sub["attemptnumber"],
			"addattempt":    0,
			"applytoall":    1,
			"workflowstate": s.workflowState,
			"grade":         results[i].score,
			"plugindata[assignfeedbackcomments_editor][format]": formatMarkdown,
			"plugindata[assignfeedbackcomments_editor][text]":   results[i].feedback,
		})
	}

	if s.skipFeedback {
		logger.Info("feedback upload skipped", zap.Int("grades", len(grades)))
	} else if _, err := saveGrades(ctx, s.Session(), grades, s.concurrency); err != nil {
		return err
	}

	s.Expose("assignment", assignmentID)
	s.Expose("grades", grades)
	return nil
}

// assess runs the script for every submission in a single runtime.
func (s *AssessmentScriptStep) assess(ctx context.Context, submissions []map[string]any) ([]assessment, error) {
	vm := newRuntime()
	stop := interruptOnDone(ctx, vm)
	defer stop()

	value, err := vm.RunProgram(s.program)
	if err != nil {
		return nil, scriptFailure(ctx, err)
	}
	fn, ok := goja.AssertFunction(value)
	if !ok {
		return nil, fmt.Errorf("assessment script did not compile to a function")
	}

	results := make([]assessment, len(submissions))
	for i, sub := range submissions {
		proxy, err := s.submissionObject(vm, sub, &results[i])
		if err != nil {
			return nil, fmt.Errorf("failed to prepare submission %s: %w", asString(sub["userid"]), err)
		}
		if _, err := fn(vm.NewObject(), proxy); err != nil {
			return nil, fmt.Errorf("assessing user %s: %w", asString(sub["userid"]), scriptFailure(ctx, err))
		}
	}
	return results, nil
}

func (s *AssessmentScriptStep) submissionObject(vm *goja.Runtime, sub map[string]any, result *assessment) (*goja.Object, error) {
	data := asMap(sub["data"])
	obj := vm.NewObject()

	getter := func(get func() any) goja.Value {
		return vm.ToValue(func(goja.FunctionCall) goja.Value {
			return vm.ToValue(get())
		})
	}
	setter := func(set func(v goja.Value)) goja.Value {
		return vm.ToValue(func(call goja.FunctionCall) goja.Value {
			set(call.Argument(0))
			return goja.Undefined()
		})
	}

	props := []struct {
		name string
		get  goja.Value
		set  goja.Value
	}{
		{"text", getter(func() any { return data["text"] }), nil},
		{"raw_text", getter(func() any { return data["rawtext"] }), nil},
		{"data", getter(func() any { return models.DeepCopy(data) }), nil},
		{"score", getter(func() any { return result.score }), setter(func(v goja.Value) {
			result.score = exportValue(v)
		})},
		{"feedback", getter(func() any { return result.feedback }), setter(func(v goja.Value) {
			result.feedback = ""
			if val := exportValue(v); val != nil {
				result.feedback = fmt.Sprint(val)
			}
		})},
	}
	for _, p := range props {
		if err := obj.DefineAccessorProperty(p.name, p.get, p.set, goja.FLAG_FALSE, goja.FLAG_TRUE); err != nil {
			return nil, err
		}
	}

	err := obj.Set("expose", func(name string, value goja.Value) {
		s.Expose(name, exportValue(value))
	})
	return obj, err
}

func init() {
	builder.RegisterStepType("Assignment::AssessmentScript", func(cfg models.StepConfig) (models.Step, error) {
		base, err := models.NewBase(cfg, models.Requirements{
			Params:    []string{"name", "script"},
			Endpoints: []string{opGetAssignments, opGetSubmissions},
		})
		if err != nil {
			return nil, err
		}

		program, err := compileFunction(base.Info().Name, base.StringParam("script", ""), false, "submission")
		if err != nil {
			return nil, err
		}

		state := base.StringParam("moodle_state", "released")
		state = base.StringParam("workflow_state", state)

		step := &AssessmentScriptStep{
			Base:          base,
			name:          base.StringParam("name", ""),
			program:       program,
			assessAll:     base.BoolParam("assess_all", false),
			skipFeedback:  base.BoolParam("skip_feedback", false),
			workflowState: state,
			concurrency:   base.IntParam("concurrency", defaultSaveConcurrency),
		}
		if !step.skipFeedback {
			base.RequireEndpoints(opSaveGrade)
		}
		return step, nil
	})
}
