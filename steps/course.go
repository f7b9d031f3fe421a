package steps

import (
	"context"
	"fmt"

	"github.com/simon020286/go-autopilot/builder"
	"github.com/simon020286/go-autopilot/logging"
	"github.com/simon020286/go-autopilot/models"
	"go.uber.org/zap"
)

const opEnrolledCourses = "core_course_get_enrolled_courses_by_timeline_classification"

// CourseStep finds one enrolled course by short or full name. Its output
// is the course record itself, so later steps read course.id directly.
type CourseStep struct {
	*models.Base
	name   string
	status string
}

func (s *CourseStep) Run(ctx context.Context) error {
	res, err := s.Session().Call(ctx, opEnrolledCourses, map[string]any{
		"classification": s.status,
	})
	if err != nil {
		return err
	}

	var matches []map[string]any
	for _, c := range asList(asMap(res)["courses"]) {
		course := asMap(c)
		if course == nil {
			continue
		}
		if course["shortname"] == s.name || course["fullname"] == s.name {
			matches = append(matches, course)
		}
	}

	switch len(matches) {
	case 0:
		return models.ErrDomain(opEnrolledCourses, models.CodeNotFound, fmt.Sprintf("course %q not found", s.name))
	case 1:
	default:
		return models.ErrDomain(opEnrolledCourses, models.CodeAmbiguous, fmt.Sprintf("%d courses match %q", len(matches), s.name))
	}

	course := matches[0]
	delete(course, "courseimage")

	logging.FromContext(ctx).Info("course found", zap.Any("course_id", course["id"]), zap.Any("shortname", course["shortname"]))
	s.ReplaceOutput(course)
	return nil
}

func init() {
	builder.RegisterStepType("Course", func(cfg models.StepConfig) (models.Step, error) {
		base, err := models.NewBase(cfg, models.Requirements{
			Params:    []string{"name"},
			Endpoints: []string{opEnrolledCourses},
		})
		if err != nil {
			return nil, err
		}
		return &CourseStep{
			Base:   base,
			name:   base.StringParam("name", ""),
			status: base.StringParam("status", "inprogress"),
		}, nil
	})
}
