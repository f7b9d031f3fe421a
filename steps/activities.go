package steps

import (
	"context"

	"github.com/simon020286/go-autopilot/builder"
	"github.com/simon020286/go-autopilot/models"
)

const opCourseContents = "core_course_get_contents"

// ActivitiesStep lists the sections of the course in its context and the
// activities inside them, optionally restricted to one module type.
type ActivitiesStep struct {
	*models.Base
	modname string
}

func (s *ActivitiesStep) Run(ctx context.Context) error {
	courseID, err := requireID(s.View(), "course")
	if err != nil {
		return err
	}

	res, err := s.Session().Invoke(ctx, "core_course", "get", "contents", map[string]any{
		"courseid": courseID,
	})
	if err != nil {
		return err
	}

	sections := asList(res)
	modules := make([]any, 0)
	for _, sec := range sections {
		section := asMap(sec)
		for _, m := range asList(section["modules"]) {
			module := asMap(m)
			if module == nil {
				continue
			}
			if s.modname != "" && module["modname"] != s.modname {
				continue
			}
			entry := make(map[string]any, len(module)+1)
			for k, v := range module {
				entry[k] = v
			}
			entry["section"] = section["name"]
			modules = append(modules, entry)
		}
	}

	s.Expose("sections", sections)
	s.Expose("modules", modules)
	return nil
}

func init() {
	builder.RegisterStepType("Activities", func(cfg models.StepConfig) (models.Step, error) {
		base, err := models.NewBase(cfg, models.Requirements{Endpoints: []string{opCourseContents}})
		if err != nil {
			return nil, err
		}
		return &ActivitiesStep{Base: base, modname: base.StringParam("modname", "")}, nil
	})
}
