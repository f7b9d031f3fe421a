package steps

import (
	"context"
	"fmt"

	"github.com/simon020286/go-autopilot/builder"
	"github.com/simon020286/go-autopilot/logging"
	"github.com/simon020286/go-autopilot/models"
	"go.uber.org/zap"
)

const (
	opEnrolledUsers   = "core_enrol_get_enrolled_users"
	opCourseGroups    = "core_group_get_course_groups"
	opGroupMembers    = "core_group_get_group_members"
	opAddGroupMembers = "core_group_add_group_members"
)

// GroupStep loads the groups of the course in its context together with
// their members and the enrolled users. With a "members" parameter it
// first adds users to groups. Each entry names a group (id or name) and a
// user (id, username or email):
//
//	members:
//	  - { group: "Team A", user: "alice@example.com" }
type GroupStep struct {
	*models.Base
	members []any
}

func (s *GroupStep) Run(ctx context.Context) error {
	logger := logging.FromContext(ctx)

	courseID, err := requireID(s.View(), "course")
	if err != nil {
		return err
	}

	users, err := s.Session().Invoke(ctx, "core_enrol", "get", "enrolled_users", map[string]any{"courseid": courseID})
	if err != nil {
		return err
	}
	groups, err := s.Session().Invoke(ctx, "core_group", "get", "course_groups", map[string]any{"courseid": courseID})
	if err != nil {
		return err
	}

	if len(s.members) > 0 {
		params, err := s.memberParams(asList(groups), asList(users))
		if err != nil {
			return err
		}
		if _, err := s.Session().Invoke(ctx, "core_group", "add", "group_members", params); err != nil {
			return err
		}
		logger.Info("group members added", zap.Int("count", len(s.members)))
	}

	members := []any{}
	if groupList := asList(groups); len(groupList) > 0 {
		params := make(map[string]any, len(groupList))
		for i, g := range groupList {
			params[fmt.Sprintf("groupids[%d]", i)] = asMap(g)["id"]
		}
		res, err := s.Session().Invoke(ctx, "core_group", "get", "group_members", params)
		if err != nil {
			return err
		}
		members = asList(res)
	}

	logger.Info("groups loaded", zap.Int("groups", len(asList(groups))), zap.Int("users", len(asList(users))))
	s.Expose("groups", groups)
	s.Expose("members", members)
	s.Expose("users", users)
	return nil
}

func (s *GroupStep) memberParams(groups, users []any) (map[string]any, error) {
	params := make(map[string]any, 2*len(s.members))
	for i, m := range s.members {
		entry := asMap(m)
		if entry == nil {
			return nil, models.ErrInvalidParam("members[%d] must be a mapping with group and user", i)
		}
		group := findBy(groups, entry["group"], "id", "name")
		if group == nil {
			return nil, models.ErrDomain(opCourseGroups, models.CodeNotFound, fmt.Sprintf("group %q not found", asString(entry["group"])))
		}
		user := findBy(users, entry["user"], "id", "username", "email")
		if user == nil {
			return nil, models.ErrDomain(opEnrolledUsers, models.CodeNotFound, fmt.Sprintf("user %q is not enrolled", asString(entry["user"])))
		}
		params[fmt.Sprintf("members[%d][groupid]", i)] = group["id"]
		params[fmt.Sprintf("members[%d][userid]", i)] = user["id"]
	}
	return params, nil
}

// findBy returns the first record whose value under one of keys matches
// want.
func findBy(records []any, want any, keys ...string) map[string]any {
	if want == nil {
		return nil
	}
	for _, r := range records {
		record := asMap(r)
		for _, k := range keys {
			if sameID(record[k], want) {
				return record
			}
		}
	}
	return nil
}

func init() {
	builder.RegisterStepType("Group", func(cfg models.StepConfig) (models.Step, error) {
		base, err := models.NewBase(cfg, models.Requirements{
			Endpoints: []string{opEnrolledUsers, opCourseGroups, opGroupMembers},
		})
		if err != nil {
			return nil, err
		}
		step := &GroupStep{Base: base}
		if raw, ok := base.Param("members"); ok && raw != nil {
			step.members = asList(raw)
			if step.members == nil {
				return nil, models.ErrInvalidParam("members must be a list")
			}
			base.RequireEndpoints(opAddGroupMembers)
		}
		return step, nil
	})
}
