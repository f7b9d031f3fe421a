package steps

import (
	"fmt"

	"github.com/simon020286/go-autopilot/models"
)

// JSON shape helpers for decoded responses.

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asList(v any) []any {
	switch val := v.(type) {
	case []any:
		return val
	case []map[string]any:
		out := make([]any, len(val))
		for i, m := range val {
			out[i] = m
		}
		return out
	default:
		return nil
	}
}

func asString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return fmt.Sprintf("%.0f", val)
	default:
		return fmt.Sprint(val)
	}
}

// sameID compares two identifiers that may come from JSON (float64),
// YAML (int) or user input (string).
func sameID(a, b any) bool {
	return a != nil && b != nil && asString(a) == asString(b)
}

// requireID returns the "id" field of the output bound to alias.
func requireID(view models.ContextView, alias string) (any, error) {
	out, ok := view.Get(alias)
	if !ok {
		return nil, models.ErrContextUnavailable(alias)
	}
	id, ok := out["id"]
	if !ok || id == nil {
		return nil, &models.ContextError{ID: alias, Reason: "has no id field"}
	}
	return id, nil
}
