package steps

import (
	"context"

	"github.com/itchyny/gojq"
	"github.com/simon020286/go-autopilot/models"
)

// compileQuery parses and compiles a jq expression. Environment access is
// disabled.
func compileQuery(expression string) (*gojq.Code, error) {
	query, err := gojq.Parse(expression)
	if err != nil {
		return nil, models.ErrInvalidParam("jq parse error in %q: %v", expression, err)
	}
	code, err := gojq.Compile(query,
		gojq.WithEnvironLoader(func() []string { return nil }),
	)
	if err != nil {
		return nil, models.ErrInvalidParam("jq compile error in %q: %v", expression, err)
	}
	return code, nil
}

// evalQuery runs code against input. One result is returned as is,
// several are collected in a slice.
func evalQuery(ctx context.Context, code *gojq.Code, input any) (any, error) {
	iter := code.RunWithContext(ctx, normalizeForJQ(input))

	var results []any
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := v.(error); isErr {
			return nil, models.ErrDomain("", "jqerror", err.Error())
		}
		results = append(results, v)
	}

	switch len(results) {
	case 0:
		return nil, nil
	case 1:
		return results[0], nil
	default:
		return results, nil
	}
}

// normalizeForJQ converts Go numbers to float64, the only number type
// gojq accepts besides int and big.Int.
func normalizeForJQ(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalizeForJQ(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeForJQ(item)
		}
		return out
	case []map[string]any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeForJQ(item)
		}
		return out
	case int64:
		return float64(val)
	case int32:
		return float64(val)
	case float32:
		return float64(val)
	default:
		return v
	}
}
