package moodle

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// EncodeParams serializes parameters the way the web service expects:
// keys are written verbatim (bracketed keys like "ids[0]" must not be
// escaped), values are escaped like JavaScript's encodeURIComponent.
// Pairs are sorted by key.
func EncodeParams(params map[string]any) string {
	if len(params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+EscapeComponent(formatValue(params[k])))
	}
	return strings.Join(pairs, "&")
}

// DecodeParams parses an encoded parameter string back into its pairs.
func DecodeParams(encoded string) (map[string]string, error) {
	out := map[string]string{}
	if encoded == "" {
		return out, nil
	}
	for _, pair := range strings.Split(encoded, "&") {
		key, value, _ := strings.Cut(pair, "=")
		decoded, err := url.PathUnescape(value)
		if err != nil {
			return nil, fmt.Errorf("decode value of %q: %w", key, err)
		}
		out[key] = decoded
	}
	return out, nil
}

// EscapeComponent percent-encodes everything except the characters
// encodeURIComponent leaves alone: A-Z a-z 0-9 - _ . ! ~ * ' ( )
func EscapeComponent(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if unreserved(c) {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, "%%%02X", c)
	}
	return b.String()
}

func unreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	switch c {
	case '-', '_', '.', '!', '~', '*', '\'', '(', ')':
		return true
	}
	return false
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case json.Number:
		return val.String()
	case []string:
		return strings.Join(val, ",")
	case []any:
		// lists flatten the way Array.prototype.toString does
		items := make([]string, len(val))
		for i, item := range val {
			items[i] = formatValue(item)
		}
		return strings.Join(items, ",")
	case map[string]any:
		return "[object Object]"
	default:
		return fmt.Sprint(val)
	}
}
