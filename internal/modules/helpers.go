package modules

import "strings"

// ToStringSlice converts []interface{} (from MCP params) to []string.
// Non-string and blank elements are silently skipped.
func ToStringSlice(v []interface{}) []string {
	out := make([]string, 0, len(v))
	for _, item := range v {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}

// String returns params[key] when it is a string, else "".
func String(params map[string]any, key string) string {
	s, _ := params[key].(string)
	return s
}

// OptionalString returns params[key] and whether it was supplied as a string.
func OptionalString(params map[string]any, key string) (string, bool) {
	s, ok := params[key].(string)
	return s, ok
}

// Bool returns params[key] when it is a boolean, else def.
func Bool(params map[string]any, key string, def bool) bool {
	if b, ok := params[key].(bool); ok {
		return b
	}
	return def
}

// Int returns params[key] as an int and whether it was supplied.
func Int(params map[string]any, key string) (int, bool) {
	f, ok := params[key].(float64)
	if !ok {
		return 0, false
	}
	return int(f), true
}
