package payload

import "encoding/json"

// Get walks a key path through nested objects. The missing-field case is a
// normal outcome, signalled by ok=false, never a panic.
func Get(obj map[string]any, path ...string) (any, bool) {
	var current any = obj
	for _, key := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// GetString returns the string at path, or "" when absent or not a string.
func GetString(obj map[string]any, path ...string) string {
	v, ok := Get(obj, path...)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// GetInt returns the integer at path. Handles json.Number, float64, and
// numeric strings ("1" appears as a quoted value in several draft shapes).
func GetInt(obj map[string]any, path ...string) (int, bool) {
	v, ok := Get(obj, path...)
	if !ok {
		return 0, false
	}
	return AsInt(v)
}

// GetMap returns the object at path, or nil when absent.
func GetMap(obj map[string]any, path ...string) map[string]any {
	v, ok := Get(obj, path...)
	if !ok {
		return nil
	}
	m, _ := v.(map[string]any)
	return m
}

// GetSlice returns the array at path, or nil when absent.
func GetSlice(obj map[string]any, path ...string) []any {
	v, ok := Get(obj, path...)
	if !ok {
		return nil
	}
	s, _ := v.([]any)
	return s
}

// ValueMatches reports whether the value at path exists and equals expected.
func ValueMatches(obj map[string]any, expected string, path ...string) bool {
	v, ok := Get(obj, path...)
	if !ok {
		return false
	}
	s, ok := v.(string)
	return ok && s == expected
}

// AsInt coerces the value types a numeric field shows up as after decoding.
func AsInt(v any) (int, bool) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), true
		}
	case float64:
		return int(n), true
	case int:
		return n, true
	case string:
		if i, err := json.Number(n).Int64(); err == nil {
			return int(i), true
		}
	}
	return 0, false
}

// IntSlice converts an array of numeric values (or numeric strings) to ints,
// skipping anything non-numeric.
func IntSlice(values []any) []int {
	out := make([]int, 0, len(values))
	for _, v := range values {
		if i, ok := AsInt(v); ok {
			out = append(out, i)
		}
	}
	return out
}
