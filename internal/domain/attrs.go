package domain

// AttrMap is the open extension bag on an event. Values are restricted to the
// JSON-representable set: string, bool, float64, int64, []string, []any, and
// nested map[string]any. Accessors tolerate the float64/int64 ambiguity that
// JSON round-trips introduce.
type AttrMap map[string]any

// String returns the string at key, or "" when absent or not a string.
func (m AttrMap) String(key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// Bool returns the bool at key, defaulting to false.
func (m AttrMap) Bool(key string) bool {
	if v, ok := m[key].(bool); ok {
		return v
	}
	return false
}

// Int64 returns the integer at key. JSON decoding stores numbers as float64,
// so both representations are accepted.
func (m AttrMap) Int64(key string) int64 {
	switch v := m[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

// Float64 returns the float at key, or 0.
func (m AttrMap) Float64(key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	}
	return 0
}

// StringSlice returns the string list at key. []any elements are converted;
// non-string elements are skipped.
func (m AttrMap) StringSlice(key string) []string {
	switch v := m[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, el := range v {
			if s, ok := el.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Has reports whether key is present.
func (m AttrMap) Has(key string) bool {
	_, ok := m[key]
	return ok
}

// Set assigns key, allocating the map if needed, and returns the map so a nil
// receiver can be replaced by the result.
func (m AttrMap) Set(key string, value any) AttrMap {
	if m == nil {
		m = make(AttrMap)
	}
	m[key] = value
	return m
}

// Copy returns a deep copy. Nested maps and slices are duplicated; scalar
// values are shared (they are immutable).
func (m AttrMap) Copy() AttrMap {
	if m == nil {
		return nil
	}
	dup := make(AttrMap, len(m))
	for k, v := range m {
		dup[k] = copyValue(v)
	}
	return dup
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		dup := make(map[string]any, len(t))
		for k, el := range t {
			dup[k] = copyValue(el)
		}
		return dup
	case AttrMap:
		return map[string]any(t.Copy())
	case []any:
		dup := make([]any, len(t))
		for i, el := range t {
			dup[i] = copyValue(el)
		}
		return dup
	case []string:
		dup := make([]string, len(t))
		copy(dup, t)
		return dup
	default:
		return v
	}
}
