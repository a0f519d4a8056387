// Package attrs reads values back out of slog-style key/value attribute slices.
package attrs

// ExtractString returns the string value paired with key in a [k1, v1, k2, v2, ...]
// slice, or "" when the key is absent or its value is not a string.
func ExtractString(attrs []any, key string) string {
	for i := 0; i < len(attrs)-1; i += 2 {
		k, ok := attrs[i].(string)
		if !ok || k != key {
			continue
		}
		if v, ok := attrs[i+1].(string); ok {
			return v
		}
	}
	return ""
}
