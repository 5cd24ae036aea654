// Package attrs reads values out of key-value attribute slices of the form
// [key1, value1, key2, value2, ...], the shape audit events and slog calls use.
package attrs

// ExtractString extracts a string value from a key-value attribute slice.
// Returns empty string if the key is not found or the value is not a string.
func ExtractString(attrs []any, key string) string {
	for i := 0; i < len(attrs)-1; i += 2 {
		k, ok := attrs[i].(string)
		if !ok {
			continue
		}
		if k == key {
			if v, ok := attrs[i+1].(string); ok {
				return v
			}
		}
	}
	return ""
}

// ExtractStrings extracts a []string value from a key-value attribute slice.
// Returns nil if the key is not found or the value is not a []string.
func ExtractStrings(attrs []any, key string) []string {
	for i := 0; i < len(attrs)-1; i += 2 {
		k, ok := attrs[i].(string)
		if !ok {
			continue
		}
		if k == key {
			if v, ok := attrs[i+1].([]string); ok {
				return v
			}
		}
	}
	return nil
}
