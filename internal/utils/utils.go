package utils

import "strings"

// ToStringSlice converts a decoded JSON array into its string members,
// dropping anything that is not a string.
func ToStringSlice(slice []any) []string {
	stringSlice := make([]string, 0)
	for _, v := range slice {
		if s, ok := v.(string); ok {
			stringSlice = append(stringSlice, s)
		}
	}
	return stringSlice
}

// ClaimStrings normalizes a claim value that may be a single string or an
// array of strings (JWT aud and roles claims come in both shapes).
func ClaimStrings(value any) []string {
	switch v := value.(type) {
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case []string:
		return append([]string(nil), v...)
	case []any:
		return ToStringSlice(v)
	default:
		return nil
	}
}

// SplitSpace splits a space-delimited value (the OAuth scope encoding)
// into its non-empty members.
func SplitSpace(s string) []string {
	return strings.Fields(s)
}

func Value[T any](v *T) T {
	if v == nil {
		return *new(T)
	}
	return *v
}

func Ptr[T any](v T) *T {
	return &v
}
