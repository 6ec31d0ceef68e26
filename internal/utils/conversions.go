package utils

import (
	"slices"
	"strings"
)

// SortedSet returns the distinct values sorted ascending. The result is never nil
// so that it always serializes as a JSON array.
func SortedSet(values []string) []string {
	set := make([]string, 0, len(values))
	set = append(set, values...)
	slices.Sort(set)
	return slices.Compact(set)
}

// HasBlank reports whether any value is empty once surrounding whitespace is removed.
func HasBlank(values []string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			return true
		}
	}
	return false
}

// ContainsAll reports whether have contains every value in want.
func ContainsAll(have []string, want ...string) bool {
	for _, w := range want {
		if !slices.Contains(have, w) {
			return false
		}
	}
	return true
}
