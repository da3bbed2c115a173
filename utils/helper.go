package utils

import (
	"strings"
)

// NormalizeSpace collapses runs of whitespace to single spaces and trims the
// edges. Persisted sheet headers routinely carry stray spaces and line breaks.
func NormalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func SplitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func UniqueSlice[T comparable](values []T) []T {
	seen := make(map[T]struct{}, len(values))
	out := make([]T, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
