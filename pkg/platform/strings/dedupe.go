// Package strings holds slice helpers shared by request validation and config
// parsing.
package strings

import (
	"strings"
)

// DedupeAndTrim trims each element, drops empty ones and removes duplicates.
// First-seen order is kept and comparison is case-sensitive, so "Passport"
// and "passport" stay distinct document types.
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	return result
}

// SplitList splits a comma separated value such as KAFKA_BROKERS and cleans
// it with DedupeAndTrim. An empty input yields an empty, non-nil slice.
func SplitList(v string) []string {
	return DedupeAndTrim(strings.Split(v, ","))
}
