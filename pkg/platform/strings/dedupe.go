// Package strings provides string helpers for configuration values.
package strings

import (
	"strings"
)

// DedupeAndTrim trims each value and drops empties and repeats. Order is preserved.
//
//	DedupeAndTrim([]string{"  redpanda:9092 ", "kafka:9092", "redpanda:9092", ""})
//	// []string{"redpanda:9092", "kafka:9092"}
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
		if _, ok := seen[trimmed]; !ok {
			seen[trimmed] = struct{}{}
			result = append(result, trimmed)
		}
	}

	return result
}

// SplitList splits a comma separated setting such as KAFKA_BROKERS or
// CORS_ALLOWED_ORIGINS. A blank input yields nil.
func SplitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return DedupeAndTrim(strings.Split(raw, ","))
}
