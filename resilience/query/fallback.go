package query

import (
	"regexp"
	"strings"

	"github.com/LerianStudio/lib-resilience/resilience/cache"
	"github.com/LerianStudio/lib-resilience/resilience/driver"
)

var (
	readPrefixes = []string{"select", "with", "show", "explain", "describe"}

	countPattern       = regexp.MustCompile(`^select\s+count\s*\(`)
	metricShapePattern = regexp.MustCompile(`(\b|_)(metrics?|logs?|events?)\b`)
)

// IsReadQuery reports whether the trimmed, normalized query text starts with a
// read keyword.
func IsReadQuery(query string) bool {
	normalized := cache.NormalizeQuery(query)
	for _, prefix := range readPrefixes {
		if strings.HasPrefix(normalized, prefix) {
			return true
		}
	}

	return false
}

// FallbackRows synthesizes a safe default response for a recognized query
// shape, used when the circuit is open and no cached result exists.
//
// Recognized shapes:
//   - a trivial connectivity probe ("SELECT 1") -> [{"1": 1}]
//   - a COUNT aggregation -> [{"count": 0}]
//   - metric/log/event-shaped queries -> empty sequence
//
// The boolean reports whether the shape was recognized; unrecognized queries
// get (nil, false) and the caller decides how to degrade.
func FallbackRows(query string) (driver.Rows, bool) {
	normalized := strings.TrimSuffix(cache.NormalizeQuery(query), ";")

	if normalized == "select 1" {
		return driver.Rows{{"1": 1}}, true
	}

	if countPattern.MatchString(normalized) {
		return driver.Rows{{"count": 0}}, true
	}

	if metricShapePattern.MatchString(normalized) {
		return driver.Rows{}, true
	}

	return nil, false
}

const maxLoggedQueryLen = 120

// truncateQuery shortens query text for log lines.
func truncateQuery(query string) string {
	query = strings.TrimSpace(query)
	if len(query) <= maxLoggedQueryLen {
		return query
	}

	return query[:maxLoggedQueryLen] + "..."
}
