// Package suggest provides fuzzy nearest-name lookup used to enrich
// error messages. It never changes control flow: callers attach the
// result to an error they were raising anyway.
package suggest

import (
	"fmt"
	"sort"
	"strings"

	"github.com/agext/levenshtein"
)

// Default similarity thresholds. Column names tend to be longer and
// typo-dense, so they get the stricter cutoff.
const (
	ColumnThreshold = 0.6
	NameThreshold   = 0.5
)

// Closest returns the candidate most similar to name, provided its
// similarity reaches the threshold. The bool reports whether any
// candidate qualified.
func Closest(name string, candidates []string, threshold float64) (string, bool) {
	best, bestScore := "", 0.0
	for _, c := range candidates {
		score := levenshtein.Match(strings.ToLower(name), strings.ToLower(c), nil)
		if score > bestScore {
			best, bestScore = c, score
		}
	}
	if bestScore < threshold {
		return "", false
	}
	return best, true
}

// ForColumn formats the message body for an unknown dataset column.
func ForColumn(column string, available []string) string {
	msg := fmt.Sprintf("column %q not found in data", column)
	if hit, ok := Closest(column, available, ColumnThreshold); ok {
		msg += fmt.Sprintf(". Did you mean %q?", hit)
	}
	sorted := append([]string(nil), available...)
	sort.Strings(sorted)
	return msg + " Available columns: " + strings.Join(sorted, ", ")
}

// ForName formats the message body for an unknown registry entry
// (geometry type, theme, scale and so on).
func ForName(kind, name string, available []string) string {
	msg := fmt.Sprintf("unknown %s %q", kind, name)
	if hit, ok := Closest(name, available, NameThreshold); ok {
		msg += fmt.Sprintf(". Did you mean %q?", hit)
	}
	sorted := append([]string(nil), available...)
	sort.Strings(sorted)
	return msg + ". Available: " + strings.Join(sorted, ", ")
}
