package dedup

import (
	"regexp"
	"strings"
)

// Quality filtering is a separate stage from dedup proper: it rejects
// advisory text that should never reach the agent regardless of
// novelty. Each rejection carries its specific reason.

var (
	// Unfilled template slots like "{tool_name}" or "<insert reason>".
	templateSlot = regexp.MustCompile(`\{[a-z_]+\}|<[a-z_ ]+>`)

	// Raw operational telemetry that leaked into advisory text.
	telemetryMarkers = []string{
		"traceback (most recent call last)",
		"exit code:",
		"errno",
		"stack trace",
		"http/1.1",
		"connection refused",
	}

	// Imperative claims an advisory must never make on its own
	// authority. These are suppress-worthy even when well-intended.
	unsafeImperatives = []string{
		"delete all",
		"rm -rf",
		"force push",
		"push --force",
		"disable tests",
		"skip all tests",
		"ignore the error",
		"commit directly to main",
	}
)

// QualityFilter vets advisory text before emission. It is pure and
// never raises; callers treat a rejection as "stay silent".
func QualityFilter(text string) Verdict {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return rejected("quality", "filter", "empty_text")
	}

	lower := strings.ToLower(trimmed)

	if templateSlot.MatchString(lower) {
		return rejected("quality", "filter", "unfilled_template")
	}
	for _, marker := range telemetryMarkers {
		if strings.Contains(lower, marker) {
			return rejected("quality", "filter", "raw_telemetry")
		}
	}
	for _, imp := range unsafeImperatives {
		if strings.Contains(lower, imp) {
			return rejected("quality", "filter", "unsafe_imperative")
		}
	}
	return allowed()
}
