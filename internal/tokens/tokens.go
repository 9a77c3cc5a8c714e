// Package tokens estimates how many model tokens a piece of text occupies.
package tokens

import "strings"

// charsPerToken is the heuristic ratio used by Heuristic.
// 1 token ~ 4 characters is accurate enough for tier mass accounting.
const charsPerToken = 4

// truncatedMarker is appended when content is cut to fit a budget.
const truncatedMarker = "\n[truncated]"

// Estimator reports the token count of content. Implementations must be pure.
type Estimator interface {
	Estimate(content string) int
}

// EstimatorFunc adapts a plain function to Estimator.
type EstimatorFunc func(content string) int

// Estimate calls f(content).
func (f EstimatorFunc) Estimate(content string) int { return f(content) }

// Heuristic estimates one token per four bytes, rounding up.
type Heuristic struct{}

// Estimate implements Estimator.
func (Heuristic) Estimate(content string) int {
	if len(content) == 0 {
		return 0
	}
	return (len(content) + charsPerToken - 1) / charsPerToken
}

// Default is the estimator used when a caller supplies none.
func Default() Estimator { return Heuristic{} }

// Truncate cuts s so its heuristic size fits within maxTokens, breaking at
// the last newline before the cut and appending a [truncated] marker.
// A non-positive maxTokens returns s unchanged.
func Truncate(s string, maxTokens int) string {
	if maxTokens <= 0 {
		return s
	}
	maxChars := maxTokens * charsPerToken
	if len(s) <= maxChars {
		return s
	}
	if maxChars <= len(truncatedMarker) {
		return ""
	}
	cutoff := maxChars - len(truncatedMarker)
	if idx := strings.LastIndex(s[:cutoff], "\n"); idx > 0 {
		cutoff = idx
	}
	return s[:cutoff] + truncatedMarker
}
