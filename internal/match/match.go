// Package match filters and ranks normalized candidates against an intent
// spec's required/preferred/excluded terms.
package match

import (
	"strings"

	"github.com/quibble-ai/quibble/internal/intent"
	"github.com/quibble-ai/quibble/internal/normalize"
)

const (
	requiredWeight  = 6
	preferredWeight = 2
	excludedWeight  = -7
)

// rejected marks a candidate that must not be selected regardless of score.
const rejected = -1 << 30

// Score rates one title against the spec. The second return is false when the
// candidate is rejected outright: in strict mode any missing required term
// rejects, and in every mode an excluded term rejects unless a required term
// is also present to tie the candidate to the request.
func Score(title string, spec intent.Spec, strict bool) (int, bool) {
	lower := strings.ToLower(title)

	matchedRequired := 0
	for _, term := range spec.Required {
		if strings.Contains(lower, term) {
			matchedRequired++
		}
	}
	if strict && matchedRequired < len(spec.Required) {
		return rejected, false
	}

	matchedExcluded := 0
	for _, term := range spec.Excluded {
		if strings.Contains(lower, term) {
			matchedExcluded++
		}
	}
	if matchedExcluded > 0 && matchedRequired == 0 {
		return rejected, false
	}

	score := matchedRequired*requiredWeight + matchedExcluded*excludedWeight
	for _, term := range spec.Preferred {
		if strings.Contains(lower, term) {
			score += preferredWeight
		}
	}
	return score, true
}

// SelectBest picks the highest-scoring non-rejected candidate. Ties keep the
// first-encountered candidate so selection is stable in source order.
func SelectBest(products []normalize.Product, spec intent.Spec, strict bool) (normalize.Product, bool) {
	best := normalize.Product{}
	bestScore := rejected
	found := false
	for _, p := range products {
		score, ok := Score(p.Title, spec, strict)
		if !ok {
			continue
		}
		if !found || score > bestScore {
			best, bestScore, found = p, score, true
		}
	}
	return best, found
}
