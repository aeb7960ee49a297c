// Package intent builds the filtering contract for one buyer request.
package intent

import (
	"fmt"
	"strings"

	"github.com/quibble-ai/quibble/internal/registry"
)

const (
	// MaxTermLength caps a single normalized term.
	MaxTermLength = 24
	// MaxTerms caps each term set.
	MaxTerms = 8
)

// Plan is the loosely structured classification of a buyer's free text,
// produced by an LLM provider or the heuristic fallback. It is sanitized into
// a Spec before anything downstream touches it.
type Plan struct {
	Category  string   `json:"category"`
	Item      string   `json:"item"`
	Query     string   `json:"query"`
	Required  []string `json:"required_terms"`
	Preferred []string `json:"preferred_terms"`
	Excluded  []string `json:"excluded_terms"`
	Summary   string   `json:"summary"`
}

// Spec is the immutable search contract for one request. All term sets are
// lowercase, deduplicated and bounded.
type Spec struct {
	Category  registry.Category
	Item      string
	Query     string
	Required  []string
	Preferred []string
	Excluded  []string
	Summary   string
}

// Normalize sanitizes a plan into a Spec.
func Normalize(plan Plan) Spec {
	query := strings.Join(strings.Fields(plan.Query), " ")
	if query == "" {
		query = strings.Join(strings.Fields(plan.Item), " ")
	}
	summary := strings.TrimSpace(plan.Summary)
	if summary == "" {
		summary = fmt.Sprintf("Buyer is looking for: %s", query)
	}
	return Spec{
		Category:  registry.ParseCategory(plan.Category),
		Item:      strings.TrimSpace(plan.Item),
		Query:     query,
		Required:  CleanTerms(plan.Required),
		Preferred: CleanTerms(plan.Preferred),
		Excluded:  CleanTerms(plan.Excluded),
		Summary:   summary,
	}
}

// CleanTerms lowercases, strips disallowed characters, caps term length and
// set size, and deduplicates while preserving order.
func CleanTerms(terms []string) []string {
	var out []string
	seen := map[string]bool{}
	for _, t := range terms {
		c := CleanTerm(t)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
		if len(out) == MaxTerms {
			break
		}
	}
	return out
}

// CleanTerm normalizes one keyword: lowercase, only [a-z0-9- ] kept, capped.
func CleanTerm(t string) string {
	c := CleanQuery(t)
	if len(c) > MaxTermLength {
		c = strings.TrimSpace(c[:MaxTermLength])
	}
	return c
}

// CleanQuery keeps the same character set as CleanTerm but without the
// per-term length cap.
func CleanQuery(t string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(t) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == ' ':
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// categoryHints drives the heuristic classifier used when no LLM provider is
// configured.
var categoryHints = []struct {
	category registry.Category
	words    []string
}{
	{registry.CategoryCycling, []string{"bike", "bicycle", "cycling", "helmet", "pannier", "saddle", "pedal"}},
	{registry.CategoryElectronics, []string{"laptop", "phone", "headphone", "camera", "monitor", "keyboard", "tablet"}},
	{registry.CategoryFashion, []string{"jacket", "shoe", "dress", "shirt", "jeans", "coat", "sneaker"}},
	{registry.CategoryHome, []string{"sofa", "lamp", "kettle", "chair", "desk", "mattress", "cushion"}},
	{registry.CategoryOutdoors, []string{"tent", "sleeping bag", "hiking", "backpack", "stove", "kayak"}},
}

// Heuristic produces a keyword-only plan from free text: the matched hint
// word becomes the single required term and the cleaned text the query.
// Preferred and excluded sets stay empty.
func Heuristic(text string) Plan {
	cleaned := CleanQuery(text)
	lower := strings.ToLower(text)
	for _, hint := range categoryHints {
		for _, w := range hint.words {
			if strings.Contains(lower, w) {
				return Plan{
					Category: string(hint.category),
					Item:     w,
					Query:    cleaned,
					Required: []string{w},
				}
			}
		}
	}
	return Plan{Category: string(registry.CategoryGeneral), Item: cleaned, Query: cleaned}
}
