package intent

import (
	"strings"
	"testing"

	"github.com/quibble-ai/quibble/internal/registry"
)

func TestCleanTerms(t *testing.T) {
	got := CleanTerms([]string{"Helmet!", "helmet", "  MATTE black ", "trés-chic", ""})
	want := []string{"helmet", "matte black", "trs-chic"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("term %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestCleanTermsCaps(t *testing.T) {
	long := strings.Repeat("a", 50)
	got := CleanTerm(long)
	if len(got) > MaxTermLength {
		t.Fatalf("term not capped: %d chars", len(got))
	}

	many := make([]string, 20)
	for i := range many {
		many[i] = string(rune('a'+i)) + "-term"
	}
	if got := CleanTerms(many); len(got) != MaxTerms {
		t.Fatalf("set not capped at %d, got %d", MaxTerms, len(got))
	}
}

func TestNormalize(t *testing.T) {
	spec := Normalize(Plan{
		Category: "Cycling",
		Item:     " commuter helmet ",
		Query:    "  commuter   helmet matte black ",
		Required: []string{"Helmet"},
		Excluded: []string{"hat", "HAT"},
	})
	if spec.Category != registry.CategoryCycling {
		t.Fatalf("category: %s", spec.Category)
	}
	if spec.Query != "commuter helmet matte black" {
		t.Fatalf("query not cleaned: %q", spec.Query)
	}
	if len(spec.Excluded) != 1 || spec.Excluded[0] != "hat" {
		t.Fatalf("excluded not deduplicated: %v", spec.Excluded)
	}
	if spec.Summary == "" {
		t.Fatalf("summary must be derived when absent")
	}
}

func TestNormalizeQueryFallsBackToItem(t *testing.T) {
	spec := Normalize(Plan{Category: "cycling", Item: "helmet"})
	if spec.Query != "helmet" {
		t.Fatalf("query should fall back to item, got %q", spec.Query)
	}
}

func TestHeuristic(t *testing.T) {
	plan := Heuristic("I need a commuter helmet under £50")
	if plan.Category != string(registry.CategoryCycling) {
		t.Fatalf("category: %s", plan.Category)
	}
	if len(plan.Required) != 1 || plan.Required[0] != "helmet" {
		t.Fatalf("required: %v", plan.Required)
	}
	if len(plan.Preferred) != 0 || len(plan.Excluded) != 0 {
		t.Fatalf("keyword-only plan must keep preferred/excluded empty")
	}

	other := Heuristic("something entirely unclassifiable")
	if other.Category != string(registry.CategoryGeneral) {
		t.Fatalf("fallback category: %s", other.Category)
	}
}
