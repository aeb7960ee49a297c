package match

import (
	"testing"

	"github.com/quibble-ai/quibble/internal/intent"
	"github.com/quibble-ai/quibble/internal/normalize"
)

func spec(required, preferred, excluded []string) intent.Spec {
	return intent.Spec{Required: required, Preferred: preferred, Excluded: excluded}
}

func products(titles ...string) []normalize.Product {
	out := make([]normalize.Product, len(titles))
	for i, t := range titles {
		out[i] = normalize.Product{Title: t}
	}
	return out
}

func TestStrictRequiresEveryRequiredTerm(t *testing.T) {
	s := spec([]string{"helmet"}, []string{"matte", "black"}, nil)
	// scores high on preferred terms but lacks the required one
	_, ok := SelectBest(products("Matte Black Cycling Cap"), s, true)
	if ok {
		t.Fatalf("strict pass must never select a title missing a required term")
	}
	best, ok := SelectBest(products("Matte Black Cycling Cap", "Commuter Helmet"), s, true)
	if !ok || best.Title != "Commuter Helmet" {
		t.Fatalf("expected the helmet, got %+v (ok=%v)", best, ok)
	}
}

func TestExcludedWithoutRequiredRejectsEvenRelaxed(t *testing.T) {
	s := spec([]string{"helmet"}, nil, []string{"hat"})
	_, ok := SelectBest(products("Sun Hat"), s, false)
	if ok {
		t.Fatalf("excluded term with no required term present must reject in any mode")
	}
}

func TestExcludedPenaltyWithRequiredPresent(t *testing.T) {
	s := spec([]string{"helmet"}, nil, []string{"kids"})
	// required present, so the excluded match only penalizes
	score, ok := Score("Kids Helmet", s, false)
	if !ok {
		t.Fatalf("candidate tied to a required term must survive")
	}
	if score != 6-7 {
		t.Fatalf("expected score -1, got %d", score)
	}
	best, ok := SelectBest(products("Kids Helmet", "Commuter Helmet"), s, false)
	if !ok || best.Title != "Commuter Helmet" {
		t.Fatalf("penalized candidate should lose: %+v", best)
	}
}

func TestScoreWeights(t *testing.T) {
	s := spec([]string{"helmet"}, []string{"matte", "mips"}, nil)
	score, ok := Score("Matte MIPS Helmet", s, true)
	if !ok || score != 6+2+2 {
		t.Fatalf("expected 10, got %d (ok=%v)", score, ok)
	}
}

func TestTieKeepsFirstCandidate(t *testing.T) {
	s := spec([]string{"helmet"}, nil, nil)
	best, ok := SelectBest(products("Helmet One", "Helmet Two"), s, true)
	if !ok || best.Title != "Helmet One" {
		t.Fatalf("tie-break must keep source order, got %+v", best)
	}
}

func TestRelaxedModeAllowsMissingRequired(t *testing.T) {
	s := spec([]string{"helmet"}, []string{"black"}, nil)
	best, ok := SelectBest(products("Black Cycling Cap"), s, false)
	if !ok || best.Title != "Black Cycling Cap" {
		t.Fatalf("relaxed pass should admit the candidate, got ok=%v", ok)
	}
}

func TestNoCandidates(t *testing.T) {
	if _, ok := SelectBest(nil, spec([]string{"helmet"}, nil, nil), false); ok {
		t.Fatalf("empty input must select nothing")
	}
}
