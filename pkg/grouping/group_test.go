package grouping

import (
	"testing"

	"github.com/menta2k/rx-reader/pkg/types"
)

func exampleCandidates() []types.Candidate {
	return []types.Candidate{
		{Name: "Napa", Confidence: 80, Position: 1},
		{Name: "Seclo", Confidence: 70, Position: 2},
		{Name: "Napa", Confidence: 90, Position: 1},
		{Name: "Nap", Confidence: 60, Position: 1},
		{Name: "Seclo", Confidence: 85, Position: 2},
	}
}

func TestByPosition(t *testing.T) {
	groups := ByPosition(exampleCandidates())

	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}

	want := []string{
		"Medicine 1: [Napa: 80%, Napa: 90%, Nap: 60%]",
		"Medicine 2: [Seclo: 70%, Seclo: 85%]",
	}
	for i, g := range groups {
		if g.Position != i+1 {
			t.Errorf("group %d has position %d", i, g.Position)
		}
		if g.Summary != want[i] {
			t.Errorf("group %d summary = %q, want %q", i, g.Summary, want[i])
		}
	}
	if len(groups[0].Candidates) != 3 || len(groups[1].Candidates) != 2 {
		t.Errorf("unexpected group sizes: %d, %d", len(groups[0].Candidates), len(groups[1].Candidates))
	}
}

func TestByPositionOrdering(t *testing.T) {
	candidates := []types.Candidate{
		{Name: "C", Confidence: 10, Position: 10},
		{Name: "B", Confidence: 20, Position: 2},
		{Name: "A", Confidence: 30, Position: 0},
		{Name: "B2", Confidence: 40, Position: 2},
	}

	groups := ByPosition(candidates)
	positions := []int{0, 2, 10}
	if len(groups) != len(positions) {
		t.Fatalf("expected %d groups, got %d", len(positions), len(groups))
	}
	for i, pos := range positions {
		if groups[i].Position != pos {
			t.Errorf("group %d position = %d, want %d", i, groups[i].Position, pos)
		}
	}
	if groups[1].Summary != "Medicine 2: [B: 20%, B2: 40%]" {
		t.Errorf("unexpected summary %q", groups[1].Summary)
	}
}

func TestByPositionEmpty(t *testing.T) {
	if groups := ByPosition(nil); len(groups) != 0 {
		t.Errorf("expected no groups, got %d", len(groups))
	}
}

func TestDistinctNames(t *testing.T) {
	names := DistinctNames(exampleCandidates())
	want := []string{"Napa", "Seclo", "Nap"}
	if len(names) != len(want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("name %d = %q, want %q", i, names[i], want[i])
		}
	}

	mixed := DistinctNames([]types.Candidate{{Name: "NAPA"}, {Name: "napa"}, {Name: "Napa "}})
	if len(mixed) != 1 || mixed[0] != "NAPA" {
		t.Errorf("expected case-insensitive dedupe, got %v", mixed)
	}
}

func TestBest(t *testing.T) {
	groups := ByPosition(exampleCandidates())
	best, ok := Best(groups[0])
	if !ok {
		t.Fatal("expected a best candidate")
	}
	if best.Name != "Napa" || best.Confidence != 90 {
		t.Errorf("unexpected best %+v", best)
	}

	if _, ok := Best(types.Group{}); ok {
		t.Error("empty group should have no best candidate")
	}
}

func TestNormalize(t *testing.T) {
	tests := map[string]string{
		"NAPA-Extend":     "napa extend",
		"  Napa  Extend ": "napa extend",
		"Ｎａｐａ":            "napa",
		"Tab. Seclo 20":   "tab seclo 20",
		"":                "",
	}
	for in, want := range tests {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSimilarity(t *testing.T) {
	if s := Similarity("Napa", "napa"); s != 1 {
		t.Errorf("expected identical names to score 1, got %f", s)
	}
	if s := Similarity("Napa", "Nap"); s != 0.75 {
		t.Errorf("expected 0.75, got %f", s)
	}
	if s := Similarity("Napa", "Seclo"); s >= DefaultSimilarityThreshold {
		t.Errorf("unrelated names scored %f", s)
	}
	if s := Similarity("", ""); s != 1 {
		t.Errorf("empty names should score 1, got %f", s)
	}
}

func TestBySimilarity(t *testing.T) {
	// Second pass numbered the medicines the other way around
	candidates := []types.Candidate{
		{Name: "Napa", Confidence: 80, Position: 1},
		{Name: "Seclo", Confidence: 70, Position: 2},
		{Name: "Seclo", Confidence: 75, Position: 1},
		{Name: "Nappa", Confidence: 65, Position: 2},
	}

	byPos := ByPosition(candidates)
	if byPos[0].Summary != "Medicine 1: [Napa: 80%, Seclo: 75%]" {
		t.Fatalf("position grouping changed: %q", byPos[0].Summary)
	}

	groups := BySimilarity(candidates, DefaultSimilarityThreshold)
	if len(groups) != 2 {
		t.Fatalf("expected 2 clusters, got %d: %+v", len(groups), groups)
	}
	want := []string{
		"Medicine 1: [Napa: 80%, Nappa: 65%]",
		"Medicine 2: [Seclo: 70%, Seclo: 75%]",
	}
	for i, g := range groups {
		if g.Position != i+1 {
			t.Errorf("cluster %d position = %d", i, g.Position)
		}
		if g.Summary != want[i] {
			t.Errorf("cluster %d summary = %q, want %q", i, g.Summary, want[i])
		}
	}
}

func TestBySimilarityDefaultsThreshold(t *testing.T) {
	groups := BySimilarity(exampleCandidates(), 0)
	if len(groups) != 2 {
		t.Fatalf("expected 2 clusters with default threshold, got %d", len(groups))
	}
	if groups[0].Summary != "Medicine 1: [Napa: 80%, Napa: 90%, Nap: 60%]" {
		t.Errorf("unexpected summary %q", groups[0].Summary)
	}
}
