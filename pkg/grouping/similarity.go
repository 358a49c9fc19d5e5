package grouping

import (
	"sort"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/menta2k/rx-reader/pkg/types"
)

// DefaultSimilarityThreshold is the minimum similarity for two names to share a cluster
const DefaultSimilarityThreshold = 0.6

var folder = cases.Fold()

// Normalize folds width, case and punctuation so "NAPA-Extend" and
// "napa extend" compare equal
func Normalize(name string) string {
	name = folder.String(norm.NFKC.String(name))
	var b strings.Builder
	space := false
	for _, r := range name {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			space = false
		case !space && b.Len() > 0:
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}

// Similarity is 1 minus the edit distance over the longer normalized name, in [0,1]
func Similarity(a, b string) float64 {
	na, nb := []rune(Normalize(a)), []rune(Normalize(b))
	longest := len(na)
	if len(nb) > longest {
		longest = len(nb)
	}
	if longest == 0 {
		return 1
	}
	d := levenshtein.ComputeDistance(string(na), string(nb))
	return 1 - float64(d)/float64(longest)
}

type cluster struct {
	seed        string
	minPosition int
	first       int
	indices     []int
}

// BySimilarity clusters candidates by name similarity instead of trusting
// the model's numbering. Each candidate joins the first cluster whose seed
// name is at least threshold similar, otherwise it seeds a new cluster.
// Candidates are visited by position, then encounter order. Clusters are
// renumbered 1..k by their smallest member position.
func BySimilarity(candidates []types.Candidate, threshold float64) []types.Group {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultSimilarityThreshold
	}

	order := make([]int, len(candidates))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return candidates[order[a]].Position < candidates[order[b]].Position
	})

	var clusters []*cluster
	for _, idx := range order {
		c := candidates[idx]
		var home *cluster
		for _, cl := range clusters {
			if Similarity(cl.seed, c.Name) >= threshold {
				home = cl
				break
			}
		}
		if home == nil {
			home = &cluster{seed: c.Name, minPosition: c.Position, first: idx}
			clusters = append(clusters, home)
		}
		home.indices = append(home.indices, idx)
	}

	sort.SliceStable(clusters, func(a, b int) bool {
		if clusters[a].minPosition != clusters[b].minPosition {
			return clusters[a].minPosition < clusters[b].minPosition
		}
		return clusters[a].first < clusters[b].first
	})

	groups := make([]types.Group, len(clusters))
	for i, cl := range clusters {
		// Members keep encounter order, not visiting order
		sort.Ints(cl.indices)
		members := make([]types.Candidate, len(cl.indices))
		for j, idx := range cl.indices {
			members[j] = candidates[idx]
		}
		groups[i] = types.Group{
			Position:   i + 1,
			Candidates: members,
			Summary:    Summary(i+1, members),
		}
	}
	return groups
}
