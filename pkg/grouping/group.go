package grouping

import (
	"fmt"
	"sort"
	"strings"

	"github.com/menta2k/rx-reader/pkg/types"
)

// Summary renders a group as "Medicine <position>: [<name>: <conf>%, ...]"
func Summary(position int, candidates []types.Candidate) string {
	parts := make([]string, len(candidates))
	for i, c := range candidates {
		parts[i] = fmt.Sprintf("%s: %d%%", c.Name, c.Confidence)
	}
	return fmt.Sprintf("Medicine %d: [%s]", position, strings.Join(parts, ", "))
}

// ByPosition partitions candidates by the position the model printed, keeping
// encounter order inside each group. Groups are returned in ascending
// position order.
func ByPosition(candidates []types.Candidate) []types.Group {
	buckets := make(map[int][]types.Candidate)
	var positions []int
	for _, c := range candidates {
		if _, seen := buckets[c.Position]; !seen {
			positions = append(positions, c.Position)
		}
		buckets[c.Position] = append(buckets[c.Position], c)
	}
	sort.Ints(positions)

	groups := make([]types.Group, 0, len(positions))
	for _, pos := range positions {
		members := buckets[pos]
		groups = append(groups, types.Group{
			Position:   pos,
			Candidates: members,
			Summary:    Summary(pos, members),
		})
	}
	return groups
}

// DistinctNames returns the names of the candidates in first-seen order,
// compared case-insensitively
func DistinctNames(candidates []types.Candidate) []string {
	seen := make(map[string]struct{})
	var names []string
	for _, c := range candidates {
		key := Normalize(c.Name)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		names = append(names, c.Name)
	}
	return names
}

// Best returns the highest-confidence candidate of a group; ties keep the
// earliest one
func Best(g types.Group) (types.Candidate, bool) {
	if len(g.Candidates) == 0 {
		return types.Candidate{}, false
	}
	best := g.Candidates[0]
	for _, c := range g.Candidates[1:] {
		if c.Confidence > best.Confidence {
			best = c
		}
	}
	return best, true
}
