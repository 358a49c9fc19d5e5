// Package extraction turns free-text interpretation passes into medicine
// name candidates.
//
// The only recognised line format is
//
//	<position>. <name>: <confidence>%
//
// Anything else is treated as "no data" and counted, never reported as an error.
package extraction

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/menta2k/rx-reader/pkg/types"
)

// candidateLine matches the leading position, the shortest name up to a colon
// that is followed by a percentage, and that percentage.
var candidateLine = regexp.MustCompile(`^(\d+)\.\s+(.*?):\s*(\d+)%`)

// ParseLine parses a single line. ok is false if the line does not follow the
// candidate grammar.
func ParseLine(line string) (c types.Candidate, ok bool) {
	line = strings.TrimSpace(line)
	m := candidateLine.FindStringSubmatch(line)
	if m == nil {
		return types.Candidate{}, false
	}

	name := strings.TrimSpace(m[2])
	if name == "" {
		return types.Candidate{}, false
	}

	position := atoiSaturated(m[1], math.MaxInt)
	confidence := atoiSaturated(m[3], 100)

	return types.Candidate{
		Name:       name,
		Confidence: confidence,
		Position:   position,
	}, true
}

// atoiSaturated parses a run of ASCII digits, capping the value at limit.
// Runs too long for an int are capped rather than rejected.
func atoiSaturated(digits string, limit int) int {
	n, err := strconv.Atoi(digits)
	if err != nil || n > limit {
		return limit
	}
	return n
}

// ExtractText returns the candidates of one interpretation text along with
// per-line match counts
func ExtractText(text string) ([]types.Candidate, types.LineStats) {
	var (
		candidates []types.Candidate
		stats      types.LineStats
	)
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if c, ok := ParseLine(line); ok {
			candidates = append(candidates, c)
			stats.Matched++
		} else {
			stats.Unmatched++
		}
	}
	return candidates, stats
}

// Extract scans every interpretation in order and returns all candidates in
// encounter order, irrespective of which interpretation produced them
func Extract(interpretations []types.Interpretation) ([]types.Candidate, []types.LineStats) {
	var all []types.Candidate
	stats := make([]types.LineStats, 0, len(interpretations))
	for _, in := range interpretations {
		candidates, s := ExtractText(in.Text)
		s.Pass = in.Pass
		all = append(all, candidates...)
		stats = append(stats, s)
	}
	return all, stats
}

// ExtractTexts is Extract for bare response texts, numbering passes from 1
func ExtractTexts(texts []string) []types.Candidate {
	interpretations := make([]types.Interpretation, len(texts))
	for i, text := range texts {
		interpretations[i] = types.Interpretation{Pass: i + 1, Text: text}
	}
	candidates, _ := Extract(interpretations)
	return candidates
}
