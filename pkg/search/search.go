// Package search gives generation requests a web search capability.
//
// Backends only ever see plain prompts: Augmenter runs the declared search
// queries itself and prepends the results to the prompt before forwarding.
package search

import (
	"context"
	"fmt"
	"strings"
)

// Result is one web search hit
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Searcher runs a web query
type Searcher interface {
	Name() string
	Search(ctx context.Context, query string, limit int) ([]Result, error)
}

// FormatResults renders hits for one query as a numbered block
func FormatResults(query string, results []Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Query: %s\n", query)
	if len(results) == 0 {
		b.WriteString("  (no results)\n")
		return b.String()
	}
	for i, r := range results {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, r.Title)
		if r.URL != "" {
			fmt.Fprintf(&b, "     %s\n", r.URL)
		}
		if r.Snippet != "" {
			fmt.Fprintf(&b, "     %s\n", r.Snippet)
		}
	}
	return b.String()
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
