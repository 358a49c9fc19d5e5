package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/menta2k/rx-reader/pkg/client"
)

// DefaultMaxResults is how many hits are kept per query
const DefaultMaxResults = 5

// Augmenter is a client.Generator that fulfils ToolWebSearch by running the
// request's search queries and prepending their results to the prompt.
// Results are memoised per query for the augmenter's lifetime.
type Augmenter struct {
	next       client.Generator
	searcher   Searcher
	maxResults int
	logger     *slog.Logger

	mu    sync.Mutex
	cache map[string][]Result
}

// NewAugmenter wraps next. A nil searcher means search is disabled and the
// prompt is told no results are available.
func NewAugmenter(next client.Generator, searcher Searcher, maxResults int, logger *slog.Logger) *Augmenter {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Augmenter{
		next:       next,
		searcher:   searcher,
		maxResults: maxResults,
		logger:     logger,
		cache:      make(map[string][]Result),
	}
}

// Generate forwards req, resolving the web search tool first when declared
func (a *Augmenter) Generate(ctx context.Context, req client.Request) (string, error) {
	if !req.HasTool(client.ToolWebSearch) {
		return a.next.Generate(ctx, req)
	}

	block := a.searchBlock(ctx, req.SearchQueries)
	out := req.WithoutTool(client.ToolWebSearch)
	out.SearchQueries = nil
	if block != "" {
		out.Prompt = block + "\n" + req.Prompt
	}
	return a.next.Generate(ctx, out)
}

func (a *Augmenter) searchBlock(ctx context.Context, queries []string) string {
	queries = dedupe(queries)
	if len(queries) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Web search results (use them to check your answer):\n\n")

	if a.searcher == nil {
		b.WriteString("Web search is not available for this request.\n")
		return b.String()
	}

	for _, q := range queries {
		results, err := a.lookup(ctx, q)
		if err != nil {
			a.logger.Warn("web search failed", "searcher", a.searcher.Name(), "query", q, "error", err)
			fmt.Fprintf(&b, "Query: %s\n  (search failed: %v)\n\n", q, err)
			continue
		}
		b.WriteString(FormatResults(q, results))
		b.WriteString("\n")
	}
	return b.String()
}

func (a *Augmenter) lookup(ctx context.Context, query string) ([]Result, error) {
	a.mu.Lock()
	cached, ok := a.cache[query]
	a.mu.Unlock()
	if ok {
		return cached, nil
	}

	results, err := a.searcher.Search(ctx, query, a.maxResults)
	if err != nil {
		return nil, err
	}
	if len(results) > a.maxResults {
		results = results[:a.maxResults]
	}

	a.mu.Lock()
	a.cache[query] = results
	a.mu.Unlock()

	a.logger.Debug("web search", "searcher", a.searcher.Name(), "query", query, "results", len(results))
	return results, nil
}

func dedupe(queries []string) []string {
	seen := make(map[string]struct{}, len(queries))
	out := make([]string, 0, len(queries))
	for _, q := range queries {
		q = strings.TrimSpace(q)
		key := strings.ToLower(q)
		if q == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, q)
	}
	return out
}

var _ client.Generator = (*Augmenter)(nil)
