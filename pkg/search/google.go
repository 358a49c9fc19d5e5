package search

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/option"
)

// Google queries a Programmable Search Engine through the Custom Search JSON API
type Google struct {
	service  *customsearch.Service
	engineID string
}

// GoogleConfig holds the Custom Search credentials
type GoogleConfig struct {
	APIKey   string
	EngineID string
	Endpoint string // optional (tests)
}

// NewGoogle creates a Custom Search client
func NewGoogle(ctx context.Context, cfg GoogleConfig) (*Google, error) {
	if cfg.APIKey == "" || cfg.EngineID == "" {
		return nil, errors.New("google search needs both an API key and an engine ID")
	}

	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	service, err := customsearch.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create custom search service: %w", err)
	}
	return &Google{service: service, engineID: cfg.EngineID}, nil
}

func (g *Google) Name() string {
	return "google"
}

// Search returns up to limit hits; the API caps a page at 10
func (g *Google) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if limit <= 0 || limit > 10 {
		limit = 10
	}

	resp, err := g.service.Cse.List().Cx(g.engineID).Q(query).Num(int64(limit)).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("custom search failed: %w", err)
	}

	results := make([]Result, 0, len(resp.Items))
	for _, item := range resp.Items {
		results = append(results, Result{
			Title:   cleanText(item.Title),
			URL:     item.Link,
			Snippet: cleanText(item.Snippet),
		})
	}
	return results, nil
}

var _ Searcher = (*Google)(nil)
