package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/menta2k/rx-reader/internal/config"
	"github.com/menta2k/rx-reader/pkg/client"
	"github.com/menta2k/rx-reader/pkg/ollama"
	"github.com/menta2k/rx-reader/pkg/openaicompat"
	"github.com/menta2k/rx-reader/pkg/search"
)

// newGenerator builds the configured model backend and wraps it with the web
// search augmenter that fulfils the search tool
func newGenerator(ctx context.Context, cfg *config.Config, logger *slog.Logger) (client.Generator, error) {
	var backend client.Generator
	switch cfg.Backend.Type {
	case "ollama":
		// The shipped defaults describe the openai backend
		url := cfg.Backend.URL
		if url == "" || url == config.Default().Backend.URL {
			url = ollama.DefaultURL
		}
		model := cfg.Backend.Model
		if model == "" || model == config.Default().Backend.Model {
			model = ollama.DefaultModel
		}
		c, err := ollama.NewClient(url, model, cfg.Timeout())
		if err != nil {
			return nil, fmt.Errorf("failed to create ollama client: %w", err)
		}
		backend = c
	case "openai":
		backend = openaicompat.NewClient(openaicompat.Config{
			BaseURL: cfg.Backend.URL,
			APIKey:  cfg.Backend.APIKey,
			Model:   cfg.Backend.Model,
			Timeout: cfg.Timeout(),
		})
	default:
		return nil, fmt.Errorf("unknown backend: %s", cfg.Backend.Type)
	}

	var searcher search.Searcher
	switch cfg.Search.Provider {
	case "duckduckgo":
		searcher = search.NewDuckDuckGo(cfg.Search.Locale)
	case "google":
		g, err := search.NewGoogle(ctx, search.GoogleConfig{
			APIKey:   cfg.Search.APIKey,
			EngineID: cfg.Search.EngineID,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create google search: %w", err)
		}
		searcher = g
	case "none":
	default:
		return nil, fmt.Errorf("unknown search provider: %s", cfg.Search.Provider)
	}

	logger.Debug("backend ready",
		"backend", cfg.Backend.Type,
		"model", cfg.Backend.Model,
		"search", cfg.Search.Provider)
	return search.NewAugmenter(backend, searcher, cfg.Search.MaxResults, logger), nil
}
