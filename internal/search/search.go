// Package search defines the web search backend contract and its
// concrete providers.
package search

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"tradewatch/internal/config"
	"tradewatch/internal/retry"
)

// Result is one search hit.
type Result struct {
	Title    string `json:"title"`
	URL      string `json:"url"`
	Snippet  string `json:"snippet,omitempty"`
	Provider string `json:"provider,omitempty"`
}

// Client is the search backend contract: at most topN results per
// query, recency filtering on a best-effort basis.
type Client interface {
	Search(ctx context.Context, query string, topN, recencyDays int) ([]Result, error)
}

// New selects a provider implementation from configuration.
func New(cfg config.SearchConfig, timeout time.Duration, logger *zap.Logger) (Client, error) {
	httpClient := &http.Client{Timeout: timeout}
	policy := retry.Default()
	switch cfg.Provider {
	case config.ProviderSerpAPI:
		return &SerpAPIClient{apiKey: cfg.SerpAPIKey, client: httpClient, retry: policy, logger: logger}, nil
	case config.ProviderBing:
		return &BingClient{
			apiKey:   cfg.BingKey,
			endpoint: cfg.BingEndpoint,
			client:   httpClient,
			retry:    policy,
			logger:   logger,
		}, nil
	default:
		return nil, fmt.Errorf("unknown search provider %q", cfg.Provider)
	}
}
