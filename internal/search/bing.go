package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"tradewatch/internal/retry"
)

// BingClient implements Client against the Bing Web Search API.
type BingClient struct {
	apiKey   string
	endpoint string
	client   *http.Client
	retry    retry.Policy
	logger   *zap.Logger
}

type bingResponse struct {
	WebPages struct {
		Value []struct {
			Name    string `json:"name"`
			URL     string `json:"url"`
			Snippet string `json:"snippet"`
		} `json:"value"`
	} `json:"webPages"`
}

// Search implements Client. Bing has no day-granular recency parameter,
// so the horizon maps onto its freshness buckets best-effort.
func (c *BingClient) Search(ctx context.Context, query string, topN, recencyDays int) ([]Result, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("count", strconv.Itoa(topN))
	params.Set("mkt", "en-GB")
	params.Set("safeSearch", "Moderate")
	if freshness := bingFreshness(recencyDays); freshness != "" {
		params.Set("freshness", freshness)
	}

	headers := map[string]string{"Ocp-Apim-Subscription-Key": c.apiKey}
	var parsed bingResponse
	err := c.retry.Do(ctx, func() error {
		return getJSON(ctx, c.client, c.endpoint+"?"+params.Encode(), headers, &parsed)
	})
	if err != nil {
		return nil, fmt.Errorf("bing search %q: %w", query, err)
	}

	results := make([]Result, 0, topN)
	for _, r := range parsed.WebPages.Value {
		if len(results) >= topN {
			break
		}
		if r.URL == "" {
			continue
		}
		results = append(results, Result{
			Title:    r.Name,
			URL:      r.URL,
			Snippet:  r.Snippet,
			Provider: "bing",
		})
	}
	c.logger.Debug("bing search done", zap.String("query", query), zap.Int("results", len(results)))
	return results, nil
}

func bingFreshness(days int) string {
	switch {
	case days <= 0:
		return ""
	case days <= 1:
		return "Day"
	case days <= 7:
		return "Week"
	default:
		return "Month"
	}
}
