package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"tradewatch/internal/retry"
)

const serpAPIEndpoint = "https://serpapi.com/search.json"

// SerpAPIClient implements Client against the SerpAPI Google engine.
type SerpAPIClient struct {
	apiKey   string
	endpoint string
	client   *http.Client
	retry    retry.Policy
	logger   *zap.Logger
}

type serpAPIResponse struct {
	OrganicResults []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic_results"`
}

// Search implements Client.
func (c *SerpAPIClient) Search(ctx context.Context, query string, topN, recencyDays int) ([]Result, error) {
	endpoint := c.endpoint
	if endpoint == "" {
		endpoint = serpAPIEndpoint
	}
	params := url.Values{}
	params.Set("engine", "google")
	params.Set("q", query)
	params.Set("num", strconv.Itoa(topN))
	params.Set("api_key", c.apiKey)
	if tbs := recencyTBS(recencyDays); tbs != "" {
		params.Set("tbs", tbs)
	}

	var parsed serpAPIResponse
	err := c.retry.Do(ctx, func() error {
		return getJSON(ctx, c.client, endpoint+"?"+params.Encode(), nil, &parsed)
	})
	if err != nil {
		return nil, fmt.Errorf("serpapi search %q: %w", query, err)
	}

	results := make([]Result, 0, topN)
	for _, r := range parsed.OrganicResults {
		if len(results) >= topN {
			break
		}
		if r.Link == "" {
			continue
		}
		results = append(results, Result{
			Title:    r.Title,
			URL:      r.Link,
			Snippet:  r.Snippet,
			Provider: "serpapi",
		})
	}
	c.logger.Debug("serpapi search done", zap.String("query", query), zap.Int("results", len(results)))
	return results, nil
}

// recencyTBS maps a day horizon onto Google's time-bounded search values.
func recencyTBS(days int) string {
	switch {
	case days <= 0:
		return ""
	case days <= 1:
		return "qdr:d"
	case days <= 7:
		return "qdr:w"
	case days <= 31:
		return "qdr:m"
	default:
		return "qdr:y"
	}
}

// getJSON issues one GET, treats non-2xx as retryable, and decodes the body.
func getJSON(ctx context.Context, client *http.Client, rawURL string, headers map[string]string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return retry.Permanent(fmt.Errorf("new request: %w", err))
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return retry.Permanent(fmt.Errorf("decode response: %w", err))
	}
	return nil
}
