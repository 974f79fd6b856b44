package search

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tradewatch/internal/config"
	"tradewatch/internal/retry"
)

func fastRetry() retry.Policy {
	return retry.Policy{MaxAttempts: 3, BackoffBase: time.Millisecond, BackoffCap: 5 * time.Millisecond}
}

func TestSerpAPISearchParsesAndBounds(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "google", r.URL.Query().Get("engine"))
		assert.Equal(t, "test-key", r.URL.Query().Get("api_key"))
		assert.Equal(t, "qdr:m", r.URL.Query().Get("tbs"))
		fmt.Fprint(w, `{"organic_results":[
			{"title":"A","link":"https://a.com","snippet":"sa"},
			{"title":"B","link":"https://b.com","snippet":"sb"},
			{"title":"no link","link":""},
			{"title":"C","link":"https://c.com","snippet":"sc"}
		]}`)
	}))
	defer srv.Close()

	c := &SerpAPIClient{
		apiKey:   "test-key",
		endpoint: srv.URL,
		client:   srv.Client(),
		retry:    fastRetry(),
		logger:   zap.NewNop(),
	}
	results, err := c.Search(context.Background(), "tariffs", 2, 30)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "A", results[0].Title)
	assert.Equal(t, "https://b.com", results[1].URL)
	assert.Equal(t, "serpapi", results[0].Provider)
}

func TestSerpAPIRetriesServerErrors(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) < 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"organic_results":[{"title":"A","link":"https://a.com"}]}`)
	}))
	defer srv.Close()

	c := &SerpAPIClient{endpoint: srv.URL, client: srv.Client(), retry: fastRetry(), logger: zap.NewNop()}
	results, err := c.Search(context.Background(), "q", 5, 0)
	require.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, int32(2), hits.Load())
}

func TestBingSearchSendsKeyAndFreshness(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "bing-key", r.Header.Get("Ocp-Apim-Subscription-Key"))
		assert.Equal(t, "Week", r.URL.Query().Get("freshness"))
		assert.Equal(t, "en-GB", r.URL.Query().Get("mkt"))
		fmt.Fprint(w, `{"webPages":{"value":[{"name":"N","url":"https://n.com","snippet":"sn"}]}}`)
	}))
	defer srv.Close()

	c := &BingClient{
		apiKey:   "bing-key",
		endpoint: srv.URL,
		client:   srv.Client(),
		retry:    fastRetry(),
		logger:   zap.NewNop(),
	}
	results, err := c.Search(context.Background(), "ports", 5, 7)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "N", results[0].Title)
	assert.Equal(t, "bing", results[0].Provider)
}

func TestRecencyMappings(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", recencyTBS(0))
	assert.Equal(t, "qdr:d", recencyTBS(1))
	assert.Equal(t, "qdr:w", recencyTBS(7))
	assert.Equal(t, "qdr:m", recencyTBS(30))
	assert.Equal(t, "qdr:y", recencyTBS(365))

	assert.Equal(t, "", bingFreshness(0))
	assert.Equal(t, "Day", bingFreshness(1))
	assert.Equal(t, "Week", bingFreshness(5))
	assert.Equal(t, "Month", bingFreshness(60))
}

func TestFactorySelectsProvider(t *testing.T) {
	t.Parallel()

	logger := zap.NewNop()
	c, err := New(config.SearchConfig{Provider: config.ProviderSerpAPI, SerpAPIKey: "k"}, time.Second, logger)
	require.NoError(t, err)
	assert.IsType(t, &SerpAPIClient{}, c)

	c, err = New(config.SearchConfig{Provider: config.ProviderBing, BingKey: "k", BingEndpoint: "https://e"}, time.Second, logger)
	require.NoError(t, err)
	assert.IsType(t, &BingClient{}, c)

	_, err = New(config.SearchConfig{Provider: "nope"}, time.Second, logger)
	require.Error(t, err)
}
