package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"tradewatch/internal/cache"
	"tradewatch/internal/extract"
	"tradewatch/internal/fetch"
	"tradewatch/internal/metrics"
	"tradewatch/internal/search"
	"tradewatch/internal/textkit"
)

// Aggregator drives the fetcher over discovered URLs and assembles the
// flat candidate list with attached evidence.
type Aggregator struct {
	fetcher   *fetch.Fetcher
	store     *cache.Store
	extractor Extractor
	logger    *zap.Logger
}

// NewAggregator wires an Aggregator.
func NewAggregator(fetcher *fetch.Fetcher, store *cache.Store, extractor Extractor, logger *zap.Logger) *Aggregator {
	return &Aggregator{
		fetcher:   fetcher,
		store:     store,
		extractor: extractor,
		logger:    logger,
	}
}

// Aggregate fetches every discovered URL and collects candidates and
// source records in input order. Each URL is fetched at most once per
// run: repeats across queries are skipped. Fetch failures skip the page;
// extraction collaborator failures abort, since a model that cannot
// produce valid output after repair fails the whole run.
func (a *Aggregator) Aggregate(ctx context.Context, runID string, results []search.Result, dryRun bool) ([]Candidate, []SourceRecord, error) {
	var candidates []Candidate
	var sources []SourceRecord
	seen := make(map[string]struct{}, len(results))

	for _, result := range results {
		if result.URL == "" {
			continue
		}
		if _, dup := seen[result.URL]; dup {
			continue
		}
		seen[result.URL] = struct{}{}

		fetched, err := a.fetcher.FetchWithCache(ctx, runID, result.URL, dryRun)
		if err != nil {
			metrics.PagesSkipped.WithLabelValues("fetch_error").Inc()
			a.logger.Warn("page fetch failed; skipping",
				zap.String("run_id", runID), zap.String("url", result.URL), zap.Error(err))
			continue
		}

		meta := extract.Meta(fetched.Raw)
		title := meta.Title
		if title == "" {
			title = result.Title
		}

		if fetched.Text == "" {
			reason := "no_text"
			if fetched.RobotsDenied {
				reason = "robots"
			}
			metrics.PagesSkipped.WithLabelValues(reason).Inc()
			continue
		}
		metrics.PagesFetched.Inc()

		sources = append(sources, SourceRecord{
			URL:         result.URL,
			SourceName:  SourceName(result.URL),
			PublishedAt: meta.PublishedAt,
			Credibility: CredibilityTier(result.URL),
			RawPath:     a.store.RawPath(runID, result.URL),
			TextPath:    a.store.TextPath(runID, result.URL),
		})

		extracted, err := a.extractor.ExtractCandidates(ctx, fetched.Text, result.URL, title, meta.PublishedAt)
		if err != nil {
			return nil, nil, fmt.Errorf("extract candidates for %s: %w", result.URL, err)
		}
		for _, candidate := range extracted {
			candidate.SourceURL = result.URL
			quotes := textkit.ClampQuotes(candidate.EvidenceQuotes, textkit.MaxQuoteWords)
			candidate.Evidence = make([]Evidence, 0, len(quotes))
			for _, quote := range quotes {
				candidate.Evidence = append(candidate.Evidence, Evidence{
					SourceName:  SourceName(result.URL),
					URL:         result.URL,
					PublishedAt: meta.PublishedAt,
					Quote:       quote,
					Credibility: CredibilityTier(result.URL),
				})
			}
			candidates = append(candidates, candidate)
		}
	}

	return candidates, sources, nil
}
