// Package metrics exposes Prometheus collectors for the pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PagesFetched tracks successfully fetched, text-bearing pages.
	PagesFetched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tradewatch_pages_fetched_total",
		Help: "The total number of pages fetched with usable extracted text.",
	})
	// PagesSkipped tracks pages that contributed nothing, labeled by reason.
	PagesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradewatch_pages_skipped_total",
		Help: "The total number of pages skipped, labeled by reason (robots, fetch_error, no_text).",
	}, []string{"reason"})
	// FetchDuration observes end-to-end fetch latency including retries.
	FetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tradewatch_fetch_duration_seconds",
		Help:    "Histogram of per-URL fetch latencies.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})
	// DuplicatesRemoved tracks items rejected by the deduplication engine.
	DuplicatesRemoved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tradewatch_duplicates_removed_total",
		Help: "The total number of synthesized items rejected as duplicates.",
	})
	// RunsTotal tracks run terminal states.
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradewatch_runs_total",
		Help: "The total number of runs finished, labeled by terminal status.",
	}, []string{"status"})
)

// ObserveFetch records one fetch attempt's wall-clock duration.
func ObserveFetch(start time.Time) {
	FetchDuration.Observe(time.Since(start).Seconds())
}
