// Package pipeline implements the evidence acquisition pipeline: query
// generation, candidate aggregation, deduplication, and run sequencing.
package pipeline

import (
	"context"
	"time"
)

// RunStatus represents the lifecycle state of a run.
type RunStatus string

// Run status values persisted in the run store.
const (
	RunStatusQueued    RunStatus = "queued"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// RunParams captures per-run configuration requested by the caller.
// Zero values fall back to the service configuration.
type RunParams struct {
	Categories   []string `json:"categories,omitempty"`
	TopNPerQuery int      `json:"top_n_per_query,omitempty"`
	MaxItems     int      `json:"max_items,omitempty"`
	RecencyDays  int      `json:"recency_days,omitempty"`
	DryRun       bool     `json:"dry_run,omitempty"`
}

// Stats summarizes a completed run.
type Stats struct {
	Found             int `json:"found"`
	Kept              int `json:"kept"`
	DuplicatesRemoved int `json:"duplicates_removed"`
}

// Run is the persisted metadata for one pipeline execution.
type Run struct {
	ID        string    `json:"id"`
	Status    RunStatus `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	Params    RunParams `json:"params"`
	Stats     Stats     `json:"stats"`
	Error     string    `json:"error,omitempty"`
}

// Evidence ties one clamped quote to its source page.
type Evidence struct {
	SourceName  string `json:"source_name"`
	URL         string `json:"url"`
	PublishedAt string `json:"published_at,omitempty"`
	Quote       string `json:"quote"`
	Credibility string `json:"credibility"`
}

// Candidate is an unvetted, pre-synthesis claim extracted from one page.
type Candidate struct {
	Title           string     `json:"title"`
	Summary         string     `json:"summary"`
	ChallengeType   string     `json:"challenge_type"`
	ImpactArea      []string   `json:"impact_area"`
	Severity        string     `json:"severity"`
	TimeHorizon     string     `json:"time_horizon"`
	UKRelevance     string     `json:"uk_relevance"`
	EURelevance     string     `json:"eu_relevance"`
	AffectedSectors []string   `json:"affected_sectors"`
	EvidenceQuotes  []string   `json:"evidence_quotes,omitempty"`
	Evidence        []Evidence `json:"evidence,omitempty"`
	Confidence      float64    `json:"confidence"`
	SourceURL       string     `json:"source_url,omitempty"`
}

// Item is a post-synthesis, deduplicated claim with attached evidence.
type Item struct {
	Title           string     `json:"title"`
	Summary         string     `json:"summary"`
	ChallengeType   string     `json:"challenge_type"`
	ImpactArea      []string   `json:"impact_area"`
	Severity        string     `json:"severity"`
	TimeHorizon     string     `json:"time_horizon"`
	UKRelevance     string     `json:"uk_relevance"`
	EURelevance     string     `json:"eu_relevance"`
	AffectedSectors []string   `json:"affected_sectors"`
	Evidence        []Evidence `json:"evidence"`
	Confidence      float64    `json:"confidence"`
	DedupeKey       string     `json:"dedupe_key"`
}

// SourceRecord describes one successfully fetched, text-bearing page.
// Immutable once created; owned by the run.
type SourceRecord struct {
	URL         string `json:"url"`
	SourceName  string `json:"source_name"`
	PublishedAt string `json:"published_at,omitempty"`
	Credibility string `json:"credibility"`
	RawPath     string `json:"raw_path"`
	TextPath    string `json:"text_path"`
}

// Output is the final result set handed to the API/persistence layer.
type Output struct {
	RunID string         `json:"run_id"`
	Scope map[string]any `json:"scope"`
	Items []Item         `json:"items"`
	Stats Stats          `json:"stats"`
}

// CandidateSet packages aggregated candidates for the synthesis backend.
type CandidateSet struct {
	Items []Candidate `json:"items"`
	Stats struct {
		Found int `json:"found"`
	} `json:"stats"`
}

// Extractor pulls candidate claims out of one page's text.
type Extractor interface {
	ExtractCandidates(ctx context.Context, text, url, title, publishedAt string) ([]Candidate, error)
}

// Synthesizer merges many candidates into a coherent item set. Its
// output is not deterministic and must still pass deduplication.
type Synthesizer interface {
	Synthesize(ctx context.Context, candidates CandidateSet) ([]Item, error)
}

// Embedder maps texts to vectors, one per input, same order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}
