package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"tradewatch/internal/cache"
	"tradewatch/internal/config"
	"tradewatch/internal/metrics"
	"tradewatch/internal/search"
)

// OutputScope is attached to every run's output unchanged.
func OutputScope() map[string]any {
	return map[string]any{
		"regions":   []string{"UK", "EU"},
		"topic":     "global trade challenges",
		"languages": []string{"en"},
	}
}

// Orchestrator sequences a full run: query generation, search,
// aggregation, synthesis, dedupe, and persistence.
type Orchestrator struct {
	cfg    config.Config
	search search.Client
	agg    *Aggregator
	synth  Synthesizer
	embed  Embedder
	runs   RunStore
	store  *cache.Store
	logger *zap.Logger
}

// NewOrchestrator wires an Orchestrator from its collaborators.
func NewOrchestrator(cfg config.Config, sc search.Client, agg *Aggregator, synth Synthesizer, embed Embedder, runs RunStore, store *cache.Store, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:    cfg,
		search: sc,
		agg:    agg,
		synth:  synth,
		embed:  embed,
		runs:   runs,
		store:  store,
		logger: logger,
	}
}

// Execute drives one run through its lifecycle. Any step failure marks
// the run failed with the verbatim error message; success persists the
// output and marks the run completed. The returned error mirrors what
// was recorded on the run.
func (o *Orchestrator) Execute(ctx context.Context, run Run) error {
	if err := o.runs.MarkRunning(ctx, run.ID); err != nil {
		return fmt.Errorf("mark running: %w", err)
	}
	o.logger.Info("run started", zap.String("run_id", run.ID))

	output, sources, err := o.execute(ctx, run)
	if err != nil {
		metrics.RunsTotal.WithLabelValues(string(RunStatusFailed)).Inc()
		o.logger.Error("run failed", zap.String("run_id", run.ID), zap.Error(err))
		if merr := o.runs.MarkFailed(ctx, run.ID, err.Error()); merr != nil {
			o.logger.Error("mark failed", zap.String("run_id", run.ID), zap.Error(merr))
		}
		return err
	}

	if err := o.runs.SaveOutput(ctx, output, sources); err != nil {
		metrics.RunsTotal.WithLabelValues(string(RunStatusFailed)).Inc()
		if merr := o.runs.MarkFailed(ctx, run.ID, err.Error()); merr != nil {
			o.logger.Error("mark failed", zap.String("run_id", run.ID), zap.Error(merr))
		}
		return fmt.Errorf("save output: %w", err)
	}
	if err := o.writeOutputArtifact(run.ID, output); err != nil {
		o.logger.Warn("write output artifact", zap.String("run_id", run.ID), zap.Error(err))
	}
	if err := o.runs.MarkCompleted(ctx, run.ID, output.Stats); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}

	metrics.RunsTotal.WithLabelValues(string(RunStatusCompleted)).Inc()
	o.logger.Info("run completed",
		zap.String("run_id", run.ID),
		zap.Int("found", output.Stats.Found),
		zap.Int("kept", output.Stats.Kept),
		zap.Int("duplicates_removed", output.Stats.DuplicatesRemoved))
	return nil
}

func (o *Orchestrator) execute(ctx context.Context, run Run) (Output, []SourceRecord, error) {
	params := o.resolveParams(run.Params)

	queries := GenerateQueries(params.Categories)
	var results []search.Result
	for _, query := range queries {
		hits, err := o.search.Search(ctx, query, params.TopNPerQuery, params.RecencyDays)
		if err != nil {
			return Output{}, nil, fmt.Errorf("search %q: %w", query, err)
		}
		results = append(results, hits...)
	}

	candidates, sources, err := o.agg.Aggregate(ctx, run.ID, results, params.DryRun)
	if err != nil {
		return Output{}, nil, err
	}
	found := len(candidates)

	set := CandidateSet{Items: candidates}
	set.Stats.Found = found

	items, err := o.synth.Synthesize(ctx, set)
	if err != nil {
		return Output{}, nil, fmt.Errorf("synthesize: %w", err)
	}

	texts := make([]string, len(items))
	for i, item := range items {
		texts[i] = item.Title + " " + item.Summary
	}
	embeddings, err := o.embed.Embed(ctx, texts)
	if err != nil {
		return Output{}, nil, fmt.Errorf("embed items: %w", err)
	}

	deduped := Dedupe(items, embeddings, o.cfg.Pipeline.DedupeThreshold)
	metrics.DuplicatesRemoved.Add(float64(deduped.DuplicatesRemoved))

	kept := deduped.Items
	if len(kept) > params.MaxItems {
		kept = kept[:params.MaxItems]
	}
	for i := range kept {
		capConfidence(&kept[i])
	}

	output := Output{
		RunID: run.ID,
		Scope: OutputScope(),
		Items: kept,
		Stats: Stats{
			Found:             found,
			Kept:              len(kept),
			DuplicatesRemoved: deduped.DuplicatesRemoved,
		},
	}
	return output, sources, nil
}

// capConfidence lowers the stated confidence of a high-severity item
// backed by fewer than two pieces of evidence.
func capConfidence(item *Item) {
	if item.Severity == "high" && len(item.Evidence) < 2 && item.Confidence > 0.5 {
		item.Confidence = 0.5
	}
}

// resolveParams fills unset per-run parameters from service config.
func (o *Orchestrator) resolveParams(p RunParams) RunParams {
	if p.TopNPerQuery <= 0 {
		p.TopNPerQuery = o.cfg.Pipeline.TopNPerQuery
	}
	if p.MaxItems <= 0 {
		p.MaxItems = o.cfg.Pipeline.MaxItems
	}
	if p.RecencyDays <= 0 {
		p.RecencyDays = o.cfg.Pipeline.RecencyDays
	}
	p.DryRun = p.DryRun || o.cfg.Pipeline.DryRun
	return p
}

func (o *Orchestrator) writeOutputArtifact(runID string, output Output) error {
	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return err
	}
	return o.store.WriteOutput(runID, data)
}
