// Package memory provides an in-memory run store for development and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"tradewatch/internal/pipeline"
)

// RunStore keeps runs, outputs, and source records in process memory.
type RunStore struct {
	mu      sync.RWMutex
	runs    map[string]pipeline.Run
	outputs map[string]pipeline.Output
	sources map[string][]pipeline.SourceRecord
}

// NewRunStore constructs an empty RunStore.
func NewRunStore() *RunStore {
	return &RunStore{
		runs:    make(map[string]pipeline.Run),
		outputs: make(map[string]pipeline.Output),
		sources: make(map[string][]pipeline.SourceRecord),
	}
}

// CreateRun stores a new run. The ID must be unused.
func (s *RunStore) CreateRun(_ context.Context, run pipeline.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[run.ID]; exists {
		return fmt.Errorf("run %s already exists", run.ID)
	}
	s.runs[run.ID] = run
	return nil
}

// GetRun fetches a run by ID.
func (s *RunStore) GetRun(_ context.Context, id string) (pipeline.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return pipeline.Run{}, pipeline.ErrRunNotFound
	}
	return run, nil
}

// ListRuns returns runs newest first, optionally filtered by status. A
// non-positive limit means no limit.
func (s *RunStore) ListRuns(_ context.Context, status pipeline.RunStatus, limit int) ([]pipeline.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]pipeline.Run, 0, len(s.runs))
	for _, run := range s.runs {
		if status != "" && run.Status != status {
			continue
		}
		out = append(out, run)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MarkRunning transitions a run into the running state.
func (s *RunStore) MarkRunning(_ context.Context, id string) error {
	return s.update(id, func(run *pipeline.Run) {
		run.Status = pipeline.RunStatusRunning
	})
}

// MarkCompleted records final stats and the completed state.
func (s *RunStore) MarkCompleted(_ context.Context, id string, stats pipeline.Stats) error {
	return s.update(id, func(run *pipeline.Run) {
		run.Status = pipeline.RunStatusCompleted
		run.Stats = stats
		run.Error = ""
	})
}

// MarkFailed records the failed state with the verbatim cause.
func (s *RunStore) MarkFailed(_ context.Context, id string, cause string) error {
	return s.update(id, func(run *pipeline.Run) {
		run.Status = pipeline.RunStatusFailed
		run.Error = cause
	})
}

func (s *RunStore) update(id string, mutate func(run *pipeline.Run)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return pipeline.ErrRunNotFound
	}
	mutate(&run)
	s.runs[id] = run
	return nil
}

// SaveOutput stores the final output and its source records.
func (s *RunStore) SaveOutput(_ context.Context, output pipeline.Output, sources []pipeline.SourceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[output.RunID]; !ok {
		return pipeline.ErrRunNotFound
	}
	s.outputs[output.RunID] = output
	s.sources[output.RunID] = append([]pipeline.SourceRecord(nil), sources...)
	return nil
}

// GetOutput returns the stored output for a run.
func (s *RunStore) GetOutput(_ context.Context, runID string) (pipeline.Output, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	output, ok := s.outputs[runID]
	if !ok {
		if _, exists := s.runs[runID]; !exists {
			return pipeline.Output{}, pipeline.ErrRunNotFound
		}
		run := s.runs[runID]
		return pipeline.Output{
			RunID: runID,
			Scope: pipeline.OutputScope(),
			Items: []pipeline.Item{},
			Stats: run.Stats,
		}, nil
	}
	return output, nil
}

// ListSources returns the source records recorded for a run.
func (s *RunStore) ListSources(_ context.Context, runID string) ([]pipeline.SourceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sources := s.sources[runID]
	out := make([]pipeline.SourceRecord, len(sources))
	copy(out, sources)
	return out, nil
}
