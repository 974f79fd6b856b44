package pipeline

import (
	"context"
	"errors"
)

// ErrRunNotFound is returned by RunStore lookups for unknown run IDs.
var ErrRunNotFound = errors.New("run not found")

// RunStore persists run metadata, source records, and synthesized items.
// Implementations live in internal/store.
type RunStore interface {
	CreateRun(ctx context.Context, run Run) error
	GetRun(ctx context.Context, id string) (Run, error)
	ListRuns(ctx context.Context, status RunStatus, limit int) ([]Run, error)
	MarkRunning(ctx context.Context, id string) error
	MarkCompleted(ctx context.Context, id string, stats Stats) error
	MarkFailed(ctx context.Context, id string, cause string) error
	SaveOutput(ctx context.Context, output Output, sources []SourceRecord) error
	GetOutput(ctx context.Context, runID string) (Output, error)
	ListSources(ctx context.Context, runID string) ([]SourceRecord, error)
}
