package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradewatch/internal/pipeline"
)

func newRun(id string, created time.Time) pipeline.Run {
	return pipeline.Run{ID: id, Status: pipeline.RunStatusQueued, CreatedAt: created}
}

func TestRunLifecycle(t *testing.T) {
	store := NewRunStore()
	ctx := context.Background()

	require.NoError(t, store.CreateRun(ctx, newRun("r1", time.Now().UTC())))
	require.Error(t, store.CreateRun(ctx, newRun("r1", time.Now().UTC())))

	require.NoError(t, store.MarkRunning(ctx, "r1"))
	run, err := store.GetRun(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, pipeline.RunStatusRunning, run.Status)

	stats := pipeline.Stats{Found: 4, Kept: 2, DuplicatesRemoved: 2}
	require.NoError(t, store.MarkCompleted(ctx, "r1", stats))
	run, err = store.GetRun(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, pipeline.RunStatusCompleted, run.Status)
	assert.Equal(t, stats, run.Stats)
	assert.Empty(t, run.Error)
}

func TestMarkFailedRecordsCause(t *testing.T) {
	store := NewRunStore()
	ctx := context.Background()

	require.NoError(t, store.CreateRun(ctx, newRun("r1", time.Now().UTC())))
	require.NoError(t, store.MarkFailed(ctx, "r1", "search \"q\": unexpected status 503"))

	run, err := store.GetRun(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, pipeline.RunStatusFailed, run.Status)
	assert.Equal(t, "search \"q\": unexpected status 503", run.Error)

	assert.ErrorIs(t, store.MarkFailed(ctx, "missing", "x"), pipeline.ErrRunNotFound)
}

func TestStatusTransitionsPreserveRunFields(t *testing.T) {
	store := NewRunStore()
	ctx := context.Background()
	created := time.Now().UTC().Add(-time.Minute)

	run := newRun("r1", created)
	run.Params = pipeline.RunParams{Categories: []string{"energy inputs"}, MaxItems: 7}
	require.NoError(t, store.CreateRun(ctx, run))

	require.NoError(t, store.MarkRunning(ctx, "r1"))
	require.NoError(t, store.MarkCompleted(ctx, "r1", pipeline.Stats{Kept: 1}))

	got, err := store.GetRun(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, created, got.CreatedAt)
	assert.Equal(t, run.Params, got.Params)

	assert.ErrorIs(t, store.MarkRunning(ctx, "missing"), pipeline.ErrRunNotFound)
	assert.ErrorIs(t, store.MarkCompleted(ctx, "missing", pipeline.Stats{}), pipeline.ErrRunNotFound)
}

func TestGetRunUnknownID(t *testing.T) {
	store := NewRunStore()
	_, err := store.GetRun(context.Background(), "nope")
	assert.ErrorIs(t, err, pipeline.ErrRunNotFound)
}

func TestListRunsFiltersAndOrders(t *testing.T) {
	store := NewRunStore()
	ctx := context.Background()
	base := time.Now().UTC()

	require.NoError(t, store.CreateRun(ctx, newRun("old", base.Add(-2*time.Hour))))
	require.NoError(t, store.CreateRun(ctx, newRun("mid", base.Add(-time.Hour))))
	require.NoError(t, store.CreateRun(ctx, newRun("new", base)))
	require.NoError(t, store.MarkRunning(ctx, "mid"))

	all, err := store.ListRuns(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "new", all[0].ID)
	assert.Equal(t, "old", all[2].ID)

	queued, err := store.ListRuns(ctx, pipeline.RunStatusQueued, 1)
	require.NoError(t, err)
	require.Len(t, queued, 1)
	assert.Equal(t, "new", queued[0].ID)
}

func TestSaveAndGetOutput(t *testing.T) {
	store := NewRunStore()
	ctx := context.Background()

	require.NoError(t, store.CreateRun(ctx, newRun("r1", time.Now().UTC())))

	output := pipeline.Output{
		RunID: "r1",
		Scope: pipeline.OutputScope(),
		Items: []pipeline.Item{{Title: "Tariff increase", DedupeKey: "abc"}},
		Stats: pipeline.Stats{Found: 1, Kept: 1},
	}
	sources := []pipeline.SourceRecord{{URL: "https://gov.uk/news", Credibility: "high"}}
	require.NoError(t, store.SaveOutput(ctx, output, sources))

	got, err := store.GetOutput(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, output, got)

	gotSources, err := store.ListSources(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, sources, gotSources)

	_, err = store.GetOutput(ctx, "missing")
	assert.ErrorIs(t, err, pipeline.ErrRunNotFound)
}

func TestGetOutputBeforeSaveReturnsEmptySkeleton(t *testing.T) {
	store := NewRunStore()
	ctx := context.Background()

	require.NoError(t, store.CreateRun(ctx, newRun("r1", time.Now().UTC())))

	got, err := store.GetOutput(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "r1", got.RunID)
	assert.Empty(t, got.Items)
	assert.Equal(t, pipeline.OutputScope(), got.Scope)
}
