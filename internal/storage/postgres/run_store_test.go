package postgres

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradewatch/internal/pipeline"
)

func newMockStore(t *testing.T) (*RunStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	store, err := NewRunStoreWithPool(mock)
	require.NoError(t, err)
	return store, mock
}

func TestCreateRunInsertsRow(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	now := time.Unix(1700000000, 0).UTC()
	run := pipeline.Run{
		ID:        "run-1",
		Status:    pipeline.RunStatusQueued,
		CreatedAt: now,
		Params:    pipeline.RunParams{MaxItems: 10},
	}
	paramsJSON, err := json.Marshal(run.Params)
	require.NoError(t, err)
	statsJSON, err := json.Marshal(run.Stats)
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO runs").
		WithArgs("run-1", "queued", now, paramsJSON, statsJSON, "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.CreateRun(context.Background(), run))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRunScansRow(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	now := time.Unix(1700000000, 0).UTC()

	rows := pgxmock.NewRows([]string{"id", "status", "created_at", "params", "stats", "error_text"}).
		AddRow("run-1", "completed", now, []byte(`{"max_items":10}`), []byte(`{"found":3,"kept":2,"duplicates_removed":1}`), "")
	mock.ExpectQuery("SELECT id, status, created_at").
		WithArgs("run-1").
		WillReturnRows(rows)

	run, err := store.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, pipeline.RunStatusCompleted, run.Status)
	assert.Equal(t, 10, run.Params.MaxItems)
	assert.Equal(t, pipeline.Stats{Found: 3, Kept: 2, DuplicatesRemoved: 1}, run.Stats)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRunNotFound(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT id, status, created_at").
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows([]string{"id", "status", "created_at", "params", "stats", "error_text"}))

	_, err := store.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, pipeline.ErrRunNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkFailedUpdatesRow(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectExec("UPDATE runs SET status").
		WithArgs("failed", "synthesize: boom", "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, store.MarkFailed(context.Background(), "run-1", "synthesize: boom"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkCompletedWritesStats(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	stats := pipeline.Stats{Found: 5, Kept: 3, DuplicatesRemoved: 2}
	statsJSON, err := json.Marshal(stats)
	require.NoError(t, err)

	mock.ExpectExec("UPDATE runs SET status").
		WithArgs("completed", "", statsJSON, "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, store.MarkCompleted(context.Background(), "run-1", stats))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkRunningUnknownRun(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectExec("UPDATE runs SET status").
		WithArgs("running", "", "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := store.MarkRunning(context.Background(), "missing")
	assert.ErrorIs(t, err, pipeline.ErrRunNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveOutputWritesRowsInTx(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	output := pipeline.Output{
		RunID: "run-1",
		Scope: pipeline.OutputScope(),
		Items: []pipeline.Item{{
			Title:      "Tariff increase",
			Summary:    "Steel tariffs rise.",
			Severity:   "medium",
			Confidence: 0.8,
			Evidence:   []pipeline.Evidence{{URL: "https://gov.uk/news", Quote: "q", Credibility: "high"}},
			DedupeKey:  "abc123",
		}},
		Stats: pipeline.Stats{Found: 1, Kept: 1},
	}
	sources := []pipeline.SourceRecord{{
		URL: "https://gov.uk/news", SourceName: "gov.uk", Credibility: "high",
		RawPath: "data/run-1/raw/x.html", TextPath: "data/run-1/text/x.txt",
	}}

	outputJSON, err := json.Marshal(output)
	require.NoError(t, err)
	impactJSON, err := json.Marshal([]string{})
	require.NoError(t, err)
	evidenceJSON, err := json.Marshal(output.Items[0].Evidence)
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE runs SET output").
		WithArgs(outputJSON, "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("INSERT INTO sources").
		WithArgs("run-1", sources[0].URL, sources[0].SourceName, sources[0].PublishedAt,
			sources[0].Credibility, sources[0].RawPath, sources[0].TextPath).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO challenges").
		WithArgs("run-1", 0, "Tariff increase", "Steel tariffs rise.", "", impactJSON,
			"medium", "", "", "", impactJSON, evidenceJSON, 0.8, "abc123").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, store.SaveOutput(context.Background(), output, sources))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOutputPrefersStoredDocument(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	stored := pipeline.Output{
		RunID: "run-1",
		Scope: pipeline.OutputScope(),
		Items: []pipeline.Item{{Title: "Tariff increase", DedupeKey: "abc"}},
		Stats: pipeline.Stats{Found: 1, Kept: 1},
	}
	outputJSON, err := json.Marshal(stored)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT output, stats FROM runs").
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows([]string{"output", "stats"}).
			AddRow(outputJSON, []byte(`{"found":1,"kept":1,"duplicates_removed":0}`)))

	got, err := store.GetOutput(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, stored.RunID, got.RunID)
	assert.Equal(t, stored.Items, got.Items)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOutputRebuildsFromRows(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT output, stats FROM runs").
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows([]string{"output", "stats"}).
			AddRow(nil, []byte(`{"found":2,"kept":1,"duplicates_removed":1}`)))
	mock.ExpectQuery("SELECT title, summary, challenge_type").
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows([]string{
			"title", "summary", "challenge_type", "impact_area", "severity", "time_horizon",
			"uk_relevance", "eu_relevance", "affected_sectors", "evidence", "confidence", "dedupe_key",
		}).AddRow(
			"Tariff increase", "Steel tariffs rise.", "tariffs", []byte(`["imports"]`), "medium", "near-term",
			"high", "medium", []byte(`["steel"]`), []byte(`[]`), 0.8, "abc123",
		))

	got, err := store.GetOutput(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", got.RunID)
	require.Len(t, got.Items, 1)
	assert.Equal(t, []string{"imports"}, got.Items[0].ImpactArea)
	assert.Equal(t, pipeline.Stats{Found: 2, Kept: 1, DuplicatesRemoved: 1}, got.Stats)
	require.NoError(t, mock.ExpectationsWereMet())
}
