// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"tradewatch/internal/pipeline"
)

// RunStoreConfig controls the Postgres connection pool used for run rows.
type RunStoreConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pgxIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// RunStore persists runs, sources, and challenge items in Postgres.
type RunStore struct {
	pool pgxIface
}

// NewRunStore creates a Postgres-backed RunStore using the provided config.
func NewRunStore(ctx context.Context, cfg RunStoreConfig) (*RunStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &RunStore{pool: pool}, nil
}

// NewRunStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewRunStoreWithPool(pool pgxIface) (*RunStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &RunStore{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *RunStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the tables if they do not exist.
func (s *RunStore) EnsureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	status TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	params JSONB NOT NULL DEFAULT '{}',
	stats JSONB NOT NULL DEFAULT '{}',
	error_text TEXT NOT NULL DEFAULT '',
	output JSONB
);
CREATE TABLE IF NOT EXISTS sources (
	id BIGSERIAL PRIMARY KEY,
	run_id TEXT NOT NULL REFERENCES runs(id),
	url TEXT NOT NULL,
	source_name TEXT NOT NULL,
	published_at TEXT,
	credibility TEXT NOT NULL,
	raw_path TEXT NOT NULL,
	text_path TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS challenges (
	id BIGSERIAL PRIMARY KEY,
	run_id TEXT NOT NULL REFERENCES runs(id),
	position INT NOT NULL,
	title TEXT NOT NULL,
	summary TEXT NOT NULL,
	challenge_type TEXT,
	impact_area JSONB NOT NULL DEFAULT '[]',
	severity TEXT,
	time_horizon TEXT,
	uk_relevance TEXT,
	eu_relevance TEXT,
	affected_sectors JSONB NOT NULL DEFAULT '[]',
	evidence JSONB NOT NULL DEFAULT '[]',
	confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	dedupe_key TEXT NOT NULL
);`
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// CreateRun inserts a new run row.
func (s *RunStore) CreateRun(ctx context.Context, run pipeline.Run) error {
	if run.ID == "" {
		return fmt.Errorf("run id is required")
	}
	paramsJSON, err := json.Marshal(run.Params)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}
	statsJSON, err := json.Marshal(run.Stats)
	if err != nil {
		return fmt.Errorf("marshal stats: %w", err)
	}
	const query = `
INSERT INTO runs (id, status, created_at, params, stats, error_text)
VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := s.pool.Exec(ctx, query,
		run.ID, string(run.Status), run.CreatedAt, paramsJSON, statsJSON, run.Error); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// GetRun fetches a run by ID.
func (s *RunStore) GetRun(ctx context.Context, id string) (pipeline.Run, error) {
	const query = `
SELECT id, status, created_at, params, stats, error_text
FROM runs WHERE id = $1`
	row := s.pool.QueryRow(ctx, query, id)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return pipeline.Run{}, pipeline.ErrRunNotFound
		}
		return pipeline.Run{}, fmt.Errorf("select run: %w", err)
	}
	return run, nil
}

// ListRuns returns runs newest first, optionally filtered by status. A
// non-positive limit defaults to 100.
func (s *RunStore) ListRuns(ctx context.Context, status pipeline.RunStatus, limit int) ([]pipeline.Run, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
SELECT id, status, created_at, params, stats, error_text
FROM runs ORDER BY created_at DESC LIMIT $1`
	args := []any{limit}
	if status != "" {
		query = `
SELECT id, status, created_at, params, stats, error_text
FROM runs WHERE status = $1 ORDER BY created_at DESC LIMIT $2`
		args = []any{string(status), limit}
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select runs: %w", err)
	}
	defer rows.Close()

	var out []pipeline.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return out, nil
}

// MarkRunning transitions a run into the running state.
func (s *RunStore) MarkRunning(ctx context.Context, id string) error {
	return s.setStatus(ctx, id, pipeline.RunStatusRunning, "", nil)
}

// MarkCompleted records final stats and the completed state.
func (s *RunStore) MarkCompleted(ctx context.Context, id string, stats pipeline.Stats) error {
	return s.setStatus(ctx, id, pipeline.RunStatusCompleted, "", &stats)
}

// MarkFailed records the failed state with the verbatim cause.
func (s *RunStore) MarkFailed(ctx context.Context, id string, cause string) error {
	return s.setStatus(ctx, id, pipeline.RunStatusFailed, cause, nil)
}

func (s *RunStore) setStatus(ctx context.Context, id string, status pipeline.RunStatus, cause string, stats *pipeline.Stats) error {
	var tag pgconn.CommandTag
	var err error
	if stats != nil {
		statsJSON, merr := json.Marshal(*stats)
		if merr != nil {
			return fmt.Errorf("marshal stats: %w", merr)
		}
		tag, err = s.pool.Exec(ctx,
			`UPDATE runs SET status = $1, error_text = $2, stats = $3 WHERE id = $4`,
			string(status), cause, statsJSON, id)
	} else {
		tag, err = s.pool.Exec(ctx,
			`UPDATE runs SET status = $1, error_text = $2 WHERE id = $3`,
			string(status), cause, id)
	}
	if err != nil {
		return fmt.Errorf("update run status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pipeline.ErrRunNotFound
	}
	return nil
}

// SaveOutput stores the output document plus one row per source and per
// kept item, atomically.
func (s *RunStore) SaveOutput(ctx context.Context, output pipeline.Output, sources []pipeline.SourceRecord) error {
	outputJSON, err := json.Marshal(output)
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `UPDATE runs SET output = $1 WHERE id = $2`, outputJSON, output.RunID)
	if err != nil {
		return fmt.Errorf("update run output: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pipeline.ErrRunNotFound
	}

	for _, src := range sources {
		if _, err := tx.Exec(ctx, `
INSERT INTO sources (run_id, url, source_name, published_at, credibility, raw_path, text_path)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			output.RunID, src.URL, src.SourceName, src.PublishedAt, src.Credibility, src.RawPath, src.TextPath); err != nil {
			return fmt.Errorf("insert source: %w", err)
		}
	}

	for i, item := range output.Items {
		impactJSON, err := json.Marshal(orEmpty(item.ImpactArea))
		if err != nil {
			return fmt.Errorf("marshal impact_area: %w", err)
		}
		sectorsJSON, err := json.Marshal(orEmpty(item.AffectedSectors))
		if err != nil {
			return fmt.Errorf("marshal affected_sectors: %w", err)
		}
		evidenceJSON, err := json.Marshal(item.Evidence)
		if err != nil {
			return fmt.Errorf("marshal evidence: %w", err)
		}
		if _, err := tx.Exec(ctx, `
INSERT INTO challenges (
	run_id, position, title, summary, challenge_type, impact_area,
	severity, time_horizon, uk_relevance, eu_relevance,
	affected_sectors, evidence, confidence, dedupe_key
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
			output.RunID, i, item.Title, item.Summary, item.ChallengeType, impactJSON,
			item.Severity, item.TimeHorizon, item.UKRelevance, item.EURelevance,
			sectorsJSON, evidenceJSON, item.Confidence, item.DedupeKey); err != nil {
			return fmt.Errorf("insert challenge: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GetOutput returns the stored output document. A run without a stored
// document gets a skeleton rebuilt from its item rows and recorded stats.
func (s *RunStore) GetOutput(ctx context.Context, runID string) (pipeline.Output, error) {
	var outputJSON []byte
	var statsJSON []byte
	row := s.pool.QueryRow(ctx, `SELECT output, stats FROM runs WHERE id = $1`, runID)
	if err := row.Scan(&outputJSON, &statsJSON); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return pipeline.Output{}, pipeline.ErrRunNotFound
		}
		return pipeline.Output{}, fmt.Errorf("select run output: %w", err)
	}

	if len(outputJSON) > 0 {
		var output pipeline.Output
		if err := json.Unmarshal(outputJSON, &output); err != nil {
			return pipeline.Output{}, fmt.Errorf("unmarshal output: %w", err)
		}
		return output, nil
	}

	var stats pipeline.Stats
	if len(statsJSON) > 0 {
		if err := json.Unmarshal(statsJSON, &stats); err != nil {
			return pipeline.Output{}, fmt.Errorf("unmarshal stats: %w", err)
		}
	}
	items, err := s.listItems(ctx, runID)
	if err != nil {
		return pipeline.Output{}, err
	}
	return pipeline.Output{
		RunID: runID,
		Scope: pipeline.OutputScope(),
		Items: items,
		Stats: stats,
	}, nil
}

func (s *RunStore) listItems(ctx context.Context, runID string) ([]pipeline.Item, error) {
	rows, err := s.pool.Query(ctx, `
SELECT title, summary, challenge_type, impact_area, severity, time_horizon,
	uk_relevance, eu_relevance, affected_sectors, evidence, confidence, dedupe_key
FROM challenges WHERE run_id = $1 ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("select challenges: %w", err)
	}
	defer rows.Close()

	items := []pipeline.Item{}
	for rows.Next() {
		var item pipeline.Item
		var impactJSON, sectorsJSON, evidenceJSON []byte
		if err := rows.Scan(
			&item.Title, &item.Summary, &item.ChallengeType, &impactJSON,
			&item.Severity, &item.TimeHorizon, &item.UKRelevance, &item.EURelevance,
			&sectorsJSON, &evidenceJSON, &item.Confidence, &item.DedupeKey); err != nil {
			return nil, fmt.Errorf("scan challenge: %w", err)
		}
		if err := json.Unmarshal(impactJSON, &item.ImpactArea); err != nil {
			return nil, fmt.Errorf("unmarshal impact_area: %w", err)
		}
		if err := json.Unmarshal(sectorsJSON, &item.AffectedSectors); err != nil {
			return nil, fmt.Errorf("unmarshal affected_sectors: %w", err)
		}
		if err := json.Unmarshal(evidenceJSON, &item.Evidence); err != nil {
			return nil, fmt.Errorf("unmarshal evidence: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate challenges: %w", err)
	}
	return items, nil
}

// ListSources returns the source records recorded for a run.
func (s *RunStore) ListSources(ctx context.Context, runID string) ([]pipeline.SourceRecord, error) {
	rows, err := s.pool.Query(ctx, `
SELECT url, source_name, published_at, credibility, raw_path, text_path
FROM sources WHERE run_id = $1 ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("select sources: %w", err)
	}
	defer rows.Close()

	var out []pipeline.SourceRecord
	for rows.Next() {
		var src pipeline.SourceRecord
		if err := rows.Scan(&src.URL, &src.SourceName, &src.PublishedAt,
			&src.Credibility, &src.RawPath, &src.TextPath); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		out = append(out, src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sources: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (pipeline.Run, error) {
	var run pipeline.Run
	var status string
	var paramsJSON, statsJSON []byte
	if err := row.Scan(&run.ID, &status, &run.CreatedAt, &paramsJSON, &statsJSON, &run.Error); err != nil {
		return pipeline.Run{}, err
	}
	run.Status = pipeline.RunStatus(status)
	if len(paramsJSON) > 0 {
		if err := json.Unmarshal(paramsJSON, &run.Params); err != nil {
			return pipeline.Run{}, fmt.Errorf("unmarshal params: %w", err)
		}
	}
	if len(statsJSON) > 0 {
		if err := json.Unmarshal(statsJSON, &run.Stats); err != nil {
			return pipeline.Run{}, fmt.Errorf("unmarshal stats: %w", err)
		}
	}
	return run, nil
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
