package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cognicore/obsetl/pkg/obsetl/internalerr"
	"github.com/cognicore/obsetl/pkg/obsetl/record"
	"github.com/cognicore/obsetl/pkg/obsetl/store"
)

// sqliteStore implements the Store interface using SQLite
type sqliteStore struct {
	db *sql.DB
}

// OpenSQLite opens a SQLite database with WAL mode enabled.
func OpenSQLite(ctx context.Context, path string) (store.Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}

	// Enable foreign keys
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteStore{db: db}, nil
}

// Close closes the database connection
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// initSchema creates tables if they don't exist
func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	input TEXT,
	started_at TEXT NOT NULL,
	finished_at TEXT NOT NULL,
	row_count INTEGER NOT NULL,
	unknown_ids INTEGER NOT NULL,
	unparseable_dates INTEGER NOT NULL,
	fallback_enrichments INTEGER NOT NULL,
	fallbacks_by_reason TEXT
);

CREATE INDEX IF NOT EXISTS runs_started_at ON runs(started_at);

CREATE TABLE IF NOT EXISTS records (
	run_id TEXT NOT NULL,
	idx INTEGER NOT NULL,
	raw_identifier TEXT,
	raw_session_date TEXT,
	raw_observation TEXT,
	metadata TEXT,
	identifier TEXT NOT NULL,
	session_date TEXT,
	text TEXT,
	emotional_regulation INTEGER NOT NULL,
	social_integration INTEGER NOT NULL,
	summary TEXT,
	fallback TEXT,
	PRIMARY KEY(run_id, idx),
	FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);
`

	_, err := db.ExecContext(ctx, schema)
	return err
}

// SaveRun inserts or replaces a run and its records in one transaction
func (s *sqliteStore) SaveRun(ctx context.Context, run store.Run) error {
	if run.ID == "" {
		return fmt.Errorf("%w: run id is empty", internalerr.ErrInvalidInput)
	}

	fallbacks, err := json.Marshal(run.Stats.FallbacksByReason)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const runStmt = `
INSERT INTO runs (id, input, started_at, finished_at, row_count, unknown_ids, unparseable_dates, fallback_enrichments, fallbacks_by_reason)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	input=excluded.input,
	started_at=excluded.started_at,
	finished_at=excluded.finished_at,
	row_count=excluded.row_count,
	unknown_ids=excluded.unknown_ids,
	unparseable_dates=excluded.unparseable_dates,
	fallback_enrichments=excluded.fallback_enrichments,
	fallbacks_by_reason=excluded.fallbacks_by_reason;
`
	_, err = tx.ExecContext(ctx, runStmt,
		run.ID,
		run.Input,
		formatTime(run.StartedAt),
		formatTime(run.FinishedAt),
		run.Stats.Rows,
		run.Stats.UnknownIDs,
		run.Stats.UnparseableDates,
		run.Stats.FallbackEnrichments,
		string(fallbacks),
	)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE run_id = ?`, run.ID); err != nil {
		return err
	}

	insert, err := tx.PrepareContext(ctx, `
INSERT INTO records (run_id, idx, raw_identifier, raw_session_date, raw_observation, metadata,
	identifier, session_date, text, emotional_regulation, social_integration, summary, fallback)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer insert.Close()

	for _, rec := range run.Records {
		meta, err := json.Marshal(rec.Raw.Metadata)
		if err != nil {
			return err
		}
		_, err = insert.ExecContext(ctx,
			run.ID,
			rec.Raw.Index,
			rec.Raw.Identifier,
			rec.Raw.SessionDate,
			rec.Raw.Observation,
			string(meta),
			rec.Normalized.Identifier,
			rec.Normalized.SessionDate.String(),
			rec.Normalized.Text,
			rec.Enrichment.EmotionalRegulation,
			rec.Enrichment.SocialIntegration,
			rec.Enrichment.Summary,
			string(rec.Enrichment.Fallback),
		)
		if err != nil {
			return fmt.Errorf("insert record %d: %w", rec.Raw.Index, err)
		}
	}

	return tx.Commit()
}

const runColumns = `id, input, started_at, finished_at, row_count, unknown_ids, unparseable_dates, fallback_enrichments, fallbacks_by_reason`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (store.Run, error) {
	var (
		run               store.Run
		started, finished string
		fallbacks         sql.NullString
	)
	err := row.Scan(
		&run.ID,
		&run.Input,
		&started,
		&finished,
		&run.Stats.Rows,
		&run.Stats.UnknownIDs,
		&run.Stats.UnparseableDates,
		&run.Stats.FallbackEnrichments,
		&fallbacks,
	)
	if err != nil {
		return store.Run{}, err
	}
	if run.StartedAt, err = parseTime(started); err != nil {
		return store.Run{}, err
	}
	if run.FinishedAt, err = parseTime(finished); err != nil {
		return store.Run{}, err
	}
	run.Stats.FallbacksByReason = make(map[record.FallbackReason]int)
	if fallbacks.Valid && fallbacks.String != "" {
		if err := json.Unmarshal([]byte(fallbacks.String), &run.Stats.FallbacksByReason); err != nil {
			return store.Run{}, fmt.Errorf("decode fallbacks: %w", err)
		}
	}
	return run, nil
}

// GetRun retrieves a run header by id
func (s *sqliteStore) GetRun(ctx context.Context, id string) (store.Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Run{}, fmt.Errorf("run %s: %w", id, internalerr.ErrNotFound)
	}
	return run, err
}

// ListRuns returns run headers, newest first
func (s *sqliteStore) ListRuns(ctx context.Context, limit int) ([]store.Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []store.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Records returns the records of a run ordered by input position
func (s *sqliteStore) Records(ctx context.Context, runID string) ([]record.Enriched, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM runs WHERE id = ?`, runID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", runID, internalerr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT idx, raw_identifier, raw_session_date, raw_observation, metadata,
	identifier, session_date, text, emotional_regulation, social_integration, summary, fallback
FROM records WHERE run_id = ? ORDER BY idx`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []record.Enriched
	for rows.Next() {
		var (
			rec      record.Enriched
			meta     sql.NullString
			date     string
			fallback string
		)
		err := rows.Scan(
			&rec.Raw.Index,
			&rec.Raw.Identifier,
			&rec.Raw.SessionDate,
			&rec.Raw.Observation,
			&meta,
			&rec.Normalized.Identifier,
			&date,
			&rec.Normalized.Text,
			&rec.Enrichment.EmotionalRegulation,
			&rec.Enrichment.SocialIntegration,
			&rec.Enrichment.Summary,
			&fallback,
		)
		if err != nil {
			return nil, err
		}
		if meta.Valid && meta.String != "" && meta.String != "null" {
			if err := json.Unmarshal([]byte(meta.String), &rec.Raw.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata for record %d: %w", rec.Raw.Index, err)
			}
		}
		if rec.Normalized.SessionDate, err = record.ParseDate(date); err != nil {
			return nil, err
		}
		rec.Enrichment.Fallback = record.FallbackReason(fallback)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}
