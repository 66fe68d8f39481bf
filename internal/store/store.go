// Package store provides a SQLite-backed history store for the medical Q&A
// pipeline. It keeps two ledgers: every answered question (with its grounding
// status) and every ingestion run (with its per-source counts). Both survive
// restarts and let operators audit what the system answered and what went
// into the index.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// Answer is a persisted question/answer exchange.
type Answer struct {
	// Question is the user's question as asked.
	Question string
	// Text is the synthesized answer text.
	Text string
	// Grounded reports whether the answer was produced from retrieved context.
	Grounded bool
	// Citations is the number of citations attached to the answer.
	Citations int
	// CreatedAt is when the answer was persisted.
	CreatedAt time.Time
}

// IngestRun is a persisted record of one ingestion invocation.
type IngestRun struct {
	// Source is the logical source name the counts apply to.
	Source string
	// Accepted is the number of records admitted to the index.
	Accepted int
	// Rejected is the number of units dropped by validation.
	Rejected int
	// Failed is the number of units lost to decode or upsert failures.
	Failed int
	// CreatedAt is when the run row was persisted.
	CreatedAt time.Time
}

// HistoryStore persists answered questions and ingestion runs.
// Implementations must be safe for concurrent use.
type HistoryStore interface {
	// RecordAnswer persists a single question/answer exchange.
	RecordAnswer(ctx context.Context, a Answer) error
	// RecentAnswers returns the most recent n answers, newest first.
	// If fewer than n exist, all are returned.
	RecentAnswers(ctx context.Context, n int) ([]Answer, error)
	// RecordIngestRun persists per-source counts for one ingestion run.
	RecordIngestRun(ctx context.Context, runs []IngestRun) error
	// RecentIngestRuns returns the most recent n ingest run rows, newest first.
	RecentIngestRuns(ctx context.Context, n int) ([]IngestRun, error)
	// Close releases any resources held by the store.
	Close() error
}

// SQLiteStore is a HistoryStore backed by a local SQLite database.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDBPath returns the default path for the history database.
// It resolves to ~/.medqa/history.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".medqa")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "history.db"), nil
}

// Open opens (or creates) a SQLiteStore at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS answers (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    question    TEXT    NOT NULL,
    answer      TEXT    NOT NULL,
    grounded    INTEGER NOT NULL CHECK(grounded IN (0,1)),
    citations   INTEGER NOT NULL,
    created_at  INTEGER NOT NULL  -- Unix timestamp (seconds)
);
CREATE INDEX IF NOT EXISTS idx_answers_created
    ON answers (created_at);

CREATE TABLE IF NOT EXISTS ingest_runs (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    source      TEXT    NOT NULL,
    accepted    INTEGER NOT NULL,
    rejected    INTEGER NOT NULL,
    failed      INTEGER NOT NULL,
    created_at  INTEGER NOT NULL  -- Unix timestamp (seconds)
);
CREATE INDEX IF NOT EXISTS idx_ingest_runs_created
    ON ingest_runs (created_at);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// RecordAnswer persists a single question/answer exchange.
func (s *SQLiteStore) RecordAnswer(ctx context.Context, a Answer) error {
	const q = `INSERT INTO answers (question, answer, grounded, citations, created_at) VALUES (?, ?, ?, ?, ?)`
	grounded := 0
	if a.Grounded {
		grounded = 1
	}
	if _, err := s.db.ExecContext(ctx, q, a.Question, a.Text, grounded, a.Citations, time.Now().Unix()); err != nil {
		return fmt.Errorf("store: record answer: %w", err)
	}
	return nil
}

// RecentAnswers returns the most recent n answers, newest first.
func (s *SQLiteStore) RecentAnswers(ctx context.Context, n int) ([]Answer, error) {
	const q = `
SELECT question, answer, grounded, citations, created_at
FROM   answers
ORDER  BY created_at DESC, id DESC
LIMIT  ?`

	rows, err := s.db.QueryContext(ctx, q, n)
	if err != nil {
		return nil, fmt.Errorf("store: recent answers: %w", err)
	}
	defer rows.Close()

	var out []Answer
	for rows.Next() {
		var a Answer
		var grounded int
		var ts int64
		if err := rows.Scan(&a.Question, &a.Text, &grounded, &a.Citations, &ts); err != nil {
			return nil, fmt.Errorf("store: recent answers scan: %w", err)
		}
		a.Grounded = grounded == 1
		a.CreatedAt = time.Unix(ts, 0)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: recent answers rows: %w", err)
	}
	return out, nil
}

// RecordIngestRun persists per-source counts for one ingestion run. All rows
// share a single transaction so a run appears in the ledger atomically.
func (s *SQLiteStore) RecordIngestRun(ctx context.Context, runs []IngestRun) error {
	if len(runs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: record ingest run: %w", err)
	}
	const q = `INSERT INTO ingest_runs (source, accepted, rejected, failed, created_at) VALUES (?, ?, ?, ?, ?)`
	now := time.Now().Unix()
	for _, r := range runs {
		if _, err := tx.ExecContext(ctx, q, r.Source, r.Accepted, r.Rejected, r.Failed, now); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("store: record ingest run: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: record ingest run commit: %w", err)
	}
	return nil
}

// RecentIngestRuns returns the most recent n ingest run rows, newest first.
func (s *SQLiteStore) RecentIngestRuns(ctx context.Context, n int) ([]IngestRun, error) {
	const q = `
SELECT source, accepted, rejected, failed, created_at
FROM   ingest_runs
ORDER  BY created_at DESC, id DESC
LIMIT  ?`

	rows, err := s.db.QueryContext(ctx, q, n)
	if err != nil {
		return nil, fmt.Errorf("store: recent ingest runs: %w", err)
	}
	defer rows.Close()

	var out []IngestRun
	for rows.Next() {
		var r IngestRun
		var ts int64
		if err := rows.Scan(&r.Source, &r.Accepted, &r.Rejected, &r.Failed, &ts); err != nil {
			return nil, fmt.Errorf("store: recent ingest runs scan: %w", err)
		}
		r.CreatedAt = time.Unix(ts, 0)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: recent ingest runs rows: %w", err)
	}
	return out, nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}
