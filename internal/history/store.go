package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"tinct/internal/tracker"
)

// Store persists finished batch runs backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Run is one archived batch run.
type Run struct {
	ID          int64
	StartedAt   time.Time
	FinishedAt  time.Time
	Total       int
	Completed   int
	Failed      int
	Cancelled   int
	SuccessRate float64
}

// ItemRecord is one archived item outcome within a run.
type ItemRecord struct {
	RunID        int64
	ItemID       string
	InputPath    string
	State        string
	StartedAt    time.Time
	FinishedAt   time.Time
	ErrorMessage string
	OutputPath   string
}

const schema = `
CREATE TABLE IF NOT EXISTS batch_runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    started_at TEXT NOT NULL,
    finished_at TEXT NOT NULL,
    total INTEGER NOT NULL,
    completed INTEGER NOT NULL,
    failed INTEGER NOT NULL,
    cancelled INTEGER NOT NULL,
    success_rate REAL NOT NULL
);
CREATE TABLE IF NOT EXISTS batch_items (
    run_id INTEGER NOT NULL REFERENCES batch_runs(id) ON DELETE CASCADE,
    item_id TEXT NOT NULL,
    input_path TEXT,
    state TEXT NOT NULL,
    started_at TEXT,
    finished_at TEXT,
    error_message TEXT,
    output_path TEXT
);
CREATE INDEX IF NOT EXISTS idx_batch_items_run ON batch_items(run_id);
`

// Open initializes or connects to the history database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordRun archives a finished run and its item outcomes in one
// transaction, returning the new run id.
func (s *Store) RecordRun(ctx context.Context, summary tracker.Summary, records []tracker.Record) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO batch_runs (started_at, finished_at, total, completed, failed, cancelled, success_rate)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		formatTime(summary.StartedAt),
		formatTime(summary.FinishedAt),
		summary.Total,
		summary.Completed,
		summary.Failed,
		summary.Cancelled,
		summary.SuccessRate(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("run id: %w", err)
	}

	for _, record := range records {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO batch_items (run_id, item_id, input_path, state, started_at, finished_at, error_message, output_path)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			runID,
			record.ID,
			record.InputPath,
			string(record.State),
			formatTime(record.StartedAt),
			formatTime(record.FinishedAt),
			record.ErrorMessage,
			record.OutputPath,
		)
		if err != nil {
			return 0, fmt.Errorf("insert item %s: %w", record.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return runID, nil
}

// List returns the most recent runs, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, total, completed, failed, cancelled, success_rate
         FROM batch_runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var started, finished string
		if err := rows.Scan(&run.ID, &started, &finished, &run.Total,
			&run.Completed, &run.Failed, &run.Cancelled, &run.SuccessRate); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.StartedAt = parseTime(started)
		run.FinishedAt = parseTime(finished)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Items returns the archived item outcomes for a run, in insert order.
func (s *Store) Items(ctx context.Context, runID int64) ([]ItemRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, item_id, input_path, state, started_at, finished_at, error_message, output_path
         FROM batch_items WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	var items []ItemRecord
	for rows.Next() {
		var item ItemRecord
		var started, finished string
		if err := rows.Scan(&item.RunID, &item.ItemID, &item.InputPath, &item.State,
			&started, &finished, &item.ErrorMessage, &item.OutputPath); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		item.StartedAt = parseTime(started)
		item.FinishedAt = parseTime(finished)
		items = append(items, item)
	}
	return items, rows.Err()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}
