// Package ledger persists runs, per-test results, failure analyses and the
// aggregated per-test history in a local SQLite database.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested run does not exist.
var ErrNotFound = errors.New("ledger: not found")

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Ledger is a SQLite-backed run ledger. A single invocation is its only
// writer.
type Ledger struct {
	db *sql.DB
	// Now stamps rows; tests replace it.
	Now func() time.Time
}

const schema = `
CREATE TABLE IF NOT EXISTS test_runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	started_at TEXT NOT NULL,
	finished_at TEXT,
	commit_hash TEXT NOT NULL DEFAULT '',
	branch TEXT NOT NULL DEFAULT '',
	total_tests INTEGER NOT NULL DEFAULT 0,
	passed INTEGER NOT NULL DEFAULT 0,
	failed INTEGER NOT NULL DEFAULT 0,
	skipped INTEGER NOT NULL DEFAULT 0,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	confidence REAL NOT NULL DEFAULT 1,
	command TEXT NOT NULL DEFAULT '',
	raw_output TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS test_results (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id INTEGER NOT NULL REFERENCES test_runs(id) ON DELETE CASCADE,
	test_index INTEGER NOT NULL DEFAULT 0,
	test_name TEXT NOT NULL,
	test_file TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	output TEXT NOT NULL DEFAULT '',
	error_message TEXT NOT NULL DEFAULT '',
	risk_score REAL NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_test_results_run_id ON test_results(run_id);
CREATE INDEX IF NOT EXISTS idx_test_results_name ON test_results(test_name);

CREATE TABLE IF NOT EXISTS test_history (
	test_name TEXT PRIMARY KEY,
	last_failed_at TEXT,
	failure_count INTEGER NOT NULL DEFAULT 0,
	total_runs INTEGER NOT NULL DEFAULT 0,
	avg_duration_ms REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS risk_analysis (
	test_name TEXT PRIMARY KEY,
	risk_score REAL NOT NULL DEFAULT 0,
	risk_factors TEXT NOT NULL DEFAULT '{}',
	affected_by_changes INTEGER NOT NULL DEFAULT 0,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS failure_analyses (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id INTEGER NOT NULL REFERENCES test_runs(id) ON DELETE CASCADE,
	test_index INTEGER NOT NULL DEFAULT 0,
	test_name TEXT NOT NULL,
	likely_cause TEXT NOT NULL DEFAULT '',
	suspected_file TEXT,
	suspected_commit TEXT,
	confidence REAL NOT NULL DEFAULT 0.5,
	explanation TEXT NOT NULL DEFAULT '',
	suggested_fix TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_failure_analyses_run_id ON failure_analyses(run_id);
`

// columns added after the first release; migrate adds any that an older
// database lacks.
var columns = []struct {
	table, name, ddl string
}{
	{"test_runs", "duration_ms", "INTEGER NOT NULL DEFAULT 0"},
	{"test_runs", "confidence", "REAL NOT NULL DEFAULT 1"},
	{"test_runs", "command", "TEXT NOT NULL DEFAULT ''"},
	{"test_runs", "raw_output", "TEXT NOT NULL DEFAULT ''"},
	{"test_results", "test_index", "INTEGER NOT NULL DEFAULT 0"},
}

// Open opens (creating if needed) the ledger at path.
func Open(path string) (*Ledger, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ledger: create %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("ledger: open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: create schema: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: migrate: %w", err)
	}
	return &Ledger{db: db, Now: time.Now}, nil
}

// Close releases the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

func migrate(db *sql.DB) error {
	for _, c := range columns {
		var count int
		err := db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, c.table, c.name).Scan(&count)
		if err != nil {
			return fmt.Errorf("check %s.%s column: %w", c.table, c.name, err)
		}
		if count > 0 {
			continue
		}
		if _, err := db.Exec(fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s %s`, c.table, c.name, c.ddl)); err != nil {
			return fmt.Errorf("add %s.%s column: %w", c.table, c.name, err)
		}
	}
	return nil
}

func (l *Ledger) stamp() string {
	return formatTime(l.Now())
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t := parseTime(s.String)
	if t.IsZero() {
		return nil
	}
	return &t
}

// withTx runs fn in a transaction, rolling back on error.
func (l *Ledger) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ledger: begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ledger: commit: %w", err)
	}
	return nil
}

// ClearHistory deletes every stored row.
func (l *Ledger) ClearHistory(ctx context.Context) error {
	return l.withTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"failure_analyses", "test_results", "test_runs", "test_history", "risk_analysis"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("ledger: clear %s: %w", table, err)
			}
		}
		return nil
	})
}
