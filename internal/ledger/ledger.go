package ledger

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/simonhull/firebird-suite/hatch/internal/harness"
)

//go:embed schema.sql
var schemaSQL string

// Store records harness reports in a SQLite database.
type Store struct {
	db *sql.DB
}

var _ harness.Recorder = (*Store)(nil)

// Run is one recorded acquire/release cycle.
type Run struct {
	ID           int64
	SessionID    string
	Template     string
	Path         string
	Isolation    string
	Started      time.Time
	Finished     time.Time
	Passed       bool
	Error        string
	CleanupError string
	Stages       []Stage
}

// Stage is one recorded stage execution.
type Stage struct {
	Name     string
	Target   string
	Strict   bool
	ExitCode int
	Duration time.Duration
	Error    string
}

// Open creates or opens the ledger at path, creating parent directories.
// ":memory:" opens a private in-memory ledger.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create ledger directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to ledger: %w", err)
	}

	// One connection: SQLite has a single writer, and ":memory:" is per connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record writes a report and its stages in one transaction.
func (s *Store) Record(ctx context.Context, r *harness.Report) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs (session_id, template, path, isolation, started_at, finished_at, passed, error, cleanup_error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.SessionID, r.Template, r.Path, string(r.Isolation),
		r.Started.UnixMilli(), r.Finished.UnixMilli(), r.Passed(),
		errString(r.Err), errString(r.CleanupErr),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	runID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("run id: %w", err)
	}

	for i, st := range r.Stages {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO stages (run_id, position, name, target, strict, exit_code, duration_ms, error)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, i, st.Stage.Name, st.Stage.Target, st.Stage.Strict,
			st.ExitCode, st.Duration.Milliseconds(), errString(st.Err),
		)
		if err != nil {
			return fmt.Errorf("insert stage %s: %w", st.Stage.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Recent returns up to limit runs, newest first, with their stages.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, template, path, isolation, started_at, finished_at, passed, error, cleanup_error
		FROM runs
		ORDER BY started_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}

	var runs []Run
	for rows.Next() {
		var run Run
		var started, finished int64
		if err := rows.Scan(&run.ID, &run.SessionID, &run.Template, &run.Path, &run.Isolation,
			&started, &finished, &run.Passed, &run.Error, &run.CleanupError); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.Started = time.UnixMilli(started)
		run.Finished = time.UnixMilli(finished)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	rows.Close()

	// Stages are loaded after the runs cursor is closed; the pool has one connection
	for i := range runs {
		stages, err := s.stages(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Stages = stages
	}
	return runs, nil
}

func (s *Store) stages(ctx context.Context, runID int64) ([]Stage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, target, strict, exit_code, duration_ms, error
		FROM stages
		WHERE run_id = ?
		ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("query stages: %w", err)
	}
	defer rows.Close()

	var stages []Stage
	for rows.Next() {
		var st Stage
		var ms int64
		if err := rows.Scan(&st.Name, &st.Target, &st.Strict, &st.ExitCode, &ms, &st.Error); err != nil {
			return nil, fmt.Errorf("scan stage: %w", err)
		}
		st.Duration = time.Duration(ms) * time.Millisecond
		stages = append(stages, st)
	}
	return stages, rows.Err()
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
