// Package history persists selection runs to a local SQLite database so
// past selections can be listed and inspected.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Entry is one recorded selection run.
type Entry struct {
	ID            string    `json:"id"`
	BaseRef       string    `json:"base_ref,omitempty"`
	CommitSHA     string    `json:"commit_sha,omitempty"`
	ChangedFiles  int       `json:"changed_files"`
	AffectedTests int       `json:"affected_tests"`
	Uncovered     int       `json:"uncovered"`
	Status        string    `json:"status,omitempty"` // runner status; empty when tests were not run
	ExitCode      int       `json:"exit_code"`
	DurationMs    int64     `json:"duration_ms"`
	CreatedAt     time.Time `json:"created_at"`
}

// Store is a thread-safe wrapper around a SQLite database of past runs.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open opens (or creates) the SQLite database at dbPath, applies the
// recommended PRAGMAs, runs any pending migrations and returns a ready
// *Store.
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("history: create db dir %q: %w", dir, err)
		}
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("history: open db %q: %w", dbPath, err)
	}

	// Only one writer at a time for SQLite.
	conn.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := conn.Exec(p); err != nil {
			conn.Close()
			return nil, fmt.Errorf("history: set pragma %q: %w", p, err)
		}
	}

	s := &Store{db: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("history: migrate: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// migrate ensures the schema_migrations table exists, then applies every
// unapplied Migration from the package-level Migrations slice.
func (s *Store) migrate() error {
	const createMigTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
		version     INTEGER PRIMARY KEY,
		applied_at  DATETIME DEFAULT CURRENT_TIMESTAMP,
		description TEXT
	)`
	if _, err := s.db.Exec(createMigTable); err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	for _, m := range Migrations {
		var exists int
		err := s.db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = ?", m.Version).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check migration v%d: %w", m.Version, err)
		}
		if exists > 0 {
			continue
		}

		if _, err := s.db.Exec(m.SQL); err != nil {
			return fmt.Errorf("apply migration v%d (%s): %w", m.Version, m.Description, err)
		}
		if _, err := s.db.Exec(
			"INSERT INTO schema_migrations (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			return fmt.Errorf("record migration v%d: %w", m.Version, err)
		}
	}
	return nil
}

// RecordRun inserts one run. Missing IDs and timestamps are filled in.
// report, when non-nil, is stored as JSON alongside the row.
func (s *Store) RecordRun(ctx context.Context, e *Entry, report any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	blob := "{}"
	if report != nil {
		b, err := json.Marshal(report)
		if err != nil {
			return fmt.Errorf("history: marshal report: %w", err)
		}
		blob = string(b)
	}

	const q = `INSERT OR REPLACE INTO runs
		(id, base_ref, commit_sha, changed_files, affected_tests, uncovered,
		 status, exit_code, duration_ms, report, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	if _, err := s.db.ExecContext(ctx, q,
		e.ID, e.BaseRef, e.CommitSHA, e.ChangedFiles, e.AffectedTests, e.Uncovered,
		e.Status, e.ExitCode, e.DurationMs, blob, e.CreatedAt,
	); err != nil {
		return fmt.Errorf("history: record run %q: %w", e.ID, err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}
	const q = `SELECT id, base_ref, commit_sha, changed_files, affected_tests, uncovered,
		status, exit_code, duration_ms, created_at
		FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("history: list runs: %w", err)
	}
	defer rows.Close()

	var result []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(
			&e.ID, &e.BaseRef, &e.CommitSHA, &e.ChangedFiles, &e.AffectedTests, &e.Uncovered,
			&e.Status, &e.ExitCode, &e.DurationMs, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("history: scan run row: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// GetRun returns one run and its stored report JSON.
func (s *Store) GetRun(ctx context.Context, id string) (*Entry, json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	const q = `SELECT id, base_ref, commit_sha, changed_files, affected_tests, uncovered,
		status, exit_code, duration_ms, report, created_at
		FROM runs WHERE id = ?`

	var e Entry
	var report string
	err := s.db.QueryRowContext(ctx, q, id).Scan(
		&e.ID, &e.BaseRef, &e.CommitSHA, &e.ChangedFiles, &e.AffectedTests, &e.Uncovered,
		&e.Status, &e.ExitCode, &e.DurationMs, &report, &e.CreatedAt,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("history: get run %q: %w", id, err)
	}
	return &e, json.RawMessage(report), nil
}

// Prune deletes all but the most recent keep runs and reports how many rows
// were removed.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if keep < 0 {
		keep = 0
	}
	const q = `DELETE FROM runs WHERE id NOT IN (
		SELECT id FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?
	)`
	res, err := s.db.ExecContext(ctx, q, keep)
	if err != nil {
		return 0, fmt.Errorf("history: prune runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("history: prune rows affected: %w", err)
	}
	return n, nil
}
