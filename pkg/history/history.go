// Package history persists run reports in a local SQLite database so past
// generate/validate/package runs can be inspected and aggregated.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hoiltd/azmp/pkg/report"
)

// Store manages the run history database
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (and initializes if needed) the history database at dbPath
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	return store, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

// initSchema creates the database tables
func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		target TEXT NOT NULL,
		status TEXT NOT NULL,
		duration_ms INTEGER NOT NULL,
		retries INTEGER NOT NULL,
		detail TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_kind ON runs(kind);
	CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record stores one run report
func (s *Store) Record(r *report.RunReport) error {
	_, err := s.db.Exec(
		`INSERT INTO runs (id, kind, target, status, duration_ms, retries, detail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Kind, r.Target, r.FinalStatus,
		r.Duration.Milliseconds(), r.Retries, r.Detail, r.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// Recent returns the most recent runs, newest first
func (s *Store) Recent(limit int) ([]*report.RunReport, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT id, kind, target, status, duration_ms, retries, detail, created_at
		 FROM runs ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*report.RunReport
	for rows.Next() {
		var r report.RunReport
		var durationMs int64
		if err := rows.Scan(&r.RunID, &r.Kind, &r.Target, &r.FinalStatus,
			&durationMs, &r.Retries, &r.Detail, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.Duration = time.Duration(durationMs) * time.Millisecond
		runs = append(runs, &r)
	}
	return runs, rows.Err()
}

// KindStats aggregates outcomes for one run kind
type KindStats struct {
	Kind        string
	TotalRuns   int
	Succeeded   int
	Failed      int
	SuccessRate float64
	AvgDuration time.Duration
}

// Summary aggregates outcomes per run kind over the whole history
func (s *Store) Summary() ([]KindStats, error) {
	rows, err := s.db.Query(
		`SELECT kind,
		        COUNT(*),
		        SUM(CASE WHEN status = 'succeeded' THEN 1 ELSE 0 END),
		        AVG(duration_ms)
		 FROM runs GROUP BY kind ORDER BY kind`)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate runs: %w", err)
	}
	defer rows.Close()

	var stats []KindStats
	for rows.Next() {
		var entry KindStats
		var avgMs float64
		if err := rows.Scan(&entry.Kind, &entry.TotalRuns, &entry.Succeeded, &avgMs); err != nil {
			return nil, fmt.Errorf("failed to scan summary: %w", err)
		}
		entry.Failed = entry.TotalRuns - entry.Succeeded
		if entry.TotalRuns > 0 {
			entry.SuccessRate = float64(entry.Succeeded) / float64(entry.TotalRuns)
		}
		entry.AvgDuration = time.Duration(avgMs) * time.Millisecond
		stats = append(stats, entry)
	}
	return stats, rows.Err()
}
