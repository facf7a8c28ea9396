// SQLite-backed job history.
//
// Information Hiding:
// - SQLite connection management hidden behind HistoryStore
// - Schema details encapsulated
// - Thread-safe via sql.DB's built-in connection pooling

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SqliteHistory implements HistoryStore using a SQLite database file.
type SqliteHistory struct {
	db *sql.DB
}

// OpenSqlite opens or creates a SQLite database at the given path.
// Creates parent directories if they don't exist.
func OpenSqlite(path string) (*SqliteHistory, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	store := &SqliteHistory{db: db}
	if err := store.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// NewSqliteInMemory creates an in-memory database (useful for testing).
func NewSqliteInMemory() (*SqliteHistory, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite: %w", err)
	}

	store := &SqliteHistory{db: db}
	if err := store.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *SqliteHistory) Close() error {
	return s.db.Close()
}

func (s *SqliteHistory) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS jobs (
			job_id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			provider TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL,
			stage TEXT NOT NULL,
			total_batches INTEGER NOT NULL,
			succeeded INTEGER NOT NULL,
			failed INTEGER NOT NULL,
			narration TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_jobs_created
		ON jobs(created_at DESC);

		CREATE TABLE IF NOT EXISTS batch_failures (
			job_id TEXT NOT NULL,
			sequence_number INTEGER NOT NULL,
			error TEXT NOT NULL,
			FOREIGN KEY (job_id) REFERENCES jobs(job_id) ON DELETE CASCADE,
			UNIQUE(job_id, sequence_number)
		);

		CREATE INDEX IF NOT EXISTS idx_failures_job
		ON batch_failures(job_id, sequence_number);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// SaveJob inserts or replaces one job record.
func (s *SqliteHistory) SaveJob(ctx context.Context, record JobRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	// Rollback is safe even after Commit() - it becomes a no-op
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO jobs
		(job_id, source, provider, created_at, duration_ms, stage,
		 total_batches, succeeded, failed, narration)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.Source, record.Provider, record.CreatedAt.UnixMilli(),
		record.Duration.Milliseconds(), record.Stage,
		record.TotalBatches, record.Succeeded, record.Failed, record.Narration)
	if err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}

	_, err = tx.ExecContext(ctx, "DELETE FROM batch_failures WHERE job_id = ?", record.ID)
	if err != nil {
		return fmt.Errorf("failed to clear old failures: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO batch_failures (job_id, sequence_number, error) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare insert statement: %w", err)
	}
	defer stmt.Close()

	for _, failure := range record.Failures {
		if _, err := stmt.ExecContext(ctx, record.ID, failure.SequenceNumber, failure.Error); err != nil {
			return fmt.Errorf("failed to insert failure: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// LoadJob loads one job with its narration and failure report.
func (s *SqliteHistory) LoadJob(ctx context.Context, id string) (JobRecord, error) {
	var record JobRecord
	var createdAt, durationMs int64

	err := s.db.QueryRowContext(ctx, `
		SELECT job_id, source, provider, created_at, duration_ms, stage,
		       total_batches, succeeded, failed, narration
		FROM jobs WHERE job_id = ?`, id).Scan(
		&record.ID, &record.Source, &record.Provider, &createdAt, &durationMs,
		&record.Stage, &record.TotalBatches, &record.Succeeded, &record.Failed,
		&record.Narration)
	if errors.Is(err, sql.ErrNoRows) {
		return JobRecord{}, ErrJobNotFound
	}
	if err != nil {
		return JobRecord{}, fmt.Errorf("failed to query job: %w", err)
	}
	record.CreatedAt = time.UnixMilli(createdAt)
	record.Duration = time.Duration(durationMs) * time.Millisecond

	rows, err := s.db.QueryContext(ctx, `
		SELECT sequence_number, error FROM batch_failures
		WHERE job_id = ? ORDER BY sequence_number ASC`, id)
	if err != nil {
		return JobRecord{}, fmt.Errorf("failed to query failures: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var failure FailureRecord
		if err := rows.Scan(&failure.SequenceNumber, &failure.Error); err != nil {
			return JobRecord{}, fmt.Errorf("failed to scan failure: %w", err)
		}
		record.Failures = append(record.Failures, failure)
	}
	if err := rows.Err(); err != nil {
		return JobRecord{}, fmt.Errorf("error iterating failures: %w", err)
	}

	return record, nil
}

// ListJobs lists all jobs, most recent first.
func (s *SqliteHistory) ListJobs(ctx context.Context) ([]JobSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT job_id, source, provider, created_at, stage,
		       total_batches, succeeded, failed
		FROM jobs ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	summaries := []JobSummary{} // empty slice, not nil
	for rows.Next() {
		var summary JobSummary
		var createdAt int64
		if err := rows.Scan(&summary.ID, &summary.Source, &summary.Provider,
			&createdAt, &summary.Stage, &summary.TotalBatches,
			&summary.Succeeded, &summary.Failed); err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		summary.CreatedAt = time.UnixMilli(createdAt)
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating jobs: %w", err)
	}

	return summaries, nil
}

// DeleteJob removes one job and its failure rows.
func (s *SqliteHistory) DeleteJob(ctx context.Context, id string) error {
	// Foreign keys are not always enforced; delete the child rows too.
	if _, err := s.db.ExecContext(ctx, "DELETE FROM batch_failures WHERE job_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete failures: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM jobs WHERE job_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	return nil
}

// Verify SqliteHistory implements HistoryStore
var _ HistoryStore = (*SqliteHistory)(nil)
