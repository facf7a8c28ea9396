// Package storage provides narration job history storage.
//
// Information Hiding:
// - Storage backend implementation details hidden behind interface
// - Allows swapping between memory and SQLite without API changes
// - Each storage implementation encapsulates its own data structures and protocols

package storage

import (
	"context"
	"errors"
	"time"
)

// ErrJobNotFound is returned when a job ID does not exist in the store.
var ErrJobNotFound = errors.New("job not found")

// JobRecord is one finished narration job: what ran, how it went, and
// the assembled output.
type JobRecord struct {
	ID        string
	Source    string // input document path or label
	Provider  string
	CreatedAt time.Time
	Duration  time.Duration
	Stage     string // "completed" or "failed"

	TotalBatches int
	Succeeded    int
	Failed       int

	Narration string
	Failures  []FailureRecord
}

// FailureRecord is one batch that produced no output.
type FailureRecord struct {
	SequenceNumber int
	Error          string
}

// JobSummary is a listing row: everything except the narration text and
// the failure details.
type JobSummary struct {
	ID        string
	Source    string
	Provider  string
	CreatedAt time.Time
	Stage     string

	TotalBatches int
	Succeeded    int
	Failed       int
}

// HistoryStore defines the interface for persisting finished jobs.
// Implementations can use different backends (memory, database).
type HistoryStore interface {
	// SaveJob inserts or replaces one job record.
	SaveJob(ctx context.Context, record JobRecord) error

	// LoadJob loads one job with its narration and failure report.
	// Returns ErrJobNotFound for unknown IDs.
	LoadJob(ctx context.Context, id string) (JobRecord, error)

	// ListJobs lists all jobs, most recent first.
	// Returns empty slice (not nil) when the store is empty.
	ListJobs(ctx context.Context) ([]JobSummary, error)

	// DeleteJob removes one job. Deleting an unknown ID is not an error.
	DeleteJob(ctx context.Context, id string) error

	// Close releases backend resources.
	Close() error
}
