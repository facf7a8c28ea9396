// Package model provides domain types shared across packages.
package model

import (
	"context"
	"time"
)

// Batch is one overlapping slice of the source text, submitted as a single
// completion request. Batches are created once by the chunker and never
// mutated afterwards; per-batch processing state lives in BatchStatus.
type Batch struct {
	ID             string
	SequenceNumber int // 1-based, defines output order
	Text           string
	StartOffset    int
	EndOffset      int
	ApproxTokens   int
	Images         []ImagePart // page images whose offset falls inside this batch
}

// ImagePart is an inline image supplied by the extractor, tagged with the
// page it came from and the character offset in the extracted text where
// that page begins.
type ImagePart struct {
	Page     int
	MIMEType string
	Data     []byte
	Offset   int
}

// BatchState describes where a batch is in its lifecycle.
type BatchState int

const (
	BatchPending BatchState = iota
	BatchProcessing
	BatchSuccess
	BatchFailed
)

// String returns the lowercase state name.
func (s BatchState) String() string {
	switch s {
	case BatchPending:
		return "pending"
	case BatchProcessing:
		return "processing"
	case BatchSuccess:
		return "success"
	case BatchFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// BatchStatus is the mutable processing record for one batch.
// Owned by the scheduler; one per batch.
type BatchStatus struct {
	BatchID     string
	State       BatchState
	Worker      int // worker that claimed the batch, -1 if unclaimed
	StartedAt   time.Time
	CompletedAt time.Time
	Output      string // set on success
	Error       string // set on failure
	Retries     int
}

// JobStats summarizes the outcome of a processing run.
type JobStats struct {
	TotalBatches int
	Succeeded    int
	Failed       int
}

// SuccessRate returns the fraction of batches that succeeded, in [0,1].
func (s JobStats) SuccessRate() float64 {
	if s.TotalBatches == 0 {
		return 0
	}
	return float64(s.Succeeded) / float64(s.TotalBatches)
}

// Extraction is the upstream collaborator's output: plain text plus an
// ordered list of page images. Images carry offsets into Text so the
// chunker can attach them to the covering batch.
type Extraction struct {
	Text   string
	Images []ImagePart
}

// Extractor supplies the text to be narrated. Implementations live outside
// the engine (PDF parsing is not this module's concern).
type Extractor interface {
	Extract(ctx context.Context, source string) (Extraction, error)
}

// Renderer consumes the assembled narration. Implementations live outside
// the engine (audio synthesis, document generation).
type Renderer interface {
	Render(ctx context.Context, text string, stats JobStats) error
}
