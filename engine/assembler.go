// Result assembly - ordering completed outputs by original position.
//
// Workers finish in whatever order concurrency allows; batch 3 may
// complete before batch 1. The assembler walks the original batch list in
// sequence order, so the final text always matches submission order.

package engine

import (
	"strings"

	"github.com/chirag127/spokablepdf/model"
)

// ParagraphSeparator joins successive batch outputs in the final text.
const ParagraphSeparator = "\n\n"

// BatchFailure describes one batch that produced no output.
type BatchFailure struct {
	BatchID        string
	SequenceNumber int
	Error          string
}

// Assembly is the final job output: the ordered narration, summary
// statistics, and the failure report for a later serial retry pass.
type Assembly struct {
	Text     string
	Stats    model.JobStats
	Failures []BatchFailure
}

// Assemble concatenates successful batch outputs in sequence order.
// Batches without a successful output are omitted from the text but
// retained in the failure report.
func Assemble(batches []model.Batch, completed, failed map[string]model.BatchStatus) Assembly {
	var parts []string
	var failures []BatchFailure

	for _, b := range batches {
		if st, ok := completed[b.ID]; ok {
			parts = append(parts, st.Output)
			continue
		}
		failure := BatchFailure{BatchID: b.ID, SequenceNumber: b.SequenceNumber}
		if st, ok := failed[b.ID]; ok {
			failure.Error = st.Error
		} else {
			failure.Error = "not processed"
		}
		failures = append(failures, failure)
	}

	return Assembly{
		Text: strings.Join(parts, ParagraphSeparator),
		Stats: model.JobStats{
			TotalBatches: len(batches),
			Succeeded:    len(parts),
			Failed:       len(batches) - len(parts),
		},
		Failures: failures,
	}
}
