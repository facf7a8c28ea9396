// Package chunker splits extracted text into overlapping batches.
//
// Chunking is a pure function of its inputs: the same text and options
// always produce byte-identical batch boundaries. Token counts everywhere
// in this module are the same cheap estimate (CharsPerToken characters per
// token) so batch sizing and progress estimation stay coherent.
package chunker

import (
	"errors"

	"github.com/google/uuid"

	"github.com/chirag127/spokablepdf/model"
)

// CharsPerToken is the fixed character-to-token ratio used for all token
// estimates (4 characters ~ 1 token).
const CharsPerToken = 4

// Default window sizes, in tokens.
const (
	DefaultBatchTokens   = 10000
	DefaultOverlapTokens = 200
)

// Options configures the chunker.
type Options struct {
	// BatchTokens is the window size per batch, in estimated tokens.
	// <=0 uses DefaultBatchTokens.
	BatchTokens int
	// OverlapTokens is how far each window reaches back into the previous
	// one, in estimated tokens. <0 uses DefaultOverlapTokens; an overlap
	// that would prevent forward progress is clamped.
	OverlapTokens int
}

// DefaultOptions returns the default chunking configuration.
func DefaultOptions() Options {
	return Options{
		BatchTokens:   DefaultBatchTokens,
		OverlapTokens: DefaultOverlapTokens,
	}
}

// EstimateTokens estimates the token count of text using the fixed
// character ratio. Non-empty text estimates to at least one token.
func EstimateTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	tokens := len(text) / CharsPerToken
	if tokens == 0 {
		tokens = 1
	}
	return tokens
}

// Chunk splits text into an ordered list of overlapping batches and
// attaches each image to the batch whose range contains its offset.
//
// Starting at offset 0, each window spans BatchTokens*CharsPerToken
// characters; the next window starts OverlapTokens*CharsPerToken before
// the previous end. If the overlap is at least the batch size the next
// start is clamped to the previous end, which guarantees forward progress
// and termination. The union of batch ranges covers all of text.
func Chunk(text string, images []model.ImagePart, opts Options) ([]model.Batch, error) {
	if opts.BatchTokens <= 0 {
		opts.BatchTokens = DefaultBatchTokens
	}
	if opts.OverlapTokens < 0 {
		opts.OverlapTokens = DefaultOverlapTokens
	}
	if len(text) == 0 {
		return nil, errors.New("chunker: empty text")
	}

	batchChars := opts.BatchTokens * CharsPerToken
	overlapChars := opts.OverlapTokens * CharsPerToken

	var batches []model.Batch
	seq := 1
	start := 0
	for start < len(text) {
		end := start + batchChars
		if end > len(text) {
			end = len(text)
		}

		slice := text[start:end]
		batches = append(batches, model.Batch{
			ID:             uuid.NewString(),
			SequenceNumber: seq,
			Text:           slice,
			StartOffset:    start,
			EndOffset:      end,
			ApproxTokens:   EstimateTokens(slice),
			Images:         imagesInRange(images, start, end),
		})
		seq++

		if end == len(text) {
			break
		}

		next := end - overlapChars
		if next <= start {
			// Overlap >= batch size: clamp to the previous end so the
			// window always advances.
			next = end
		}
		start = next
	}

	return batches, nil
}

// imagesInRange returns the images whose offset falls in [start, end).
func imagesInRange(images []model.ImagePart, start, end int) []model.ImagePart {
	var out []model.ImagePart
	for _, img := range images {
		if img.Offset >= start && img.Offset < end {
			out = append(out, img)
		}
	}
	return out
}
