package chunker

import (
	"strings"
	"testing"

	"github.com/chirag127/spokablepdf/model"
)

func TestChunkBoundariesTwoBatches(t *testing.T) {
	text := strings.Repeat("a", 45000)

	batches, err := Chunk(text, nil, Options{BatchTokens: 10000, OverlapTokens: 200})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batches) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(batches))
	}

	if batches[0].StartOffset != 0 || batches[0].EndOffset != 40000 {
		t.Errorf("batch 1 range = [%d,%d), want [0,40000)", batches[0].StartOffset, batches[0].EndOffset)
	}
	if batches[1].StartOffset != 39200 || batches[1].EndOffset != 45000 {
		t.Errorf("batch 2 range = [%d,%d), want [39200,45000)", batches[1].StartOffset, batches[1].EndOffset)
	}
	if batches[0].SequenceNumber != 1 || batches[1].SequenceNumber != 2 {
		t.Errorf("sequence numbers = %d,%d, want 1,2", batches[0].SequenceNumber, batches[1].SequenceNumber)
	}
}

func TestChunkCoversAllText(t *testing.T) {
	cases := []struct {
		name    string
		length  int
		batch   int
		overlap int
	}{
		{"single batch", 100, 1000, 50},
		{"exact multiple", 8000, 1000, 100},
		{"ragged tail", 8001, 1000, 100},
		{"tiny batches", 5000, 10, 2},
		{"no overlap", 5000, 500, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			text := strings.Repeat("x", tc.length)
			batches, err := Chunk(text, nil, Options{BatchTokens: tc.batch, OverlapTokens: tc.overlap})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			covered := make([]bool, tc.length)
			prevSeq := 0
			for _, b := range batches {
				if b.StartOffset >= b.EndOffset {
					t.Fatalf("batch %d has empty range [%d,%d)", b.SequenceNumber, b.StartOffset, b.EndOffset)
				}
				if b.SequenceNumber != prevSeq+1 {
					t.Fatalf("sequence numbers not strictly increasing: %d after %d", b.SequenceNumber, prevSeq)
				}
				prevSeq = b.SequenceNumber
				if b.Text != text[b.StartOffset:b.EndOffset] {
					t.Fatalf("batch %d text does not match its range", b.SequenceNumber)
				}
				for i := b.StartOffset; i < b.EndOffset; i++ {
					covered[i] = true
				}
			}
			for i, ok := range covered {
				if !ok {
					t.Fatalf("offset %d not covered by any batch", i)
				}
			}
		})
	}
}

func TestChunkDeterministicBoundaries(t *testing.T) {
	text := strings.Repeat("lorem ipsum dolor sit amet ", 2000)
	opts := Options{BatchTokens: 500, OverlapTokens: 50}

	first, err := Chunk(text, nil, opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := Chunk(text, nil, opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("batch counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].StartOffset != second[i].StartOffset || first[i].EndOffset != second[i].EndOffset {
			t.Errorf("batch %d boundaries differ: [%d,%d) vs [%d,%d)",
				i+1, first[i].StartOffset, first[i].EndOffset, second[i].StartOffset, second[i].EndOffset)
		}
		if first[i].Text != second[i].Text {
			t.Errorf("batch %d text differs between runs", i+1)
		}
	}
}

func TestChunkOverlapClampedToAdvance(t *testing.T) {
	// Overlap larger than the batch size must not loop forever.
	text := strings.Repeat("y", 1000)
	batches, err := Chunk(text, nil, Options{BatchTokens: 10, OverlapTokens: 50})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(batches) > len(text) {
		t.Fatalf("chunking produced %d batches for %d chars", len(batches), len(text))
	}
	for i := 1; i < len(batches); i++ {
		if batches[i].StartOffset < batches[i-1].EndOffset-40 {
			t.Errorf("window %d did not advance: start %d after end %d",
				i+1, batches[i].StartOffset, batches[i-1].EndOffset)
		}
		if batches[i].StartOffset <= batches[i-1].StartOffset {
			t.Fatalf("window %d start %d did not move past previous start %d",
				i+1, batches[i].StartOffset, batches[i-1].StartOffset)
		}
	}
	last := batches[len(batches)-1]
	if last.EndOffset != len(text) {
		t.Errorf("final batch ends at %d, want %d", last.EndOffset, len(text))
	}
}

func TestChunkAttachesImagesByOffset(t *testing.T) {
	text := strings.Repeat("z", 45000)
	images := []model.ImagePart{
		{Page: 1, MIMEType: "image/png", Offset: 0},
		{Page: 2, MIMEType: "image/png", Offset: 39500},
		{Page: 3, MIMEType: "image/jpeg", Offset: 44000},
	}

	batches, err := Chunk(text, images, Options{BatchTokens: 10000, OverlapTokens: 200})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batches) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(batches))
	}

	if len(batches[0].Images) != 2 {
		t.Errorf("batch 1 has %d images, want 2 (pages 1 and 2)", len(batches[0].Images))
	}
	// Page 2 sits in the overlap region and belongs to both windows.
	if len(batches[1].Images) != 2 {
		t.Errorf("batch 2 has %d images, want 2 (pages 2 and 3)", len(batches[1].Images))
	}
}

func TestChunkEmptyText(t *testing.T) {
	if _, err := Chunk("", nil, DefaultOptions()); err == nil {
		t.Error("expected error for empty text")
	}
}

func TestChunkUniqueIDs(t *testing.T) {
	text := strings.Repeat("q", 10000)
	batches, err := Chunk(text, nil, Options{BatchTokens: 100, OverlapTokens: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	seen := make(map[string]bool, len(batches))
	for _, b := range batches {
		if b.ID == "" {
			t.Fatal("batch has empty ID")
		}
		if seen[b.ID] {
			t.Fatalf("duplicate batch ID %s", b.ID)
		}
		seen[b.ID] = true
	}
}

func TestEstimateTokens(t *testing.T) {
	cases := []struct {
		text string
		want int
	}{
		{"", 0},
		{"ab", 1},
		{"abcd", 1},
		{strings.Repeat("a", 4000), 1000},
	}
	for _, tc := range cases {
		if got := EstimateTokens(tc.text); got != tc.want {
			t.Errorf("EstimateTokens(%d chars) = %d, want %d", len(tc.text), got, tc.want)
		}
	}
}
