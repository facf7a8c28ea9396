package engine

import (
	"strings"
	"testing"

	"github.com/chirag127/spokablepdf/model"
)

func TestAssembleOrdersBySequenceNotCompletionOrder(t *testing.T) {
	batches := makeBatches(4)

	// Completion order was 3, 1, 4, 2; the map carries no order anyway,
	// so the outputs deliberately disagree with any insertion order.
	completed := map[string]model.BatchStatus{
		batches[2].ID: {BatchID: batches[2].ID, State: model.BatchSuccess, Output: "third"},
		batches[0].ID: {BatchID: batches[0].ID, State: model.BatchSuccess, Output: "first"},
		batches[3].ID: {BatchID: batches[3].ID, State: model.BatchSuccess, Output: "fourth"},
		batches[1].ID: {BatchID: batches[1].ID, State: model.BatchSuccess, Output: "second"},
	}

	assembly := Assemble(batches, completed, nil)
	want := strings.Join([]string{"first", "second", "third", "fourth"}, ParagraphSeparator)
	if assembly.Text != want {
		t.Errorf("text = %q, want %q", assembly.Text, want)
	}
	if len(assembly.Failures) != 0 {
		t.Errorf("failures = %v, want none", assembly.Failures)
	}
	if assembly.Stats.Succeeded != 4 || assembly.Stats.Failed != 0 {
		t.Errorf("stats = %+v", assembly.Stats)
	}
}

func TestAssembleOmitsFailuresButReportsThem(t *testing.T) {
	batches := makeBatches(3)
	completed := map[string]model.BatchStatus{
		batches[0].ID: {State: model.BatchSuccess, Output: "alpha"},
		batches[2].ID: {State: model.BatchSuccess, Output: "gamma"},
	}
	failed := map[string]model.BatchStatus{
		batches[1].ID: {State: model.BatchFailed, Error: "server exploded"},
	}

	assembly := Assemble(batches, completed, failed)
	if want := "alpha" + ParagraphSeparator + "gamma"; assembly.Text != want {
		t.Errorf("text = %q, want %q", assembly.Text, want)
	}
	if len(assembly.Failures) != 1 {
		t.Fatalf("failures = %v, want one entry", assembly.Failures)
	}
	f := assembly.Failures[0]
	if f.SequenceNumber != 2 || f.Error != "server exploded" {
		t.Errorf("failure = %+v", f)
	}
	if assembly.Stats.TotalBatches != 3 || assembly.Stats.Succeeded != 2 || assembly.Stats.Failed != 1 {
		t.Errorf("stats = %+v", assembly.Stats)
	}
}

func TestAssembleMarksUnclaimedBatchesNotProcessed(t *testing.T) {
	batches := makeBatches(2)
	completed := map[string]model.BatchStatus{
		batches[0].ID: {State: model.BatchSuccess, Output: "done"},
	}

	assembly := Assemble(batches, completed, nil)
	if assembly.Text != "done" {
		t.Errorf("text = %q, want %q", assembly.Text, "done")
	}
	if len(assembly.Failures) != 1 || assembly.Failures[0].Error != "not processed" {
		t.Errorf("failures = %v, want one 'not processed' entry", assembly.Failures)
	}
}

func TestAssembleEmptyInput(t *testing.T) {
	assembly := Assemble(nil, nil, nil)
	if assembly.Text != "" || len(assembly.Failures) != 0 || assembly.Stats.TotalBatches != 0 {
		t.Errorf("assembly = %+v, want empty", assembly)
	}
}
