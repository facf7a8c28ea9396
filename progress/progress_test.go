package progress

import (
	"testing"
	"time"

	"github.com/chirag127/spokablepdf/model"
)

// fakeClock advances only when told to.
type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestTrackerPercentAndETA(t *testing.T) {
	clock := newFakeClock()
	tr := newTracker(clock.Now)

	tr.Start(10)
	status := tr.Status()
	if status.Stage != StageRunning {
		t.Errorf("stage = %v, want running", status.Stage)
	}
	if status.Percent != 0 {
		t.Errorf("percent = %v, want 0", status.Percent)
	}
	if status.ETAKnown {
		t.Error("ETA should be undefined before the first step completes")
	}

	clock.Advance(40 * time.Second)
	tr.UpdateStep(4)
	status = tr.Status()
	if status.Percent != 40 {
		t.Errorf("percent = %v, want 40", status.Percent)
	}
	if !status.ETAKnown {
		t.Fatal("ETA should be known after steps complete")
	}
	// 40s for 4 steps extrapolates to 60s for the remaining 6.
	if status.ETA != 60*time.Second {
		t.Errorf("ETA = %v, want 60s", status.ETA)
	}
	if status.Elapsed != 40*time.Second {
		t.Errorf("elapsed = %v, want 40s", status.Elapsed)
	}
}

func TestTrackerPercentClamped(t *testing.T) {
	tr := newTracker(newFakeClock().Now)
	tr.Start(5)
	tr.UpdateStep(7) // more steps than total should never exceed 100
	if status := tr.Status(); status.Percent != 100 {
		t.Errorf("percent = %v, want clamped to 100", status.Percent)
	}
}

func TestTrackerElapsedExcludesPauses(t *testing.T) {
	clock := newFakeClock()
	tr := newTracker(clock.Now)

	tr.Start(4)
	clock.Advance(10 * time.Second)
	tr.UpdateStep(2)

	tr.Pause()
	if status := tr.Status(); status.Stage != StagePaused {
		t.Errorf("stage = %v, want paused", status.Stage)
	}
	clock.Advance(5 * time.Minute) // paused time must not count
	if status := tr.Status(); status.Elapsed != 10*time.Second {
		t.Errorf("elapsed while paused = %v, want 10s", status.Elapsed)
	}

	tr.Resume()
	clock.Advance(10 * time.Second)
	status := tr.Status()
	if status.Stage != StageRunning {
		t.Errorf("stage = %v, want running", status.Stage)
	}
	if status.Elapsed != 20*time.Second {
		t.Errorf("elapsed after resume = %v, want 20s", status.Elapsed)
	}
	// ETA is based on active time only: 20s for 2 steps, 2 remaining.
	if !status.ETAKnown || status.ETA != 20*time.Second {
		t.Errorf("ETA = %v (known=%v), want 20s", status.ETA, status.ETAKnown)
	}
}

func TestTrackerPauseIsIdempotentOutsideRunning(t *testing.T) {
	tr := newTracker(newFakeClock().Now)
	tr.Pause() // idle: no effect
	if status := tr.Status(); status.Stage != StageIdle {
		t.Errorf("stage = %v, want idle", status.Stage)
	}
	tr.Start(1)
	tr.Complete()
	tr.Pause() // completed: no effect
	if status := tr.Status(); status.Stage != StageCompleted {
		t.Errorf("stage = %v, want completed", status.Stage)
	}
}

func TestTrackerSubscribersReceiveEveryMutation(t *testing.T) {
	tr := newTracker(newFakeClock().Now)

	var got []Snapshot
	unsubscribe := tr.Subscribe(func(s Snapshot) { got = append(got, s) })

	tr.Start(3)
	tr.UpdateStep(1)
	tr.Complete()
	if len(got) != 3 {
		t.Fatalf("received %d snapshots, want 3", len(got))
	}
	last := got[len(got)-1]
	if last.Stage != StageCompleted || last.CurrentStep != 3 || last.Percent != 100 {
		t.Errorf("final snapshot = %+v", last)
	}

	unsubscribe()
	tr.Start(3)
	if len(got) != 3 {
		t.Errorf("received %d snapshots after unsubscribe, want still 3", len(got))
	}
}

func TestTrackerPanickingSubscriberDoesNotBlockOthers(t *testing.T) {
	tr := newTracker(newFakeClock().Now)

	calls := 0
	tr.Subscribe(func(Snapshot) { panic("bad subscriber") })
	tr.Subscribe(func(Snapshot) { calls++ })

	tr.Start(1)
	tr.Complete()
	if calls != 2 {
		t.Errorf("healthy subscriber called %d times, want 2", calls)
	}
}

func TestTrackerBatchStateCounts(t *testing.T) {
	tr := newTracker(newFakeClock().Now)
	tr.Start(3)
	tr.UpdateBatchStatus("a", model.BatchPending)
	tr.UpdateBatchStatus("b", model.BatchPending)
	tr.UpdateBatchStatus("c", model.BatchPending)
	tr.UpdateBatchStatus("a", model.BatchProcessing)
	tr.UpdateBatchStatus("a", model.BatchSuccess)
	tr.UpdateBatchStatus("b", model.BatchFailed)
	tr.RecordError()

	status := tr.Status()
	want := map[model.BatchState]int{
		model.BatchPending: 1,
		model.BatchSuccess: 1,
		model.BatchFailed:  1,
	}
	for state, n := range want {
		if status.BatchStates[state] != n {
			t.Errorf("state %v count = %d, want %d", state, status.BatchStates[state], n)
		}
	}
	if status.Errors != 1 {
		t.Errorf("errors = %d, want 1", status.Errors)
	}
}

func TestTrackerFailCarriesReason(t *testing.T) {
	tr := newTracker(newFakeClock().Now)
	tr.Start(2)
	tr.Fail("backend unreachable")
	status := tr.Status()
	if status.Stage != StageFailed || status.Message != "backend unreachable" {
		t.Errorf("status = %+v", status)
	}
}

func TestStageString(t *testing.T) {
	cases := map[Stage]string{
		StageIdle:      "idle",
		StageRunning:   "running",
		StagePaused:    "paused",
		StageCompleted: "completed",
		StageFailed:    "failed",
		Stage(42):      "unknown",
	}
	for stage, want := range cases {
		if got := stage.String(); got != want {
			t.Errorf("Stage(%d).String() = %q, want %q", stage, got, want)
		}
	}
}
