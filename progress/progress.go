// Package progress derives job progress from scheduler events.
//
// The tracker is observer-only: it never influences scheduling. Every
// mutating call publishes a snapshot to all subscribers; a panicking
// subscriber does not stop notification of the rest.
package progress

import (
	"sync"
	"time"

	"github.com/chirag127/spokablepdf/model"
)

// Stage is the coarse lifecycle of a job.
type Stage int

const (
	StageIdle Stage = iota
	StageRunning
	StagePaused
	StageCompleted
	StageFailed
)

// String returns the lowercase stage name.
func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageRunning:
		return "running"
	case StagePaused:
		return "paused"
	case StageCompleted:
		return "completed"
	case StageFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Snapshot is a point-in-time view of job progress.
type Snapshot struct {
	Stage       Stage
	Message     string // failure reason when Stage == StageFailed
	TotalSteps  int
	CurrentStep int
	Percent     float64       // clamped to [0,100]
	Elapsed     time.Duration // excludes paused intervals
	ETA         time.Duration // linear extrapolation, valid when ETAKnown
	ETAKnown    bool          // false while no step has completed
	BatchStates map[model.BatchState]int
	Errors      int
}

// Subscriber receives a snapshot after every mutating tracker call.
type Subscriber func(Snapshot)

// Tracker accumulates progress state. Safe for concurrent use.
type Tracker struct {
	mu          sync.Mutex
	clock       func() time.Time
	stage       Stage
	message     string
	totalSteps  int
	currentStep int
	startedAt   time.Time
	pausedAt    time.Time
	pausedTotal time.Duration
	batchStates map[string]model.BatchState
	errors      int

	subs    map[int]Subscriber
	nextSub int
}

// NewTracker creates an idle tracker.
func NewTracker() *Tracker {
	return newTracker(time.Now)
}

// newTracker allows tests to inject a clock.
func newTracker(clock func() time.Time) *Tracker {
	return &Tracker{
		clock:       clock,
		batchStates: make(map[string]model.BatchState),
		subs:        make(map[int]Subscriber),
	}
}

// Subscribe registers a subscriber and returns its unsubscribe func.
func (t *Tracker) Subscribe(fn Subscriber) func() {
	t.mu.Lock()
	id := t.nextSub
	t.nextSub++
	t.subs[id] = fn
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		delete(t.subs, id)
		t.mu.Unlock()
	}
}

// Start resets the tracker for a run of totalSteps steps.
func (t *Tracker) Start(totalSteps int) {
	t.mu.Lock()
	t.stage = StageRunning
	t.message = ""
	t.totalSteps = totalSteps
	t.currentStep = 0
	t.startedAt = t.clock()
	t.pausedAt = time.Time{}
	t.pausedTotal = 0
	t.batchStates = make(map[string]model.BatchState)
	t.errors = 0
	t.notifyLocked()
}

// UpdateStep records that n steps are done.
func (t *Tracker) UpdateStep(n int) {
	t.mu.Lock()
	t.currentStep = n
	t.notifyLocked()
}

// UpdateBatchStatus records the state of one batch.
func (t *Tracker) UpdateBatchStatus(batchID string, state model.BatchState) {
	t.mu.Lock()
	t.batchStates[batchID] = state
	t.notifyLocked()
}

// RecordError bumps the error count.
func (t *Tracker) RecordError() {
	t.mu.Lock()
	t.errors++
	t.notifyLocked()
}

// Pause stops the elapsed clock. No-op unless running.
func (t *Tracker) Pause() {
	t.mu.Lock()
	if t.stage == StageRunning {
		t.stage = StagePaused
		t.pausedAt = t.clock()
	}
	t.notifyLocked()
}

// Resume restarts the elapsed clock after a pause.
func (t *Tracker) Resume() {
	t.mu.Lock()
	if t.stage == StagePaused {
		t.pausedTotal += t.clock().Sub(t.pausedAt)
		t.pausedAt = time.Time{}
		t.stage = StageRunning
	}
	t.notifyLocked()
}

// Complete marks the job finished.
func (t *Tracker) Complete() {
	t.mu.Lock()
	t.stage = StageCompleted
	t.currentStep = t.totalSteps
	t.notifyLocked()
}

// Fail marks the job failed with a reason.
func (t *Tracker) Fail(reason string) {
	t.mu.Lock()
	t.stage = StageFailed
	t.message = reason
	t.notifyLocked()
}

// Status returns the current snapshot.
func (t *Tracker) Status() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

// snapshotLocked builds a snapshot. Caller holds t.mu.
func (t *Tracker) snapshotLocked() Snapshot {
	snap := Snapshot{
		Stage:       t.stage,
		Message:     t.message,
		TotalSteps:  t.totalSteps,
		CurrentStep: t.currentStep,
		Errors:      t.errors,
		BatchStates: make(map[model.BatchState]int),
	}
	for _, state := range t.batchStates {
		snap.BatchStates[state]++
	}

	if t.totalSteps > 0 {
		snap.Percent = float64(t.currentStep) / float64(t.totalSteps) * 100
		if snap.Percent < 0 {
			snap.Percent = 0
		}
		if snap.Percent > 100 {
			snap.Percent = 100
		}
	}

	if !t.startedAt.IsZero() {
		elapsed := t.clock().Sub(t.startedAt) - t.pausedTotal
		if t.stage == StagePaused && !t.pausedAt.IsZero() {
			elapsed -= t.clock().Sub(t.pausedAt)
		}
		if elapsed < 0 {
			elapsed = 0
		}
		snap.Elapsed = elapsed

		// ETA is a linear extrapolation from steps done so far;
		// undefined until the first step completes.
		if t.currentStep > 0 && t.totalSteps > 0 && t.currentStep <= t.totalSteps {
			remaining := t.totalSteps - t.currentStep
			snap.ETA = time.Duration(int64(elapsed) * int64(remaining) / int64(t.currentStep))
			snap.ETAKnown = true
		}
	}

	return snap
}

// notifyLocked publishes a snapshot to all subscribers and releases the
// lock. Subscribers run without the lock held; one panicking subscriber
// does not prevent delivery to the others.
func (t *Tracker) notifyLocked() {
	snap := t.snapshotLocked()
	subs := make([]Subscriber, 0, len(t.subs))
	for _, fn := range t.subs {
		subs = append(subs, fn)
	}
	t.mu.Unlock()

	for _, fn := range subs {
		func() {
			defer func() { _ = recover() }()
			fn(snap)
		}()
	}
}
