// Engine - one narration job from extracted text to assembled output.
//
// Ties the pieces together: chunk the extraction, run the batches through
// the worker pool, optionally re-run failures serially, and assemble the
// ordered result. Progress is reported through an observer-only tracker;
// the engine itself never prints.

package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chirag127/spokablepdf/chunker"
	"github.com/chirag127/spokablepdf/llm"
	"github.com/chirag127/spokablepdf/model"
	"github.com/chirag127/spokablepdf/progress"
)

// DefaultPacingInterval is the minimum spacing between outbound calls
// when the options leave it unset.
const DefaultPacingInterval = 1 * time.Second

// DefaultInstruction is the narration instruction sent with every batch.
const DefaultInstruction = "Rewrite the following extracted document text as clear, natural, " +
	"speech-ready narration. Expand abbreviations, describe any referenced figures briefly, " +
	"and preserve the meaning and order of the source. Output only the narration."

// Options configures one narration job.
type Options struct {
	Chunk       chunker.Options
	Retry       RetryConfig
	Scheduler   SchedulerConfig
	Pacing      time.Duration // minimum interval between dispatches
	Tiers       []string      // model cascade, most capable first
	Instruction string
	Gen         llm.GenConfig
	// SerialRetry re-runs failed batches once at concurrency 1 after the
	// main pass.
	SerialRetry bool
}

// DefaultOptions returns defaults for a Gemini-backed narration job.
func DefaultOptions() Options {
	return Options{
		Chunk:       chunker.DefaultOptions(),
		Pacing:      DefaultPacingInterval,
		Tiers:       llm.ProviderGemini.DefaultTiers(),
		Instruction: DefaultInstruction,
	}
}

// Engine processes one job at a time.
type Engine struct {
	client  *llm.Client
	creds   *llm.CredentialSet
	opts    Options
	tracker *progress.Tracker

	mu    sync.Mutex
	sched *Scheduler // current pass, nil when idle
	step  int
}

// New creates an engine. Configuration is explicit; there are no ambient
// singletons behind it.
func New(client *llm.Client, creds *llm.CredentialSet, opts Options) *Engine {
	if opts.Pacing <= 0 {
		opts.Pacing = DefaultPacingInterval
	}
	if opts.Instruction == "" {
		opts.Instruction = DefaultInstruction
	}
	return &Engine{
		client:  client,
		creds:   creds,
		opts:    opts,
		tracker: progress.NewTracker(),
	}
}

// Tracker returns the progress tracker for subscription.
func (e *Engine) Tracker() *progress.Tracker {
	return e.tracker
}

// Run processes one extraction end to end and returns the assembled
// narration. Cancellation and partial failure still yield a best-effort
// assembly; the error is reserved for conditions that prevent the job
// from running at all.
func (e *Engine) Run(ctx context.Context, extraction model.Extraction) (Assembly, error) {
	batches, err := chunker.Chunk(extraction.Text, extraction.Images, e.opts.Chunk)
	if err != nil {
		e.tracker.Fail(err.Error())
		return Assembly{}, fmt.Errorf("chunking failed: %w", err)
	}

	runner := NewRunner(e.client, e.creds, e.opts.Tiers, e.opts.Instruction, e.opts.Gen, e.opts.Retry)
	sched := NewScheduler(runner, NewPacer(e.opts.Pacing), e.opts.Scheduler, e.callbacks())

	e.mu.Lock()
	e.sched = sched
	e.step = 0
	e.mu.Unlock()

	e.tracker.Start(len(batches))
	for _, b := range batches {
		e.tracker.UpdateBatchStatus(b.ID, model.BatchPending)
	}

	outcome, runErr := sched.Run(ctx, batches)

	if e.opts.SerialRetry && len(outcome.Failed) > 0 && !sched.Cancelled() && ctx.Err() == nil {
		// The retry pass re-counts the failed batches as steps.
		e.mu.Lock()
		e.step = len(outcome.Completed)
		e.mu.Unlock()
		for id := range outcome.Failed {
			e.tracker.UpdateBatchStatus(id, model.BatchPending)
		}
		outcome, runErr = sched.RetryFailed(ctx)
	}

	e.mu.Lock()
	e.sched = nil
	e.mu.Unlock()

	assembly := Assemble(batches, outcome.Completed, outcome.Failed)

	switch {
	case runErr != nil:
		e.tracker.Fail(runErr.Error())
	case ctx.Err() != nil:
		e.tracker.Fail(fmt.Sprintf("job cancelled: %v", ctx.Err()))
	case sched.Cancelled():
		e.tracker.Fail("job cancelled")
	default:
		e.tracker.Complete()
	}

	return assembly, nil
}

// Pause suspends the workers without discarding queue state.
func (e *Engine) Pause() {
	e.mu.Lock()
	sched := e.sched
	e.mu.Unlock()
	if sched != nil {
		sched.Pause()
	}
	e.tracker.Pause()
}

// Resume continues a paused job from exactly where it left off.
func (e *Engine) Resume() {
	e.mu.Lock()
	sched := e.sched
	e.mu.Unlock()
	if sched != nil {
		sched.Resume()
	}
	e.tracker.Resume()
}

// Cancel cooperatively stops the current job. In-flight calls resolve
// naturally.
func (e *Engine) Cancel() {
	e.mu.Lock()
	sched := e.sched
	e.mu.Unlock()
	if sched != nil {
		sched.Cancel()
	}
}

// callbacks builds scheduler callbacks that feed the progress tracker.
func (e *Engine) callbacks() Callbacks {
	advance := func() int {
		e.mu.Lock()
		e.step++
		n := e.step
		e.mu.Unlock()
		return n
	}
	return Callbacks{
		OnStart: func(batch model.Batch, worker int) {
			e.tracker.UpdateBatchStatus(batch.ID, model.BatchProcessing)
		},
		OnComplete: func(batch model.Batch, status model.BatchStatus) {
			e.tracker.UpdateBatchStatus(batch.ID, model.BatchSuccess)
			e.tracker.UpdateStep(advance())
		},
		OnFailed: func(batch model.Batch, status model.BatchStatus) {
			e.tracker.UpdateBatchStatus(batch.ID, model.BatchFailed)
			e.tracker.RecordError()
			e.tracker.UpdateStep(advance())
		},
	}
}
