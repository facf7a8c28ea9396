// Scheduler - the bounded worker pool.
//
// Workers share one pending queue, one completed map, and one failed map,
// all guarded by a single mutex; the dequeue is atomic so no batch is
// ever processed twice. Pause parks workers on a condition variable
// without consuming queue slots; cancel is cooperative: workers stop
// claiming batches between dequeues while calls already in flight resolve
// naturally.

package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/chirag127/spokablepdf/llm"
	"github.com/chirag127/spokablepdf/model"
)

// DefaultRateLimitShedThreshold is how many rate-limited batch failures
// the pool tolerates in one pass before shedding non-primary workers.
const DefaultRateLimitShedThreshold = 3

// Callbacks notify the caller about per-batch lifecycle events. Any field
// may be nil. Callbacks run on worker goroutines and must be fast.
type Callbacks struct {
	OnStart    func(batch model.Batch, worker int)
	OnComplete func(batch model.Batch, status model.BatchStatus)
	OnFailed   func(batch model.Batch, status model.BatchStatus)
}

// SchedulerConfig controls the worker pool.
type SchedulerConfig struct {
	// Concurrency is the worker count when Turbo is set. Collapses to 1
	// otherwise; lower concurrency is always a legal, slower alternative.
	Concurrency int
	// Turbo enables concurrency > 1.
	Turbo bool
	// RateLimitShedThreshold is the number of rate-limited failures in a
	// pass after which non-primary workers exit. <=0 uses the default.
	RateLimitShedThreshold int
}

func (c SchedulerConfig) workers() int {
	if !c.Turbo || c.Concurrency < 1 {
		return 1
	}
	return c.Concurrency
}

func (c SchedulerConfig) shedThreshold() int {
	if c.RateLimitShedThreshold <= 0 {
		return DefaultRateLimitShedThreshold
	}
	return c.RateLimitShedThreshold
}

// Outcome is the result of a processing pass.
type Outcome struct {
	Completed map[string]model.BatchStatus
	Failed    map[string]model.BatchStatus
	Pending   []model.Batch // batches never claimed (cancellation)
	Stats     model.JobStats
}

// Scheduler runs batches through a Processor with bounded concurrency.
// One scheduler processes one job at a time.
type Scheduler struct {
	proc  Processor
	pacer *Pacer
	cfg   SchedulerConfig
	cb    Callbacks

	mu          sync.Mutex
	cond        *sync.Cond
	queue       []model.Batch
	byID        map[string]model.Batch
	completed   map[string]model.BatchStatus
	failed      map[string]model.BatchStatus
	paused      bool
	cancelled   bool
	rateLimited int // rate-limit-classified failures this pass
}

// NewScheduler creates a scheduler. pacer may be nil to disable pacing.
func NewScheduler(proc Processor, pacer *Pacer, cfg SchedulerConfig, cb Callbacks) *Scheduler {
	if pacer == nil {
		pacer = NewPacer(0)
	}
	s := &Scheduler{
		proc:      proc,
		pacer:     pacer,
		cfg:       cfg,
		cb:        cb,
		byID:      make(map[string]model.Batch),
		completed: make(map[string]model.BatchStatus),
		failed:    make(map[string]model.BatchStatus),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Run processes all batches and returns the pass outcome. Batches are
// queued in sequence order; completion order depends on concurrency and
// is reconciled later by the assembler.
func (s *Scheduler) Run(ctx context.Context, batches []model.Batch) (Outcome, error) {
	s.mu.Lock()
	s.queue = append([]model.Batch(nil), batches...)
	for _, b := range batches {
		s.byID[b.ID] = b
	}
	s.rateLimited = 0
	s.mu.Unlock()

	return s.runPass(ctx, s.cfg.workers())
}

// RetryFailed re-queues every currently failed batch and reprocesses the
// lot with concurrency forced to 1, so a recovery pass cannot compound
// rate-limit pressure. Failed batches return to pending state first.
func (s *Scheduler) RetryFailed(ctx context.Context) (Outcome, error) {
	s.mu.Lock()
	retry := make([]model.Batch, 0, len(s.failed))
	for id := range s.failed {
		retry = append(retry, s.byID[id])
	}
	// Queue the serial pass in sequence order.
	sortBySequence(retry)
	s.queue = retry
	s.failed = make(map[string]model.BatchStatus)
	s.rateLimited = 0
	s.cancelled = false
	s.mu.Unlock()

	return s.runPass(ctx, 1)
}

func (s *Scheduler) runPass(ctx context.Context, workers int) (Outcome, error) {
	// Wake parked workers when the caller's context dies.
	watchDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			s.cond.Broadcast()
			s.mu.Unlock()
		case <-watchDone:
		}
	}()

	g := new(errgroup.Group)
	for w := 0; w < workers; w++ {
		worker := w
		g.Go(func() error {
			s.workerLoop(ctx, worker)
			return nil
		})
	}
	err := g.Wait()
	close(watchDone)

	return s.outcome(), err
}

// workerLoop claims batches until the queue drains, the pass is
// cancelled, or the worker is shed by adaptive throttling.
func (s *Scheduler) workerLoop(ctx context.Context, worker int) {
	for {
		batch, ok := s.claim(ctx, worker)
		if !ok {
			return
		}

		if s.cb.OnStart != nil {
			s.cb.OnStart(batch, worker)
		}

		startedAt := time.Now()
		if err := s.pacer.Wait(ctx); err != nil {
			// Never dispatched: the batch goes back to pending.
			s.requeue(batch)
			return
		}

		result, err := s.proc.Process(ctx, batch)

		status := model.BatchStatus{
			BatchID:     batch.ID,
			Worker:      worker,
			StartedAt:   startedAt,
			CompletedAt: time.Now(),
			Retries:     result.Attempts - 1,
		}
		if status.Retries < 0 {
			status.Retries = 0
		}

		if err != nil {
			status.State = model.BatchFailed
			status.Error = err.Error()
			s.recordFailure(batch.ID, status, llm.ClassOf(err))
			if s.cb.OnFailed != nil {
				s.cb.OnFailed(batch, status)
			}
			continue
		}

		status.State = model.BatchSuccess
		status.Output = result.Output
		s.recordSuccess(batch.ID, status)
		if s.cb.OnComplete != nil {
			s.cb.OnComplete(batch, status)
		}
	}
}

// claim atomically dequeues the next batch. It blocks while paused and
// returns ok=false when the queue is empty, the pass is cancelled, or
// this worker should shed under rate-limit pressure.
func (s *Scheduler) claim(ctx context.Context, worker int) (model.Batch, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for s.paused && !s.cancelled && ctx.Err() == nil {
		s.cond.Wait()
	}

	if s.cancelled || ctx.Err() != nil {
		return model.Batch{}, false
	}
	if worker > 0 && s.rateLimited > s.cfg.shedThreshold() {
		return model.Batch{}, false
	}
	if len(s.queue) == 0 {
		return model.Batch{}, false
	}

	batch := s.queue[0]
	s.queue = s.queue[1:]
	return batch, true
}

func (s *Scheduler) requeue(batch model.Batch) {
	s.mu.Lock()
	s.queue = append([]model.Batch{batch}, s.queue...)
	s.mu.Unlock()
}

func (s *Scheduler) recordSuccess(id string, status model.BatchStatus) {
	s.mu.Lock()
	s.completed[id] = status
	s.mu.Unlock()
}

func (s *Scheduler) recordFailure(id string, status model.BatchStatus, class llm.ErrorClass) {
	s.mu.Lock()
	s.failed[id] = status
	if class == llm.ErrClassRateLimited {
		s.rateLimited++
	}
	s.mu.Unlock()
}

// Pause parks the workers after their current batch. Queue state is kept.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
}

// Resume continues a paused run exactly where it left off.
func (s *Scheduler) Resume() {
	s.mu.Lock()
	s.paused = false
	s.cond.Broadcast()
	s.mu.Unlock()
}

// Cancel stops workers from claiming new batches. Calls already in
// flight resolve to success or failure naturally; unclaimed batches stay
// pending and are reported in the outcome.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	s.cancelled = true
	s.cond.Broadcast()
	s.mu.Unlock()
}

// Cancelled reports whether Cancel has been called for this pass.
func (s *Scheduler) Cancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

// outcome snapshots the shared maps into an Outcome.
func (s *Scheduler) outcome() Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := Outcome{
		Completed: make(map[string]model.BatchStatus, len(s.completed)),
		Failed:    make(map[string]model.BatchStatus, len(s.failed)),
		Pending:   append([]model.Batch(nil), s.queue...),
	}
	for id, st := range s.completed {
		out.Completed[id] = st
	}
	for id, st := range s.failed {
		out.Failed[id] = st
	}
	out.Stats = model.JobStats{
		TotalBatches: len(s.byID),
		Succeeded:    len(s.completed),
		Failed:       len(s.failed),
	}
	return out
}

// sortBySequence orders batches by sequence number, in place.
func sortBySequence(batches []model.Batch) {
	sort.Slice(batches, func(i, j int) bool {
		return batches[i].SequenceNumber < batches[j].SequenceNumber
	})
}
