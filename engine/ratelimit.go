// Package engine runs batches against a completion backend: pacing,
// retry/failover, the worker pool, and deterministic reassembly.
package engine

import (
	"context"
	"sync"
	"time"
)

// Pacer enforces a minimum spacing between outbound dispatches. Every
// worker consults it before dispatching. Safe for concurrent use: when
// several workers arrive at once, each is handed its own monotonically
// spaced slot, so no two dispatches ever fall inside the window even
// though multiple calls stay in flight.
type Pacer struct {
	mu       sync.Mutex
	interval time.Duration
	next     time.Time // earliest time the next dispatch may happen
	requests int64
}

// NewPacer creates a pacer with the given minimum interval between
// dispatches. A non-positive interval disables pacing.
func NewPacer(interval time.Duration) *Pacer {
	return &Pacer{interval: interval}
}

// Wait blocks until the caller's dispatch slot arrives, then records the
// dispatch. Returns early with the context error if ctx is cancelled
// while waiting.
func (p *Pacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	now := time.Now()
	slot := p.next
	if slot.Before(now) {
		slot = now
	}
	if p.interval > 0 {
		p.next = slot.Add(p.interval)
	}
	p.requests++
	p.mu.Unlock()

	delay := time.Until(slot)
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Requests returns how many dispatches have been recorded.
func (p *Pacer) Requests() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requests
}
