// Retry/failover policy - wraps completion calls with backoff, credential
// switching, and the model tier cascade.
//
// Recovery order for one batch: retry the current tier with exponential
// backoff, switch primary -> backup credential on rate-limit/server
// errors, then drop to the next model tier with a fresh attempt counter.
// A batch never cascades back up.

package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chirag127/spokablepdf/llm"
	"github.com/chirag127/spokablepdf/model"
)

// Default retry behavior.
const (
	DefaultMaxRetries       = 3
	DefaultBaseDelay        = 2 * time.Second
	DefaultRateLimitPenalty = 5 * time.Second
)

// RetryConfig controls the retry loop for one model tier.
type RetryConfig struct {
	// MaxRetries is the number of attempts per model tier. <=0 uses
	// DefaultMaxRetries.
	MaxRetries int
	// BaseDelay is the backoff base: the delay before attempt k is
	// BaseDelay * 2^(k-1). <=0 uses DefaultBaseDelay.
	BaseDelay time.Duration
	// RateLimitPenalty is added on top of the backoff after a
	// rate-limited attempt. <0 uses DefaultRateLimitPenalty.
	RateLimitPenalty time.Duration
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = DefaultBaseDelay
	}
	if c.RateLimitPenalty < 0 {
		c.RateLimitPenalty = DefaultRateLimitPenalty
	}
	return c
}

// ProcessResult is the outcome of successfully processing one batch.
type ProcessResult struct {
	Output   string
	Attempts int // total attempts across all tiers
}

// Processor turns one batch into narration output. Implemented by Runner;
// tests substitute scripted fakes.
type Processor interface {
	Process(ctx context.Context, batch model.Batch) (ProcessResult, error)
}

// Runner executes batches through the completion client with retries,
// credential failover, and the model tier cascade.
type Runner struct {
	client      *llm.Client
	creds       *llm.CredentialSet
	tiers       []string
	instruction string
	gen         llm.GenConfig
	cfg         RetryConfig

	// sleep is replaced in tests to record backoff delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRunner creates a runner. tiers is the model cascade, most capable
// first; instruction is the system instruction sent with every batch.
func NewRunner(client *llm.Client, creds *llm.CredentialSet, tiers []string, instruction string, gen llm.GenConfig, cfg RetryConfig) *Runner {
	return &Runner{
		client:      client,
		creds:       creds,
		tiers:       tiers,
		instruction: instruction,
		gen:         gen,
		cfg:         cfg.withDefaults(),
		sleep:       sleepCtx,
	}
}

// Process runs one batch through the cascade. On success the credential
// state is reset toward primary. On failure the returned error is the
// last observed classified error.
func (r *Runner) Process(ctx context.Context, batch model.Batch) (ProcessResult, error) {
	if len(r.tiers) == 0 {
		return ProcessResult{}, llm.NewClassifiedError(llm.ErrClassConfiguration, 0,
			errors.New("no model tier available"))
	}

	totalAttempts := 0
	var lastErr error

	for _, tier := range r.tiers {
		output, attempts, err := r.runTier(ctx, tier, batch)
		totalAttempts += attempts
		if err == nil {
			r.creds.ReportSuccess()
			return ProcessResult{Output: output, Attempts: totalAttempts}, nil
		}
		lastErr = err

		if llm.ClassOf(err) == llm.ErrClassConfiguration {
			break
		}
		if ctx.Err() != nil {
			break
		}
	}

	return ProcessResult{Attempts: totalAttempts}, fmt.Errorf("batch %d failed after %d attempts: %w",
		batch.SequenceNumber, totalAttempts, lastErr)
}

// runTier retries one model tier up to MaxRetries attempts. Returns the
// output, the number of attempts consumed, and the last error.
func (r *Runner) runTier(ctx context.Context, tier string, batch model.Batch) (string, int, error) {
	req := buildRequest(tier, batch, r.instruction, r.gen)
	reduced := false

	attempts := 0
	var lastErr error
	for attempt := 1; attempt <= r.cfg.MaxRetries; attempt++ {
		attempts++

		cred, gen := r.creds.Active()
		resp, err := r.client.Execute(ctx, cred, req)
		if err == nil {
			return resp.Text, attempts, nil
		}
		lastErr = err

		class := llm.ClassOf(err)
		switch class {
		case llm.ErrClassConfiguration:
			// Retrying cannot help.
			return "", attempts, err

		case llm.ErrClassClientError:
			// Capability mismatch path: a tier that rejects image input
			// gets one reduced text-only request before we give up on
			// it. Text content is never dropped.
			if req.HasInlineData() && !reduced {
				req = req.WithoutInlineData()
				reduced = true
				attempt--
				continue
			}
			return "", attempts, err

		case llm.ErrClassRateLimited, llm.ErrClassServerError:
			// Switching to the backup credential is itself the recovery
			// action; skip the backoff when the switch happens.
			if r.creds.ReportFailure(gen) {
				continue
			}
		}

		if attempt == r.cfg.MaxRetries {
			break
		}
		delay := r.cfg.BaseDelay << (attempt - 1)
		if class == llm.ErrClassRateLimited {
			delay += r.cfg.RateLimitPenalty
		}
		if err := r.sleep(ctx, delay); err != nil {
			return "", attempts, lastErr
		}
	}

	return "", attempts, lastErr
}

// buildRequest turns a batch into one completion request: the system
// instruction, the batch text, then any page images attached to it.
func buildRequest(tier string, batch model.Batch, instruction string, gen llm.GenConfig) llm.Request {
	parts := make([]llm.Part, 0, 1+len(batch.Images))
	parts = append(parts, llm.TextPart(batch.Text))
	for _, img := range batch.Images {
		parts = append(parts, llm.InlinePart(img.MIMEType, img.Data))
	}
	return llm.Request{
		Model:       tier,
		Instruction: instruction,
		Parts:       parts,
		Gen:         gen,
	}
}

// sleepCtx sleeps for d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Verify Runner implements Processor
var _ Processor = (*Runner)(nil)
