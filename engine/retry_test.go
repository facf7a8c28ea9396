package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chirag127/spokablepdf/llm"
	"github.com/chirag127/spokablepdf/model"
)

// scriptedBackend plays one scripted outcome per call, shared across the
// per-credential provider instances the client creates.
type scriptedBackend struct {
	mu      sync.Mutex
	calls   []backendCall
	respond func(call backendCall) (llm.Response, error)
}

type backendCall struct {
	N         int // 1-based call number
	APIKey    string
	Model     string
	Text      string // first text part
	HasInline bool
}

func (b *scriptedBackend) record(apiKey string, req llm.Request) backendCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	call := backendCall{
		N:         len(b.calls) + 1,
		APIKey:    apiKey,
		Model:     req.Model,
		HasInline: req.HasInlineData(),
	}
	for _, part := range req.Parts {
		if part.Text != "" {
			call.Text = part.Text
			break
		}
	}
	b.calls = append(b.calls, call)
	return call
}

func (b *scriptedBackend) callsFor(model string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.calls {
		if c.Model == model {
			n++
		}
	}
	return n
}

type scriptedProvider struct {
	apiKey  string
	backend *scriptedBackend
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	return p.backend.respond(p.backend.record(p.apiKey, req))
}

func newScriptedClient(backend *scriptedBackend) *llm.Client {
	return llm.NewClientWithFactory(func(apiKey string) llm.Provider {
		return &scriptedProvider{apiKey: apiKey, backend: backend}
	}, time.Second)
}

// newTestRunner builds a runner with recorded (not executed) sleeps.
func newTestRunner(t *testing.T, backend *scriptedBackend, backup string, tiers []string, cfg RetryConfig) (*Runner, *[]time.Duration) {
	t.Helper()
	creds, err := llm.NewCredentialSet("primary-key", backup)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	runner := NewRunner(newScriptedClient(backend), creds, tiers, "narrate", llm.GenConfig{}, cfg)

	var mu sync.Mutex
	sleeps := &[]time.Duration{}
	runner.sleep = func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		*sleeps = append(*sleeps, d)
		mu.Unlock()
		return nil
	}
	return runner, sleeps
}

func testBatch(seq int, text string) model.Batch {
	return model.Batch{
		ID:             "batch-" + strings.Repeat("x", seq),
		SequenceNumber: seq,
		Text:           text,
		StartOffset:    0,
		EndOffset:      len(text),
	}
}

func TestRunnerRateLimitedTwiceThenSuccess(t *testing.T) {
	backend := &scriptedBackend{}
	backend.respond = func(call backendCall) (llm.Response, error) {
		if call.N <= 2 {
			return llm.Response{}, llm.NewClassifiedError(llm.ErrClassRateLimited, 429, errors.New("quota"))
		}
		return llm.Response{Text: "done", FinishReason: "STOP"}, nil
	}

	cfg := RetryConfig{MaxRetries: 3, BaseDelay: 2 * time.Second, RateLimitPenalty: 1 * time.Second}
	runner, sleeps := newTestRunner(t, backend, "", []string{"tier-a"}, cfg)

	result, err := runner.Process(context.Background(), testBatch(1, "hello"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Output != "done" {
		t.Errorf("output = %q, want %q", result.Output, "done")
	}
	if result.Attempts != 3 {
		t.Errorf("attempts = %d, want 3 (two retries)", result.Attempts)
	}

	// Backoff before attempts 2 and 3: baseDelay*2^(k-1) plus the
	// rate-limit penalty.
	want := []time.Duration{
		2*time.Second + 1*time.Second,
		4*time.Second + 1*time.Second,
	}
	if len(*sleeps) != len(want) {
		t.Fatalf("recorded %d delays, want %d: %v", len(*sleeps), len(want), *sleeps)
	}
	for i, d := range want {
		if (*sleeps)[i] != d {
			t.Errorf("delay before attempt %d = %v, want %v", i+2, (*sleeps)[i], d)
		}
	}
}

func TestRunnerRateLimitBackoffAtLeastBaseDelay(t *testing.T) {
	backend := &scriptedBackend{}
	backend.respond = func(call backendCall) (llm.Response, error) {
		if call.N == 1 {
			return llm.Response{}, llm.NewClassifiedError(llm.ErrClassRateLimited, 429, errors.New("quota"))
		}
		return llm.Response{Text: "ok"}, nil
	}

	cfg := RetryConfig{MaxRetries: 3, BaseDelay: 2000 * time.Millisecond, RateLimitPenalty: 500 * time.Millisecond}
	runner, sleeps := newTestRunner(t, backend, "", []string{"tier-a"}, cfg)

	if _, err := runner.Process(context.Background(), testBatch(1, "x")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(*sleeps) != 1 {
		t.Fatalf("recorded %d delays, want 1", len(*sleeps))
	}
	if (*sleeps)[0] < 2000*time.Millisecond {
		t.Errorf("wait before attempt 2 = %v, want >= 2s backoff", (*sleeps)[0])
	}
	if (*sleeps)[0] != 2500*time.Millisecond {
		t.Errorf("wait before attempt 2 = %v, want backoff plus penalty (2.5s)", (*sleeps)[0])
	}
}

func TestRunnerCascadeExhaustsEveryTier(t *testing.T) {
	backend := &scriptedBackend{}
	backend.respond = func(call backendCall) (llm.Response, error) {
		return llm.Response{}, llm.NewClassifiedError(llm.ErrClassServerError, 503,
			errors.New("unavailable: "+call.Model))
	}

	tiers := []string{"tier-a", "tier-b", "tier-c"}
	cfg := RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond, RateLimitPenalty: 0}
	runner, _ := newTestRunner(t, backend, "", tiers, cfg)

	result, err := runner.Process(context.Background(), testBatch(1, "x"))
	if err == nil {
		t.Fatal("expected failure after exhausting all tiers")
	}
	if result.Attempts != 6 {
		t.Errorf("total attempts = %d, want 6 (2 per tier)", result.Attempts)
	}
	for _, tier := range tiers {
		if got := backend.callsFor(tier); got != 2 {
			t.Errorf("tier %s attempted %d times, want 2", tier, got)
		}
	}
	// The reported error comes from the last tier attempted.
	if !strings.Contains(err.Error(), "tier-c") {
		t.Errorf("error %q should reference the last tier", err)
	}
	if llm.ClassOf(err) != llm.ErrClassServerError {
		t.Errorf("error class = %v, want server_error", llm.ClassOf(err))
	}
}

func TestRunnerSwitchesCredentialInsteadOfBackoff(t *testing.T) {
	backend := &scriptedBackend{}
	backend.respond = func(call backendCall) (llm.Response, error) {
		if call.APIKey == "primary-key" {
			return llm.Response{}, llm.NewClassifiedError(llm.ErrClassRateLimited, 429, errors.New("quota"))
		}
		return llm.Response{Text: "via backup"}, nil
	}

	cfg := RetryConfig{MaxRetries: 3, BaseDelay: time.Second, RateLimitPenalty: time.Second}
	runner, sleeps := newTestRunner(t, backend, "backup-key", []string{"tier-a"}, cfg)

	result, err := runner.Process(context.Background(), testBatch(1, "x"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Output != "via backup" {
		t.Errorf("output = %q, want backup response", result.Output)
	}
	// The credential switch is the recovery action; no backoff happens.
	if len(*sleeps) != 0 {
		t.Errorf("recorded %d delays, want 0: %v", len(*sleeps), *sleeps)
	}
}

func TestRunnerClientErrorFailsTierImmediately(t *testing.T) {
	backend := &scriptedBackend{}
	backend.respond = func(call backendCall) (llm.Response, error) {
		if call.Model == "tier-a" {
			return llm.Response{}, llm.NewClassifiedError(llm.ErrClassClientError, 400, errors.New("bad request"))
		}
		return llm.Response{Text: "fallback"}, nil
	}

	cfg := RetryConfig{MaxRetries: 3, BaseDelay: time.Second, RateLimitPenalty: 0}
	runner, sleeps := newTestRunner(t, backend, "", []string{"tier-a", "tier-b"}, cfg)

	result, err := runner.Process(context.Background(), testBatch(1, "x"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Output != "fallback" {
		t.Errorf("output = %q, want fallback from tier-b", result.Output)
	}
	if got := backend.callsFor("tier-a"); got != 1 {
		t.Errorf("tier-a attempted %d times, want 1 (no retry on client error)", got)
	}
	if len(*sleeps) != 0 {
		t.Errorf("recorded %d delays, want 0", len(*sleeps))
	}
}

func TestRunnerReducedCapabilityRetryDropsImagesOnly(t *testing.T) {
	backend := &scriptedBackend{}
	backend.respond = func(call backendCall) (llm.Response, error) {
		if call.HasInline {
			return llm.Response{}, llm.NewClassifiedError(llm.ErrClassClientError, 400,
				errors.New("media not supported"))
		}
		return llm.Response{Text: "text only"}, nil
	}

	cfg := RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond, RateLimitPenalty: 0}
	runner, _ := newTestRunner(t, backend, "", []string{"tier-a"}, cfg)

	batch := testBatch(1, "x")
	batch.Images = []model.ImagePart{{Page: 1, MIMEType: "image/png", Data: []byte{1}}}

	result, err := runner.Process(context.Background(), batch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Output != "text only" {
		t.Errorf("output = %q, want reduced-capability success", result.Output)
	}
	if got := backend.callsFor("tier-a"); got != 2 {
		t.Errorf("tier-a called %d times, want 2 (full then reduced)", got)
	}
}

func TestRunnerNoTiersIsConfigurationError(t *testing.T) {
	backend := &scriptedBackend{}
	backend.respond = func(call backendCall) (llm.Response, error) {
		return llm.Response{Text: "never"}, nil
	}
	runner, _ := newTestRunner(t, backend, "", nil, RetryConfig{})

	_, err := runner.Process(context.Background(), testBatch(1, "x"))
	if llm.ClassOf(err) != llm.ErrClassConfiguration {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func TestRunnerSuccessResetsCredentialToPrimary(t *testing.T) {
	backend := &scriptedBackend{}
	backend.respond = func(call backendCall) (llm.Response, error) {
		if call.N == 1 {
			return llm.Response{}, llm.NewClassifiedError(llm.ErrClassServerError, 500, errors.New("boom"))
		}
		return llm.Response{Text: "ok"}, nil
	}

	creds, err := llm.NewCredentialSet("primary-key", "backup-key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	runner := NewRunner(newScriptedClient(backend), creds, []string{"tier-a"}, "narrate", llm.GenConfig{},
		RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond})
	runner.sleep = func(context.Context, time.Duration) error { return nil }

	if _, err := runner.Process(context.Background(), testBatch(1, "x")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !creds.OnPrimary() {
		t.Error("expected credentials reset to primary after a clean success")
	}
}
