// Client - executes single completion calls with a hard per-call timeout.
//
// The client owns provider instances (one per credential, since backends
// authenticate at client construction) and response/error classification
// for timeouts. It never retries and never switches credentials; recovery
// decisions belong to the retry policy.

package llm

import (
	"context"
	"errors"
	"sync"
	"time"
)

// DefaultTimeout is the per-call timeout applied when the client is
// configured with zero.
const DefaultTimeout = 120 * time.Second

// ProviderFactory builds a provider bound to one API key.
type ProviderFactory func(apiKey string) Provider

// Client executes completion requests with per-call timeouts, selecting
// the provider instance that matches the supplied credential.
type Client struct {
	factory ProviderFactory
	timeout time.Duration

	mu        sync.Mutex
	providers map[string]Provider // keyed by API key
}

// NewClient creates a client for the given provider type.
func NewClient(providerType ProviderType, timeout time.Duration) *Client {
	return NewClientWithFactory(providerType.New, timeout)
}

// NewClientWithFactory creates a client with a custom provider factory.
// Used by tests to substitute scripted providers.
func NewClientWithFactory(factory ProviderFactory, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		factory:   factory,
		timeout:   timeout,
		providers: make(map[string]Provider),
	}
}

// Execute runs exactly one completion request using the given credential.
// The call is aborted with a Timeout classified error when the per-call
// deadline expires. Failures are always *ClassifiedError.
func (c *Client) Execute(ctx context.Context, cred Credential, req Request) (Response, error) {
	if cred.APIKey == "" {
		return Response{}, NewClassifiedError(ErrClassConfiguration, 0,
			errors.New("no API key available"))
	}
	if req.Model == "" {
		return Response{}, NewClassifiedError(ErrClassConfiguration, 0,
			errors.New("no model specified"))
	}

	provider := c.providerFor(cred.APIKey)
	if provider == nil {
		return Response{}, NewClassifiedError(ErrClassConfiguration, 0,
			errors.New("provider factory returned nil"))
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := provider.Generate(callCtx, req)
	if err != nil {
		// Providers classify their own SDK errors; deadline expiry can
		// also surface as an unclassified transport error.
		if ClassOf(err) == ErrClassUnknown && callCtx.Err() != nil {
			if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
				return Response{}, NewClassifiedError(ErrClassTimeout, 0, err)
			}
		}
		return Response{}, err
	}
	return resp, nil
}

// providerFor returns the cached provider for an API key, creating it on
// first use.
func (c *Client) providerFor(apiKey string) Provider {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.providers[apiKey]; ok {
		return p
	}
	p := c.factory(apiKey)
	if p != nil {
		c.providers[apiKey] = p
	}
	return p
}
