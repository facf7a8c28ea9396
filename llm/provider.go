// Provider interface - the abstract interface for completion backends.
// Each implementation hides:
// - API client initialization and authentication
// - Request/response format conversion
// - Provider-specific error classification

package llm

import (
	"context"
)

// Provider executes completion requests against one backend with one
// credential. Providers build exactly one outbound request per call and
// never retry or switch credentials; that is the retry policy's job.
type Provider interface {
	// Name returns the provider name (for logging/debugging).
	Name() string

	// Generate executes one completion request. Failures are returned as
	// *ClassifiedError.
	Generate(ctx context.Context, req Request) (Response, error)
}
