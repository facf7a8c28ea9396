// Error classification for completion calls.
//
// Every failure from a provider is classified into exactly one class so the
// retry policy can decide what to do without inspecting provider-specific
// error types.

package llm

import (
	"errors"
	"fmt"
)

// ErrorClass is the failure class of a completion call.
type ErrorClass int

const (
	// ErrClassUnknown is an unclassified failure (treated as transient).
	ErrClassUnknown ErrorClass = iota
	// ErrClassRateLimited is an HTTP 429-equivalent rejection.
	ErrClassRateLimited
	// ErrClassServerError is a 5xx-equivalent backend failure.
	ErrClassServerError
	// ErrClassClientError is a non-429 4xx-equivalent rejection; not retryable.
	ErrClassClientError
	// ErrClassTimeout means the per-call deadline expired.
	ErrClassTimeout
	// ErrClassMalformedResponse is a successful call with an empty or
	// unusable payload.
	ErrClassMalformedResponse
	// ErrClassConfiguration means no credential or model was available;
	// retrying cannot help.
	ErrClassConfiguration
)

// String returns the class name.
func (c ErrorClass) String() string {
	switch c {
	case ErrClassRateLimited:
		return "rate_limited"
	case ErrClassServerError:
		return "server_error"
	case ErrClassClientError:
		return "client_error"
	case ErrClassTimeout:
		return "timeout"
	case ErrClassMalformedResponse:
		return "malformed_response"
	case ErrClassConfiguration:
		return "configuration"
	default:
		return "unknown"
	}
}

// Transient reports whether the class is worth retrying on the same model.
func (c ErrorClass) Transient() bool {
	switch c {
	case ErrClassRateLimited, ErrClassServerError, ErrClassTimeout, ErrClassUnknown:
		return true
	default:
		return false
	}
}

// ClassifiedError wraps a provider error with its failure class and, when
// known, the HTTP status that produced it.
type ClassifiedError struct {
	Class  ErrorClass
	Status int // HTTP status, 0 if not applicable
	Err    error
}

// Error implements the error interface.
func (e *ClassifiedError) Error() string {
	if e.Err == nil {
		return e.Class.String()
	}
	return fmt.Sprintf("%s: %v", e.Class, e.Err)
}

// Unwrap returns the underlying error.
func (e *ClassifiedError) Unwrap() error {
	return e.Err
}

// NewClassifiedError wraps err with a class.
func NewClassifiedError(class ErrorClass, status int, err error) *ClassifiedError {
	return &ClassifiedError{Class: class, Status: status, Err: err}
}

// ClassOf extracts the failure class from err, or ErrClassUnknown if err
// carries no classification.
func ClassOf(err error) ErrorClass {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class
	}
	return ErrClassUnknown
}

// classifyStatus maps an HTTP status code to a failure class.
func classifyStatus(status int, err error) *ClassifiedError {
	switch {
	case status == 429:
		return NewClassifiedError(ErrClassRateLimited, status, err)
	case status >= 500:
		return NewClassifiedError(ErrClassServerError, status, err)
	case status >= 400:
		return NewClassifiedError(ErrClassClientError, status, err)
	default:
		return NewClassifiedError(ErrClassUnknown, status, err)
	}
}
