package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled while
	// waiting for rate-limit admission or retry backoff.
	ErrContextCancelled = errors.New("context cancelled")

	// ErrClientClosed is returned for requests made after Close.
	ErrClientClosed = errors.New("client is closed")
)

// ErrorClass classifies a request failure for retry decisions and telemetry.
type ErrorClass string

const (
	// ClassValidation marks construction-time configuration errors.
	ClassValidation ErrorClass = "validation"

	// ClassClient marks definitive 4xx client errors. Never retried.
	ClassClient ErrorClass = "client"

	// ClassServer marks 5xx server errors. Retried.
	ClassServer ErrorClass = "server"

	// ClassRateLimit marks HTTP 429 responses. Retried.
	ClassRateLimit ErrorClass = "rate_limit"

	// ClassTimeout marks request timeouts (transport deadline or HTTP 408).
	// Retried.
	ClassTimeout ErrorClass = "timeout"

	// ClassTransport marks connection-level failures (DNS, refused, reset).
	// Retried.
	ClassTransport ErrorClass = "transport"

	// ClassUnexpected marks anything else, typically a programming error.
	// Never retried: masking bugs as transient hides them.
	ClassUnexpected ErrorClass = "unexpected"
)

// APIError is a structured request failure with enough detail for the caller
// to decide whether to surface it or retry at a higher layer.
type APIError struct {
	Class      ErrorClass
	StatusCode int
	Message    string
	Body       string // response body excerpt, if any
	Attempts   int
	Elapsed    time.Duration
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	msg := fmt.Sprintf("api %s error", e.Class)
	if e.StatusCode > 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Attempts > 1 {
		msg += fmt.Sprintf(" (after %d attempts in %v)", e.Attempts, e.Elapsed.Round(time.Millisecond))
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// shouldRetry reports whether an error class is worth another attempt.
func shouldRetry(class ErrorClass) bool {
	switch class {
	case ClassServer, ClassRateLimit, ClassTimeout, ClassTransport:
		return true
	default:
		// Client errors waste attempts; unexpected errors are bugs.
		return false
	}
}

// classifyStatus maps an HTTP status >= 400 to an error class. 429 and 408
// are carved out of the blanket 4xx rule: neither marks the request itself
// as invalid, so both stay retryable.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusTooManyRequests:
		return ClassRateLimit
	case status == http.StatusRequestTimeout:
		return ClassTimeout
	case status >= 400 && status < 500:
		return ClassClient
	case status >= 500:
		return ClassServer
	default:
		return ClassUnexpected
	}
}

// classifyTransport maps a transport-level error to an error class. Caller
// cancellation is carved out of the retryable classes.
func classifyTransport(err error) ErrorClass {
	if errors.Is(err, context.Canceled) {
		return ClassUnexpected
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ClassTimeout
	}
	return ClassTransport
}
