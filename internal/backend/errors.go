package backend

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrTransient marks an outcome that may succeed on retry: network
	// failures, timeouts, and 5xx responses.
	ErrTransient = errors.New("transient backend failure")
	// ErrRejected marks an outcome that will not change on retry, such as a
	// validation failure. Terminal; surfaced to the user, never auto-retried.
	ErrRejected = errors.New("rejected by backend")
	// ErrOffline is returned when a call is refused locally because the
	// device is known to be offline. No network traffic was attempted.
	ErrOffline = errors.New("device is offline")
)

// Classify wraps an HTTP outcome with the sentinel the sync coordinator uses
// to decide retry versus terminal handling.
func Classify(statusCode int, operation string) error {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return nil
	case statusCode == http.StatusConflict:
		// Idempotent replay of something the server already has.
		return nil
	case statusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s: status %d", ErrTransient, operation, statusCode)
	case statusCode >= 400 && statusCode < 500:
		return fmt.Errorf("%w: %s: status %d", ErrRejected, operation, statusCode)
	default:
		return fmt.Errorf("%w: %s: status %d", ErrTransient, operation, statusCode)
	}
}

// ClassifyTransport wraps transport-level failures. Everything that never
// produced an HTTP status is retryable, including cancellation by timeout;
// callers that care about pass cancellation inspect their own context.
func ClassifyTransport(operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrTransient, operation, err)
}

// IsTerminal reports whether an error should never be retried automatically.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrRejected)
}
