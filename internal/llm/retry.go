package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"
)

const (
	// maxAttempts is the total attempt budget per call, including the first.
	maxAttempts = 3

	// backoffInitial and backoffMax bound the exponential backoff between
	// attempts: 1s, 2s, 4s, ... capped at 10s.
	backoffInitial = 1 * time.Second
	backoffMax     = 10 * time.Second
)

// APIError is a non-2xx response from a provider. The status code drives
// retry classification; Body is kept for diagnostics.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// isRetryable reports whether an error is a transient transport condition:
// rate limits, connection failures, timeouts, and server errors (5xx,
// including Anthropic's 529 overloaded). Everything else, in particular auth
// and malformed-request errors, propagates immediately.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrCircuitOpen) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// withRetry runs fn up to maxAttempts times with exponential backoff on
// retryable errors. Non-retryable errors and context cancellation return
// immediately.
func withRetry(ctx context.Context, fn func() (string, error)) (string, error) {
	backoff := backoffInitial
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !isRetryable(err) || attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > backoffMax {
			backoff = backoffMax
		}
	}
	return "", lastErr
}
