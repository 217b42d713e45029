package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithRetry_RateLimitThenSuccess(t *testing.T) {
	attempts := 0
	start := time.Now()
	result, err := withRetry(context.Background(), func() (string, error) {
		attempts++
		if attempts < 3 {
			return "", &APIError{Provider: "test", StatusCode: 429, Body: "rate limited"}
		}
		return "ok", nil
	})
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 3, attempts)
	// Two backoffs: 1s then 2s.
	assert.GreaterOrEqual(t, elapsed, 3*time.Second)
	assert.Less(t, elapsed, 13*time.Second)
}

func TestWithRetry_NonRetryableFailsFast(t *testing.T) {
	attempts := 0
	_, err := withRetry(context.Background(), func() (string, error) {
		attempts++
		return "", &APIError{Provider: "test", StatusCode: 401, Body: "bad key"}
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestWithRetry_ExhaustsBudget(t *testing.T) {
	attempts := 0
	_, err := withRetry(context.Background(), func() (string, error) {
		attempts++
		return "", &APIError{Provider: "test", StatusCode: 503, Body: "unavailable"}
	})
	require.Error(t, err)
	assert.Equal(t, maxAttempts, attempts)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 503, apiErr.StatusCode)
}

func TestWithRetry_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	attempts := 0
	_, err := withRetry(ctx, func() (string, error) {
		attempts++
		return "", &APIError{Provider: "test", StatusCode: 500, Body: "boom"}
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, attempts)
}

func TestWithRetry_CircuitOpenNotRetried(t *testing.T) {
	attempts := 0
	_, err := withRetry(context.Background(), func() (string, error) {
		attempts++
		return "", fmt.Errorf("anthropic call failed: %w", ErrCircuitOpen)
	})
	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 1, attempts)
}

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limit", &APIError{StatusCode: 429}, true},
		{"server error", &APIError{StatusCode: 500}, true},
		{"overloaded", &APIError{StatusCode: 529}, true},
		{"auth error", &APIError{StatusCode: 401}, false},
		{"bad request", &APIError{StatusCode: 400}, false},
		{"timeout", context.DeadlineExceeded, true},
		{"circuit open", ErrCircuitOpen, false},
		{"generic", errors.New("boom"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, isRetryable(tc.err))
		})
	}
}

func TestCircuitBreaker_TripsAfterConsecutiveFailures(t *testing.T) {
	cb := NewCircuitBreakerWithConfig("test", CircuitBreakerConfig{MaxFailures: 3})

	boom := errors.New("provider down")
	for i := 0; i < 3; i++ {
		_, err := cb.Execute(func() (string, error) { return "", boom })
		require.ErrorIs(t, err, boom)
	}
	assert.Equal(t, "open", cb.State())

	_, err := cb.Execute(func() (string, error) { return "ok", nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuitBreaker_PassesThroughWhenClosed(t *testing.T) {
	cb := NewCircuitBreaker("test")
	result, err := cb.Execute(func() (string, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, "closed", cb.State())
}
