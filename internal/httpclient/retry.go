package httpclient

import (
	"context"
	"time"
)

// RetryPolicy bounds how often and how patiently a failed call is repeated.
// A call runs at most MaxRetries+1 times; the wait before retry k is Delay*k.
type RetryPolicy struct {
	MaxRetries int
	Delay      time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 2, Delay: time.Second}
}

// Backoff returns the wait after the given 1-based failed attempt.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	return p.Delay * time.Duration(attempt)
}

// ShouldRetry reports whether a failure on the given 1-based attempt warrants another try.
func (p RetryPolicy) ShouldRetry(apiErr *APIError, attempt int) bool {
	if apiErr == nil || apiErr.IsClientError() {
		return false
	}
	return attempt <= p.MaxRetries
}

// Run calls op until it succeeds, fails with a non-retryable error, or the
// policy is exhausted. The returned error is always an *APIError.
// onRetry, when set, observes each scheduled retry before the wait.
func (p RetryPolicy) Run(ctx context.Context, op func(ctx context.Context, attempt int) error, onRetry func(attempt int, wait time.Duration, apiErr *APIError)) error {
	for attempt := 1; ; attempt++ {
		err := op(ctx, attempt)
		if err == nil {
			return nil
		}
		apiErr := Normalize(err)
		if !p.ShouldRetry(apiErr, attempt) {
			return apiErr
		}

		wait := p.Backoff(attempt)
		if onRetry != nil {
			onRetry(attempt, wait, apiErr)
		}
		if err := sleep(ctx, wait); err != nil {
			return Normalize(err)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
