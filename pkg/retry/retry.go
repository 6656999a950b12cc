// Package retry holds the caller-side retry policy for classification calls.
// The prediction client itself never retries.
package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/menta2k/tidyormessy/pkg/predict"
)

// Policy retries retryable failures with exponential backoff and jitter
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Retryable decides which errors are retried; nil means predict.IsRetryable
	Retryable func(error) bool
	// OnRetry is called before sleeping ahead of attempt n+1
	OnRetry func(attempt int, delay time.Duration, err error)
}

// NewPolicy creates a policy that caps backoff at 16x the base delay
func NewPolicy(maxAttempts int, baseDelay time.Duration) Policy {
	return Policy{
		MaxAttempts: maxAttempts,
		BaseDelay:   baseDelay,
		MaxDelay:    baseDelay * 16,
	}
}

// DefaultMaxDelay caps backoff for policies that set no MaxDelay
const DefaultMaxDelay = time.Minute

// None runs the operation exactly once
var None = Policy{MaxAttempts: 1}

// Do runs fn until it succeeds, returns a non-retryable error, or the
// attempts run out. The last error is returned unchanged.
func Do[T any](ctx context.Context, p Policy, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = predict.IsRetryable
	}

	for attempt := 1; ; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if attempt >= attempts || !retryable(err) {
			return zero, err
		}

		delay := p.Backoff(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, fmt.Errorf("%w: %v (last error: %v)", predict.ErrCancelled, ctx.Err(), err)
		case <-timer.C:
		}
	}
}

// Backoff returns the delay before the attempt following attempt n (1-based).
// A policy without MaxDelay is capped at DefaultMaxDelay.
func (p Policy) Backoff(n int) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = DefaultMaxDelay
	}

	delay := p.BaseDelay
	for i := 1; i < n && delay < maxDelay && delay <= math.MaxInt64/2; i++ {
		delay *= 2
	}
	if delay > maxDelay {
		delay = maxDelay
	}

	// Up to 25% jitter
	jitter := time.Duration(rand.Int63n(int64(delay)/4 + 1))
	delay += jitter
	if delay > maxDelay {
		delay = maxDelay
	}
	return delay
}
