// Package retry runs an operation under a bounded exponential-backoff policy.
package retry

import (
	"context"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
)

// Policy configures how an operation is retried
type Policy struct {
	// MaxAttempts is the total number of tries, including the first one
	MaxAttempts int

	// BaseDelay is the wait before the second attempt; each following wait doubles up to MaxDelay
	BaseDelay time.Duration
	MaxDelay  time.Duration

	// Retryable decides whether an error is worth another attempt. Nil retries every error
	Retryable func(err error) bool

	// OnRetry is called before each retry with the number of attempts made so far
	OnRetry func(attempt int, err error)
}

// DefaultPolicy is three attempts waiting 2s then 4s, capped at 8s
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		MaxDelay:    8 * time.Second,
	}
}

// normalize bounds the policy so a bad config cannot loop forever or skip the first attempt
func (p Policy) normalize() Policy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay < 0 {
		p.BaseDelay = 0
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	return p
}

// Do runs fn until it succeeds, returns a non-retryable error, the attempts run out,
// or ctx is done. The last error is returned on exhaustion
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	_, err := Get(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Get is Do for operations that produce a value
func Get[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	p = p.normalize()

	builder := retrypolicy.NewBuilder[T]().
		WithMaxAttempts(p.MaxAttempts).
		ReturnLastFailure()

	if p.BaseDelay > 0 {
		builder = builder.WithBackoff(p.BaseDelay, p.MaxDelay)
	}

	if p.Retryable != nil {
		retryable := p.Retryable
		builder = builder.HandleIf(func(_ T, err error) bool {
			return err != nil && retryable(err)
		})
	}

	if p.OnRetry != nil {
		onRetry := p.OnRetry
		builder = builder.OnRetry(func(e failsafe.ExecutionEvent[T]) {
			onRetry(e.Attempts(), e.LastError())
		})
	}

	return failsafe.With(builder.Build()).WithContext(ctx).Get(func() (T, error) {
		return fn(ctx)
	})
}

// Delays returns the waits the policy would insert between attempts, without jitter.
// Useful for logging the retry budget
func (p Policy) Delays() []time.Duration {
	p = p.normalize()

	delays := make([]time.Duration, 0, p.MaxAttempts-1)
	delay := p.BaseDelay
	for i := 1; i < p.MaxAttempts; i++ {
		delays = append(delays, delay)
		delay *= 2
		if delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
	return delays
}
