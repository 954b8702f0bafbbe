// Package retry wraps operations with bounded retries and exponential
// backoff. The final failure always propagates to the caller so fallback
// chains can engage on it.
package retry

import (
	"context"
	"time"
)

// Policy controls how many times an operation is re-attempted and how long
// the first backoff lasts. The delay doubles per attempt; no jitter.
type Policy struct {
	// MaxRetries is the number of additional attempts after the first one.
	MaxRetries int
	// BaseDelay is the wait before the first retry.
	BaseDelay time.Duration
}

// Default matches the configuration default of 3 retries starting at 1s.
func Default() Policy {
	return Policy{MaxRetries: 3, BaseDelay: time.Second}
}

// Do invokes fn up to MaxRetries+1 times, sleeping BaseDelay*2^attempt
// between attempts. The last error is returned unwrapped when all attempts
// fail. Context cancellation aborts the backoff wait immediately.
func (p Policy) Do(ctx context.Context, fn func(context.Context) error) error {
	maxRetries := p.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	delay := p.BaseDelay
	if delay <= 0 {
		delay = time.Second
	}

	var err error
	for attempt := 0; ; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= maxRetries {
			return err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}
}

// Get runs a value-returning operation under the policy.
func Get[T any](ctx context.Context, p Policy, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := p.Do(ctx, func(ctx context.Context) error {
		var innerErr error
		out, innerErr = fn(ctx)
		return innerErr
	})
	return out, err
}
