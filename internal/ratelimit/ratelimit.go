// Package ratelimit provides a per-provider minimum-interval rate limiter.
// Each provider client owns its own Limiter so providers never throttle each
// other.
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter guarantees that no two calls gated by the same instance occur
// closer together than 1/callsPerSecond.
type Limiter struct {
	lim *rate.Limiter
}

// New creates a Limiter allowing callsPerSecond calls. Non-positive values
// fall back to one call per second.
func New(callsPerSecond float64) *Limiter {
	if callsPerSecond <= 0 {
		callsPerSecond = 1
	}
	// Burst of 1 makes the token interval the minimum spacing between calls.
	return &Limiter{lim: rate.NewLimiter(rate.Limit(callsPerSecond), 1)}
}

// Wait blocks until the next call is permitted. It only fails when the
// context is cancelled before a slot opens.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.lim.Wait(ctx)
}
