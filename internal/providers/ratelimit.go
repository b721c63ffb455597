package providers

import (
	"context"
	"sync"
	"time"
)

// RateLimiter enforces a minimum gap between provider calls. A nil
// limiter, or one with a non-positive gap, never waits.
type RateLimiter struct {
	mu   sync.Mutex
	next time.Time
	gap  time.Duration
}

// NewRateLimiter returns a limiter that spaces calls at least gap apart.
func NewRateLimiter(gap time.Duration) *RateLimiter {
	return &RateLimiter{gap: gap}
}

// Wait blocks until the caller may proceed, or until ctx is done. Each
// caller reserves its slot up front, so concurrent workers queue in
// arrival order rather than stampeding when the gap elapses.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if rl == nil || rl.gap <= 0 {
		return nil
	}

	rl.mu.Lock()
	now := time.Now()
	at := rl.next
	if at.Before(now) {
		at = now
	}
	rl.next = at.Add(rl.gap)
	rl.mu.Unlock()

	wait := time.Until(at)
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
