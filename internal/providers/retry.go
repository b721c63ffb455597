package providers

import (
	"math"
	"math/rand"
	"time"
)

// RetryPolicy controls how failed provider calls are retried. Attempts
// are spaced with exponential backoff and a ±25% jitter so that parallel
// workers do not thunder in lockstep.
type RetryPolicy struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	BackoffFactor   float64
	RetryableStatus []int
}

// DefaultRetryPolicy returns the policy used when a run spec does not
// override max_attempts.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:   5,
		InitialDelay:  1 * time.Second,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2.0,
		RetryableStatus: []int{
			429, // rate limited
			500, // internal server error
			502, // bad gateway
			503, // service unavailable
			504, // gateway timeout
		},
	}
}

// ShouldRetry reports whether err is transient under this policy.
func (p RetryPolicy) ShouldRetry(err error) bool {
	return IsTransient(err, p.RetryableStatus)
}

// Delay returns how long to wait before the next attempt. attempt counts
// completed attempts, so the first retry passes 1.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(p.InitialDelay) * math.Pow(p.BackoffFactor, float64(attempt-1))

	jitter := delay * 0.25 * (rand.Float64()*2 - 1) //nolint:gosec // retry spacing, not crypto
	delay += jitter

	if max := float64(p.MaxDelay); delay > max {
		delay = max
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}
