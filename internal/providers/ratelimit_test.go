package providers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRateLimiterSpacing(t *testing.T) {
	rl := NewRateLimiter(20 * time.Millisecond)

	start := time.Now()
	for range 3 {
		require.NoError(t, rl.Wait(context.Background()))
	}

	// first call is free, the next two wait a full gap each
	require.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestRateLimiterNoGap(t *testing.T) {
	var nilLimiter *RateLimiter
	require.NoError(t, nilLimiter.Wait(context.Background()))

	rl := NewRateLimiter(0)
	for range 10 {
		require.NoError(t, rl.Wait(context.Background()))
	}
}

func TestRateLimiterCanceled(t *testing.T) {
	rl := NewRateLimiter(5 * time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, rl.Wait(ctx))

	cancel()
	require.ErrorIs(t, rl.Wait(ctx), context.Canceled)
}
