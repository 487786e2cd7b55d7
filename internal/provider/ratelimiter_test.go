package provider

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterAllowsBurst(t *testing.T) {
	limiter := NewRateLimiter(2, time.Minute)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, limiter.Wait(ctx))
	require.NoError(t, limiter.Wait(ctx))
	assert.Less(t, time.Since(start), 10*time.Millisecond, "burst waits should return immediately")
	assert.False(t, limiter.Allow())
}

func TestRateLimiterRefill(t *testing.T) {
	limiter := NewRateLimiter(1, 5*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, limiter.Wait(ctx))
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, limiter.Wait(ctx), "expected token after refill")
}

func TestRateLimiterHonorsContext(t *testing.T) {
	limiter := NewRateLimiter(1, time.Second)
	ctx := context.Background()
	_ = limiter.Wait(ctx)

	timeoutCtx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	assert.Error(t, limiter.Wait(timeoutCtx))
	assert.Less(t, time.Since(start), 200*time.Millisecond, "wait should stop after context cancellation")
}

func TestNewPerSecondLimiter(t *testing.T) {
	limiter := NewPerSecondLimiter(4)
	assert.Equal(t, 4, limiter.maxTokens)
	assert.Equal(t, 250*time.Millisecond, limiter.refillInterval)

	limiter = NewPerSecondLimiter(0)
	assert.Equal(t, 1, limiter.maxTokens)
}
