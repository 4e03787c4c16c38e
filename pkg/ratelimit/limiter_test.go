package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitPacesCalls(t *testing.T) {
	limiter := NewTokenBucketLimiter(PerSecond(100))

	start := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, limiter.Wait(context.Background()))
	}

	// 100/s means roughly 10ms between slots; five calls should take at
	// least a few of those.
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestWaitCancelledContext(t *testing.T) {
	limiter := NewTokenBucketLimiter(PerSecond(1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, limiter.Wait(ctx))
}

func TestSetLimitValidation(t *testing.T) {
	limiter := NewTokenBucketLimiter(PerSecond(10))

	assert.Error(t, limiter.SetLimit(Rate{Limit: 0, Interval: time.Second}))
	assert.Error(t, limiter.SetLimit(Rate{Limit: 10, Interval: 0}))
	assert.NoError(t, limiter.SetLimit(Rate{Limit: 120, Interval: time.Minute}))
}
