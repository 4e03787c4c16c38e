// Package ratelimit bounds the pace of outbound exchange calls. Every
// adapter instance owns exactly one limiter; concurrent calls through the
// adapter share it and are delayed until a slot opens, never dropped.
// The implementation wraps Uber's leaky-bucket limiter.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/ratelimit"
)

// Rate expresses a limit as operations per interval, matching how exchanges
// document their quotas (e.g. 1200 requests per minute).
type Rate struct {
	Limit    int
	Interval time.Duration
}

// PerSecond is a convenience constructor for the common per-second quota.
func PerSecond(n int) Rate {
	return Rate{Limit: n, Interval: time.Second}
}

func (r Rate) perSecond() int {
	if r.Limit <= 0 || r.Interval <= 0 {
		return 1
	}
	rps := int(float64(r.Limit) / r.Interval.Seconds())
	if rps < 1 {
		rps = 1
	}
	return rps
}

// RateLimiter gates an operation until it is allowed to proceed.
type RateLimiter interface {
	// Wait blocks until a slot is available or the context is done.
	Wait(ctx context.Context) error

	// SetLimit replaces the limiter's rate at runtime.
	SetLimit(rate Rate) error
}

type bucketLimiter struct {
	mu      sync.Mutex
	limiter ratelimit.Limiter
	rate    Rate
}

// NewTokenBucketLimiter returns a limiter that admits rate.Limit operations
// per rate.Interval, smoothed across the interval.
func NewTokenBucketLimiter(rate Rate) RateLimiter {
	return &bucketLimiter{
		limiter: ratelimit.New(rate.perSecond()),
		rate:    rate,
	}
}

func (l *bucketLimiter) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("rate limit wait cancelled: %w", err)
	}

	l.mu.Lock()
	limiter := l.limiter
	l.mu.Unlock()

	limiter.Take()
	return ctx.Err()
}

func (l *bucketLimiter) SetLimit(rate Rate) error {
	if rate.Limit <= 0 || rate.Interval <= 0 {
		return fmt.Errorf("invalid rate limit: %+v", rate)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.limiter = ratelimit.New(rate.perSecond())
	l.rate = rate
	return nil
}
