// Package ratelimit provides the token-bucket limiter the feeder uses to cap
// rate submissions per minute.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is the limiter interface.
type RateLimiter interface {
	Wait(ctx context.Context) error
	Allow() bool
	GetRemaining() int
}

// TokenBucket refills refillRate tokens per second up to capacity. When
// refillRate is zero it refills one token per refillInterval instead, which
// expresses slower-than-one-per-second budgets.
type TokenBucket struct {
	capacity       int
	tokens         int
	refillRate     int
	refillInterval time.Duration
	windowSize     time.Duration
	lastRefill     time.Time
	mu             sync.Mutex
}

// NewTokenBucket builds a full bucket. windowSize is the fallback wait when
// refillRate is zero.
func NewTokenBucket(capacity, refillRate int, windowSize time.Duration) *TokenBucket {
	return &TokenBucket{
		capacity:   capacity,
		tokens:     capacity,
		refillRate: refillRate,
		windowSize: windowSize,
		lastRefill: time.Now(),
	}
}

// NewTokenBucketPerWindow builds a full bucket that allows at most capacity
// events per window, refilling evenly across the window.
func NewTokenBucketPerWindow(capacity int, window time.Duration) *TokenBucket {
	if capacity <= 0 {
		capacity = 1
	}
	return &TokenBucket{
		capacity:       capacity,
		tokens:         capacity,
		refillInterval: window / time.Duration(capacity),
		windowSize:     window,
		lastRefill:     time.Now(),
	}
}

func (tb *TokenBucket) refill() {
	now := time.Now()
	elapsed := now.Sub(tb.lastRefill)

	var tokensToAdd int
	if tb.refillRate > 0 {
		tokensToAdd = int(elapsed.Seconds()) * tb.refillRate
	} else if tb.refillInterval > 0 {
		tokensToAdd = int(elapsed / tb.refillInterval)
	}
	if tokensToAdd > 0 {
		tb.tokens = min(tb.capacity, tb.tokens+tokensToAdd)
		tb.lastRefill = now
	}
}

// Allow consumes a token when one is available.
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	if tb.tokens > 0 {
		tb.tokens--
		return true
	}
	return false
}

// Wait blocks until a token is available or ctx is done.
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for {
		if tb.Allow() {
			return nil
		}

		tb.mu.Lock()
		tb.refill()
		waitTime := time.Duration(0)
		if tb.tokens == 0 {
			if tb.refillRate > 0 {
				waitTime = time.Second / time.Duration(tb.refillRate)
			} else if tb.refillInterval > 0 {
				waitTime = tb.refillInterval
			}
		}
		tb.mu.Unlock()

		if waitTime == 0 {
			waitTime = tb.windowSize
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(waitTime):
		}
	}
}

// GetRemaining reports tokens left after a refill pass.
func (tb *TokenBucket) GetRemaining() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.refill()
	return tb.tokens
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
