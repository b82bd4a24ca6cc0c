// Package ratelimit provides rate limiting implementations.
package ratelimit

import (
	"math"
	"sync"
	"time"
)

// TokenBucket implements the token bucket algorithm for rate limiting.
// It provides thread-safe rate limiting with automatic token refill.
type TokenBucket struct {
	mu         sync.Mutex
	capacity   float64   // Maximum number of tokens
	tokens     float64   // Current number of tokens
	rate       float64   // Tokens added per second
	lastRefill time.Time // Last time tokens were refilled
	now        func() time.Time
}

// NewTokenBucket creates a bucket that holds limit tokens and refills fully over window.
func NewTokenBucket(limit int, window time.Duration) *TokenBucket {
	return newTokenBucket(limit, window, time.Now)
}

func newTokenBucket(limit int, window time.Duration, now func() time.Time) *TokenBucket {
	capacity := float64(limit)
	return &TokenBucket{
		capacity:   capacity,
		tokens:     capacity, // Start with full bucket
		rate:       capacity / window.Seconds(),
		lastRefill: now(),
		now:        now,
	}
}

// Take attempts to consume one token. It returns whether the token was available,
// the whole tokens left and the time the bucket will be full again.
func (tb *TokenBucket) Take() (bool, int, time.Time) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := tb.now()
	tb.refill(now)

	allowed := false
	if tb.tokens >= 1 {
		tb.tokens--
		allowed = true
	}

	resetAt := now
	if missing := tb.capacity - tb.tokens; missing > 0 {
		resetAt = now.Add(time.Duration(missing / tb.rate * float64(time.Second)))
	}
	return allowed, int(math.Floor(tb.tokens)), resetAt
}

// refill adds tokens to the bucket based on elapsed time since last refill.
// Must be called with lock held.
func (tb *TokenBucket) refill(now time.Time) {
	elapsed := now.Sub(tb.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	tb.tokens = math.Min(tb.tokens+elapsed*tb.rate, tb.capacity)
	tb.lastRefill = now
}
