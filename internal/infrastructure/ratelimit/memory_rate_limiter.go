package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/turtacn/certgate/internal/domain/service"
)

// MemoryRateLimiter keeps one token bucket per key in process memory.
// Idle buckets expire after two windows, at which point they would be full anyway.
type MemoryRateLimiter struct {
	limit   int
	window  time.Duration
	buckets *cache.Cache
	mu      sync.Mutex
	now     func() time.Time
}

// NewMemoryRateLimiter allows limit requests per window per key.
func NewMemoryRateLimiter(limit int, window time.Duration) *MemoryRateLimiter {
	return &MemoryRateLimiter{
		limit:   limit,
		window:  window,
		buckets: cache.New(2*window, window),
		now:     time.Now,
	}
}

var _ service.RateLimitService = (*MemoryRateLimiter)(nil)

// Allow consumes one token for key.
func (m *MemoryRateLimiter) Allow(_ context.Context, key string) (bool, int, time.Time, error) {
	allowed, remaining, resetAt := m.bucket(key).Take()
	return allowed, remaining, resetAt, nil
}

func (m *MemoryRateLimiter) bucket(key string) *TokenBucket {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.buckets.Get(key); ok {
		m.buckets.SetDefault(key, b)
		return b.(*TokenBucket)
	}
	b := newTokenBucket(m.limit, m.window, m.now)
	m.buckets.SetDefault(key, b)
	return b
}
