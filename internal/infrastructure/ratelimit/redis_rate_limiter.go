// Package ratelimit provides distributed rate limiting using Redis.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/turtacn/certgate/internal/domain/service"
	"github.com/turtacn/certgate/pkg/logger"
)

// RedisRateLimiter implements distributed rate limiting using Redis.
type RedisRateLimiter struct {
	client   redis.UniversalClient
	logger   logger.Logger
	config   RateLimiterConfig
	script   *redis.Script
	fallback *MemoryRateLimiter // used while Redis is unreachable
}

// RateLimiterConfig holds rate limiter configuration.
type RateLimiterConfig struct {
	// Limit is the request limit per window
	Limit int
	// Window is the time window for rate limiting
	Window time.Duration
	// EnableLocalFallback enables local token bucket fallback
	EnableLocalFallback bool
	// KeyPrefix is the Redis key prefix
	KeyPrefix string
}

// Lua script for atomic token bucket operations
const tokenBucketLuaScript = `
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local requested = tonumber(ARGV[3])
local now = tonumber(ARGV[4])

local bucket = redis.call('HMGET', key, 'tokens', 'last_refill')
local tokens = tonumber(bucket[1]) or capacity
local last_refill = tonumber(bucket[2]) or now

local elapsed = math.max(0, now - last_refill)
tokens = math.min(tokens + elapsed * rate / 1000, capacity)

local allowed = 0
if tokens >= requested then
    tokens = tokens - requested
    allowed = 1
end

local reset_ms = 0
if tokens < capacity then
    reset_ms = math.ceil((capacity - tokens) / rate * 1000)
end

redis.call('HSET', key, 'tokens', tostring(tokens), 'last_refill', now)
redis.call('PEXPIRE', key, reset_ms + 60000)

return {allowed, math.floor(tokens), reset_ms}
`

// NewRedisRateLimiter creates a new Redis-based rate limiter.
func NewRedisRateLimiter(client redis.UniversalClient, config RateLimiterConfig, log logger.Logger) (*RedisRateLimiter, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = "certgate:ratelimit"
	}

	rl := &RedisRateLimiter{
		client: client,
		logger: log.WithComponent("ratelimit"),
		config: config,
		script: redis.NewScript(tokenBucketLuaScript),
	}
	if config.EnableLocalFallback {
		rl.fallback = NewMemoryRateLimiter(config.Limit, config.Window)
	}

	rl.logger.Info(context.Background(), "Redis rate limiter initialized",
		logger.Int("limit", config.Limit),
		logger.Duration("window", config.Window),
		logger.Bool("local_fallback", config.EnableLocalFallback),
	)
	return rl, nil
}

var _ service.RateLimitService = (*RedisRateLimiter)(nil)

// Allow checks if a request is allowed under the rate limit.
func (rl *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, int, time.Time, error) {
	rate := float64(rl.config.Limit) / rl.config.Window.Seconds()
	now := time.Now()

	res, err := rl.script.Run(ctx, rl.client, []string{rl.buildKey(key)},
		rl.config.Limit, rate, 1, now.UnixMilli()).Int64Slice()
	if err != nil || len(res) < 3 {
		if err == nil {
			err = fmt.Errorf("invalid Lua script result")
		}
		if rl.fallback != nil {
			rl.logger.Warn(ctx, "Redis rate limiter unavailable, using local buckets", logger.Error(err))
			return rl.fallback.Allow(ctx, key)
		}
		return false, 0, time.Time{}, err
	}

	return res[0] == 1, int(res[1]), now.Add(time.Duration(res[2]) * time.Millisecond), nil
}

// Reset clears the bucket for key.
func (rl *RedisRateLimiter) Reset(ctx context.Context, key string) error {
	if err := rl.client.Del(ctx, rl.buildKey(key)).Err(); err != nil && err != redis.Nil {
		return err
	}
	return nil
}

// buildKey builds a Redis key for rate limiting.
func (rl *RedisRateLimiter) buildKey(key string) string {
	return fmt.Sprintf("%s:%s", rl.config.KeyPrefix, key)
}
