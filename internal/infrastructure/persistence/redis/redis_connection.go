// Package redis provides Redis client initialization for shared rate-limit state.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/turtacn/certgate/internal/config"
	"github.com/turtacn/certgate/pkg/logger"
)

const pingTimeout = 5 * time.Second

// NewClient creates a universal client (standalone or cluster, depending on the number
// of addresses) and verifies connectivity.
func NewClient(ctx context.Context, cfg config.RedisConfig, log logger.Logger) (redis.UniversalClient, error) {
	if len(cfg.Addresses) == 0 {
		return nil, fmt.Errorf("redis: no addresses configured")
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:        cfg.Addresses,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping failed: %w", err)
	}

	log.Info(ctx, "Redis connection established",
		logger.Strings("addresses", cfg.Addresses),
		logger.Int("db", cfg.DB),
	)
	return client, nil
}
