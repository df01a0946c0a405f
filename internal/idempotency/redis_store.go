package idempotency

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisGuard shares processed keys between instances with SETNX.
type RedisGuard struct {
	client *redis.Client
	ttl    time.Duration
	log    *slog.Logger
}

var _ Guard = (*RedisGuard)(nil)

func NewRedisGuard(client *redis.Client, ttl time.Duration, log *slog.Logger) *RedisGuard {
	if log == nil {
		log = slog.Default()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &RedisGuard{client: client, ttl: ttl, log: log}
}

func (g *RedisGuard) Claim(ctx context.Context, key string) (bool, error) {
	acquired, err := g.client.SetNX(ctx, recordKey(key), time.Now().Unix(), g.ttl).Result()
	if err != nil {
		g.log.ErrorContext(ctx, "failed to claim idempotency key", slog.String("key", key), slog.Any("error", err))
		return false, fmt.Errorf("claim %s: %w", key, err)
	}
	return acquired, nil
}

func recordKey(key string) string {
	return "idempotency:" + key
}
