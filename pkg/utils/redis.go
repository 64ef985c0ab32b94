package utils

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig is the event publisher's connection. The bridge only issues
// PUBLISH and PING, so the pool stays small and timeouts short.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

const redisPingTimeout = 2 * time.Second

// OpenRedis builds a client and fails unless the server answers PING.
func OpenRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     4,
	})
	if err := PingRedis(ctx, rdb, redisPingTimeout); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}

// Pinger is the part of a redis client PingRedis needs.
type Pinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

// PingRedis checks the server with a timeout. It backs startup and /healthz.
func PingRedis(ctx context.Context, rdb Pinger, timeout time.Duration) error {
	if rdb == nil {
		return fmt.Errorf("redis not configured")
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}
