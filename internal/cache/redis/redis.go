// Package rediscache implements the monitor Cache on Redis. Summaries and
// login sessions share one Redis database, namespaced by key prefix.
package rediscache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const keyPrefix = "quakewatch:"

// Cache wraps a Redis client with TTL-based get/set. Cache errors are logged
// and swallowed: the miss path recomputes, so a flaky Redis only costs work.
type Cache struct {
	client *redis.Client
	logger *zap.Logger
}

// Config holds Redis connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// New connects to Redis and verifies the connection with a ping.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Cache{client: client, logger: logger}, nil
}

// Get returns the value for key if present.
func (c *Cache) Get(ctx context.Context, key string) (string, bool) {
	value, err := c.client.Get(ctx, keyPrefix+key).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		}
		return "", false
	}
	return value, true
}

// Set stores value under key with the given TTL.
func (c *Cache) Set(ctx context.Context, key, value string, ttl time.Duration) {
	if err := c.client.Set(ctx, keyPrefix+key, value, ttl).Err(); err != nil {
		c.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// Close releases the underlying Redis connection pool.
func (c *Cache) Close() error {
	if err := c.client.Close(); err != nil {
		return fmt.Errorf("close redis client: %w", err)
	}
	return nil
}
