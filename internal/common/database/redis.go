// internal/common/database/redis.go
package database

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"land-marketplace/internal/common/config"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned by GetJSON when the key does not exist.
var ErrNotFound = stderrors.New("key not found")

// RedisClient wraps the Redis client
type RedisClient struct {
	Client *redis.Client
}

// NewRedis creates a new Redis client
func NewRedis(cfg config.RedisConfig) (*RedisClient, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     4,
		MinIdleConns: 1,
	})

	return &RedisClient{Client: rdb}, nil
}

// NewRedisFromClient wraps an existing client (tests use redismock/miniredis).
func NewRedisFromClient(rdb *redis.Client) *RedisClient {
	return &RedisClient{Client: rdb}
}

// Ping tests the Redis connection
func (c *RedisClient) Ping(ctx context.Context) error {
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (c *RedisClient) Close() error {
	if c.Client != nil {
		return c.Client.Close()
	}
	return nil
}

// Get retrieves a value by key
func (c *RedisClient) Get(ctx context.Context, key string) (string, error) {
	return c.Client.Get(ctx, key).Result()
}

// Set sets a value with optional expiration
func (c *RedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return c.Client.Set(ctx, key, value, expiration).Err()
}

// Del deletes one or more keys
func (c *RedisClient) Del(ctx context.Context, keys ...string) error {
	return c.Client.Del(ctx, keys...).Err()
}

// SetJSON stores v encoded as JSON.
func (c *RedisClient) SetJSON(ctx context.Context, key string, v interface{}, expiration time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return c.Set(ctx, key, data, expiration)
}

// GetJSON decodes the JSON value at key into v. A missing key is ErrNotFound.
func (c *RedisClient) GetJSON(ctx context.Context, key string, v interface{}) error {
	raw, err := c.Client.Get(ctx, key).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// GetClient returns the underlying *redis.Client for compatibility
func (c *RedisClient) GetClient() *redis.Client {
	return c.Client
}
