package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"supernomad/internal/platform/config"
)

// Client is the go-redis client the redis store writes through.
type Client struct {
	*redis.Client
}

// New creates a Redis client from the storage configuration and verifies the
// connection with a ping.
func New(ctx context.Context, cfg config.Storage) (*Client, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("redis URL is required")
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	if cfg.RedisPoolSize > 0 {
		opts.PoolSize = cfg.RedisPoolSize
	}
	opts.MinIdleConns = cfg.RedisMinIdleConns
	opts.DialTimeout = cfg.RedisDialTimeout
	opts.ReadTimeout = cfg.RedisReadTimeout
	opts.WriteTimeout = cfg.RedisWriteTimeout

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{Client: client}, nil
}
