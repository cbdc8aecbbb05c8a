package redis

import (
	"context"
	"errors"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"
)

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// Client wraps the go-redis client.
type Client struct {
	rdb *goredis.Client
}

// NewClient connects to Redis. An unreachable server is logged, not fatal;
// callers that cache through it fall back to the source of truth.
func NewClient(ctx context.Context, opts Options, logger *slog.Logger) *Client {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("unable to reach redis", "addr", opts.Addr, "error", err)
	} else {
		logger.Info("connected to redis", "addr", opts.Addr)
	}

	return &Client{rdb: rdb}
}

// Ping verifies Redis connectivity.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.rdb == nil {
		return errors.New("redis client not configured")
	}
	return c.rdb.Ping(ctx).Err()
}

// Close closes the client.
func (c *Client) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}
