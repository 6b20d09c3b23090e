// Package redis provides the platform's Redis facilities: the shared client,
// a JSON value cache, and the per-document analysis lock.
package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/leaselens/leaselens/internal/config"
	"github.com/leaselens/leaselens/internal/infrastructure/logging"
	"github.com/leaselens/leaselens/pkg/errors"
)

// Client wraps the go-redis client with the configured key prefix.
type Client struct {
	rdb       *redis.Client
	keyPrefix string
	log       logging.Logger
}

// NewClient connects to Redis and verifies the connection with a ping.
func NewClient(ctx context.Context, cfg config.RedisConfig, log logging.Logger) (*Client, error) {
	if log == nil {
		log = logging.NewNopLogger()
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrapf(err, errors.ErrCodeCacheError, "ping redis at %s", cfg.Addr)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "leaselens"
	}

	log.Info("connected to redis", logging.String("addr", cfg.Addr), logging.Int("db", cfg.DB))
	return &Client{rdb: rdb, keyPrefix: prefix, log: log.Named("redis")}, nil
}

// Close releases the connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// HealthCheck pings the server.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "redis ping")
	}
	return nil
}

// key namespaces k under the configured prefix.
func (c *Client) key(parts ...string) string {
	k := c.keyPrefix
	for _, p := range parts {
		k += ":" + p
	}
	return k
}
