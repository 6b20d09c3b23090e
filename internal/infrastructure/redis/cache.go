package redis

import (
	"context"
	"encoding/json"
	goerrors "errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/leaselens/leaselens/internal/infrastructure/logging"
	"github.com/leaselens/leaselens/pkg/errors"
)

// ErrCacheMiss is returned by Cache.Get when the key is absent or expired.
var ErrCacheMiss = errors.New(errors.ErrCodeCacheError, "cache miss")

// Cache stores JSON-encoded values under a namespace with a default TTL.
type Cache struct {
	client     *Client
	namespace  string
	defaultTTL time.Duration
	log        logging.Logger
}

// NewCache builds a Cache in the given namespace.  A zero defaultTTL means
// entries never expire.
func NewCache(client *Client, namespace string, defaultTTL time.Duration, log logging.Logger) *Cache {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Cache{
		client:     client,
		namespace:  namespace,
		defaultTTL: defaultTTL,
		log:        log.Named("cache"),
	}
}

// Set stores value under key with the default TTL.
func (c *Cache) Set(ctx context.Context, key string, value interface{}) error {
	return c.SetWithTTL(ctx, key, value, c.defaultTTL)
}

// SetWithTTL stores value under key with an explicit TTL.
func (c *Cache) SetWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "encode cache value")
	}
	if err := c.client.rdb.Set(ctx, c.client.key(c.namespace, key), data, ttl).Err(); err != nil {
		return errors.Wrapf(err, errors.ErrCodeCacheError, "cache set %s", key)
	}
	return nil
}

// Get loads the value at key into out.  Returns ErrCacheMiss when absent.
func (c *Cache) Get(ctx context.Context, key string, out interface{}) error {
	data, err := c.client.rdb.Get(ctx, c.client.key(c.namespace, key)).Bytes()
	if err != nil {
		if goerrors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		return errors.Wrapf(err, errors.ErrCodeCacheError, "cache get %s", key)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "decode cache value")
	}
	return nil
}

// Delete removes key.  Missing keys are not an error.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.client.rdb.Del(ctx, c.client.key(c.namespace, key)).Err(); err != nil {
		return errors.Wrapf(err, errors.ErrCodeCacheError, "cache delete %s", key)
	}
	return nil
}
