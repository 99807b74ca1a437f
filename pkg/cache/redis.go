package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a cache shared between service instances.
// Values are stored as JSON under "{prefix}:{key}".
type Redis[V any] struct {
	client redis.UniversalClient
	prefix string
}

// NewRedis wraps a client obtained from pkg/redis.Open.
// The client's lifecycle stays with the caller.
func NewRedis[V any](client redis.UniversalClient, prefix string) *Redis[V] {
	return &Redis[V]{client: client, prefix: prefix}
}

func (r *Redis[V]) key(k string) string {
	if r.prefix == "" {
		return k
	}
	return r.prefix + ":" + k
}

func (r *Redis[V]) Get(ctx context.Context, key string) (V, error) {
	data, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		var zero V
		if errors.Is(err, redis.Nil) {
			return zero, ErrNotFound
		}
		return zero, err
	}
	return decode[V](data)
}

// Set stores value. Redis treats a zero expiration as "keep forever",
// which matches the non-positive TTL contract.
func (r *Redis[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key(key), data, max(ttl, 0)).Err()
}

func (r *Redis[V]) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.key(key)).Err()
}

// Close is a no-op; shut the client down with pkg/redis.Shutdown.
func (r *Redis[V]) Close() error {
	return nil
}

var _ Cache[any] = (*Redis[any])(nil)
