package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"
)

// Cache stores values of type V under string keys with a per-entry TTL.
// A non-positive TTL passed to Set keeps the entry until it is deleted.
type Cache[V any] interface {
	// Get returns ErrNotFound when the key is absent or expired.
	Get(ctx context.Context, key string) (V, error)
	Set(ctx context.Context, key string, value V, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

func encode[V any](v V) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Join(ErrMarshal, err)
	}
	return data, nil
}

func decode[V any](data []byte) (V, error) {
	var v V
	if err := json.Unmarshal(data, &v); err != nil {
		return v, errors.Join(ErrUnmarshal, err)
	}
	return v, nil
}

// loads is shared by every cache; flights are keyed by cache identity and key.
var loads singleflight.Group

// loaded is the outcome of one flight. err is set when storing failed.
type loaded[V any] struct {
	value V
	err   error
}

// GetOrSet returns the cached value for key or computes it with load.
// Concurrent misses on the same key share a single load call.
//
// The shared load runs detached from the caller's cancellation, so load must
// bound its own work. A caller whose ctx ends first gets ctx.Err() while the
// load completes for the others. Errors from load are returned as is and
// nothing is stored. When storing fails the loaded value is returned together
// with an ErrStore error.
func GetOrSet[V any](ctx context.Context, c Cache[V], key string, load func(ctx context.Context) (V, time.Duration, error)) (V, error) {
	if v, err := c.Get(ctx, key); err == nil {
		return v, nil
	}

	detached := context.WithoutCancel(ctx)
	flight := loads.DoChan(fmt.Sprintf("%p/%s", c, key), func() (any, error) {
		v, ttl, err := load(detached)
		if err != nil {
			return nil, err
		}
		// Store inside the flight so late joiners hit the cache.
		if err := c.Set(detached, key, v, ttl); err != nil {
			return loaded[V]{value: v, err: errors.Join(ErrStore, err)}, nil
		}
		return loaded[V]{value: v}, nil
	})

	var zero V
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-flight:
		if res.Err != nil {
			return zero, res.Err
		}
		out := res.Val.(loaded[V])
		return out.value, out.err
	}
}
