// Package cache holds small TTL caches used for provider liveness results.
//
// [Memory] keeps entries in process and accepts an injectable clock so
// expiry can be driven deterministically in tests. [Redis] shares entries
// between replicas of the service. Both satisfy [Cache].
//
// [GetOrSet] collapses concurrent misses for one key into a single load:
//
//	entry, err := cache.GetOrSet(ctx, c, "liveness:relay",
//	    func(ctx context.Context) (Entry, time.Duration, error) {
//	        return probe(ctx), 5 * time.Minute, nil
//	    })
package cache
