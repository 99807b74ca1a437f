package mailer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/spana/mailgate/pkg/cache"
)

// Default liveness TTLs. Failures are re-checked sooner than successes.
const (
	DefaultLivenessTTL        = 5 * time.Minute
	DefaultLivenessFailureTTL = time.Minute

	// DefaultLivenessCheckTimeout bounds one provider check. Checks run
	// detached from the request that triggered them.
	DefaultLivenessCheckTimeout = 15 * time.Second
)

const livenessKeyPrefix = "liveness:"

// LivenessEntry is the cached outcome of a provider check.
// Value and timestamp are stored together so readers never see a partial update.
type LivenessEntry struct {
	CheckedAt time.Time `json:"checked_at"`
	Verified  bool      `json:"verified"`
}

// LivenessCache memoizes provider liveness checks.
// Expired entries are treated as absent and refreshed on the next query.
// Concurrent misses for the same provider run the check only once.
type LivenessCache struct {
	store        cache.Cache[LivenessEntry]
	logger       *slog.Logger
	now          func() time.Time
	successTTL   time.Duration
	failureTTL   time.Duration
	checkTimeout time.Duration
}

// LivenessOption configures a LivenessCache.
type LivenessOption func(*LivenessCache)

// WithLivenessTTL sets how long a successful check is trusted.
func WithLivenessTTL(d time.Duration) LivenessOption {
	return func(l *LivenessCache) {
		if d > 0 {
			l.successTTL = d
		}
	}
}

// WithLivenessFailureTTL sets how long a failed check is trusted.
func WithLivenessFailureTTL(d time.Duration) LivenessOption {
	return func(l *LivenessCache) {
		if d > 0 {
			l.failureTTL = d
		}
	}
}

// WithLivenessCheckTimeout bounds a single provider check.
func WithLivenessCheckTimeout(d time.Duration) LivenessOption {
	return func(l *LivenessCache) {
		if d > 0 {
			l.checkTimeout = d
		}
	}
}

// WithLivenessLogger sets the logger used to report store failures.
func WithLivenessLogger(log *slog.Logger) LivenessOption {
	return func(l *LivenessCache) {
		if log != nil {
			l.logger = log
		}
	}
}

// WithLivenessClock replaces the clock used to stamp entries.
// Use the same clock for the backing memory store in tests.
func WithLivenessClock(now func() time.Time) LivenessOption {
	return func(l *LivenessCache) {
		if now != nil {
			l.now = now
		}
	}
}

// NewLivenessCache creates a liveness cache on top of the given store.
// A nil store falls back to an in-memory cache.
func NewLivenessCache(store cache.Cache[LivenessEntry], opts ...LivenessOption) *LivenessCache {
	l := &LivenessCache{
		store:        store,
		logger:       slog.New(slog.DiscardHandler),
		now:          time.Now,
		successTTL:   DefaultLivenessTTL,
		failureTTL:   DefaultLivenessFailureTTL,
		checkTimeout: DefaultLivenessCheckTimeout,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.store == nil {
		l.store = cache.NewMemory[LivenessEntry](cache.WithClock(l.now))
	}
	return l
}

// Check returns the cached entry for provider, running check on a miss.
//
// The check is shared by every concurrent caller and is not cut short when
// the caller that started it goes away. A caller whose ctx ends first gets an
// unverified entry that is not cached. If the store rejects the result, the
// fresh entry is still returned and the next query checks again.
func (l *LivenessCache) Check(ctx context.Context, provider string, check func(ctx context.Context) bool) LivenessEntry {
	entry, err := cache.GetOrSet(ctx, l.store, livenessKeyPrefix+provider,
		func(ctx context.Context) (LivenessEntry, time.Duration, error) {
			ctx, cancel := context.WithTimeout(ctx, l.checkTimeout)
			defer cancel()

			ok := check(ctx)
			ttl := l.successTTL
			if !ok {
				ttl = l.failureTTL
			}
			return LivenessEntry{Verified: ok, CheckedAt: l.now()}, ttl, nil
		},
	)
	switch {
	case err == nil:
		return entry
	case errors.Is(err, cache.ErrStore):
		l.logger.WarnContext(ctx, "liveness result not cached",
			slog.String("provider", provider),
			slog.Any("error", err),
		)
		return entry
	default:
		return LivenessEntry{CheckedAt: l.now()}
	}
}

// Peek returns the cached entry without triggering a check.
func (l *LivenessCache) Peek(ctx context.Context, provider string) (LivenessEntry, bool) {
	entry, err := l.store.Get(ctx, livenessKeyPrefix+provider)
	if err != nil {
		return LivenessEntry{}, false
	}
	return entry, true
}

// Invalidate drops the cached entry for provider.
func (l *LivenessCache) Invalidate(ctx context.Context, provider string) error {
	if err := l.store.Delete(ctx, livenessKeyPrefix+provider); err != nil && !errors.Is(err, cache.ErrNotFound) {
		return err
	}
	return nil
}

// Close releases the backing store.
func (l *LivenessCache) Close() error {
	return l.store.Close()
}
