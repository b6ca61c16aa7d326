package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const (
	queryPrefix = "scan_query:"

	// DefaultQueryTTL is how long a search result is memoized.
	DefaultQueryTTL = 5 * time.Minute
)

// QueryCache memoizes expensive lookups by query string. Results are stored
// as JSON; concurrent lookups of the same query share one call.
type QueryCache[T any] struct {
	cache  Cache
	ttl    time.Duration
	group  singleflight.Group
	logger zerolog.Logger
}

// NewQueryCache creates a memo over c. A non-positive ttl uses DefaultQueryTTL.
func NewQueryCache[T any](c Cache, ttl time.Duration, logger zerolog.Logger) *QueryCache[T] {
	if ttl <= 0 {
		ttl = DefaultQueryTTL
	}
	return &QueryCache[T]{
		cache:  NewFailOpen(c, logger),
		ttl:    ttl,
		logger: logger.With().Str("component", "query-cache").Logger(),
	}
}

// Lookup returns the memoized value for query, calling fetch on a miss.
// Errors from fetch are returned and not cached.
func (q *QueryCache[T]) Lookup(ctx context.Context, query string, fetch func(context.Context) (T, error)) (T, error) {
	key := queryPrefix + query

	if raw, ok, _ := q.cache.Get(ctx, key); ok {
		var v T
		err := json.Unmarshal(raw, &v)
		if err == nil {
			return v, nil
		}
		q.logger.Warn().Err(err).Str("query", query).Msg("discarding undecodable cached result")
	}

	v, err, _ := q.group.Do(key, func() (any, error) {
		v, err := fetch(ctx)
		if err != nil {
			return v, err
		}
		if raw, err := json.Marshal(v); err == nil {
			_ = q.cache.Set(ctx, key, raw, q.ttl)
		}
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}
