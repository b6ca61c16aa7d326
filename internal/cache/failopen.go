package cache

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/edvin/warroom/internal/metrics"
)

// FailOpen decorates a Cache so backend errors are logged, counted and then
// reported as a miss. Its methods never return an error.
type FailOpen struct {
	next   Cache
	logger zerolog.Logger
}

// NewFailOpen wraps c. Wrapping an existing *FailOpen returns it unchanged.
func NewFailOpen(c Cache, logger zerolog.Logger) *FailOpen {
	if f, ok := c.(*FailOpen); ok {
		return f
	}
	return &FailOpen{next: c, logger: logger.With().Str("component", "cache").Logger()}
}

func (f *FailOpen) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, ok, err := f.next.Get(ctx, key)
	if err != nil {
		f.absorb("get", key, err)
		return nil, false, nil
	}
	return val, ok, nil
}

func (f *FailOpen) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := f.next.Set(ctx, key, value, ttl); err != nil {
		f.absorb("set", key, err)
	}
	return nil
}

func (f *FailOpen) Exists(ctx context.Context, key string) (bool, error) {
	ok, err := f.next.Exists(ctx, key)
	if err != nil {
		f.absorb("exists", key, err)
		return false, nil
	}
	return ok, nil
}

// SetNX reports true when the backend fails, so the caller proceeds as if it
// won the key.
func (f *FailOpen) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	ok, err := f.next.SetNX(ctx, key, value, ttl)
	if err != nil {
		f.absorb("setnx", key, err)
		return true, nil
	}
	return ok, nil
}

func (f *FailOpen) Delete(ctx context.Context, key string) error {
	if err := f.next.Delete(ctx, key); err != nil {
		f.absorb("delete", key, err)
	}
	return nil
}

func (f *FailOpen) absorb(op, key string, err error) {
	metrics.CacheErrorsTotal.WithLabelValues(op).Inc()
	f.logger.Warn().Err(err).Str("op", op).Str("key", key).Msg("cache unavailable, failing open")
}
