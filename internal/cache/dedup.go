package cache

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/edvin/warroom/internal/metrics"
)

const (
	dedupPrefix = "processed_incident:"

	// DefaultDedupTTL is how long a processed fingerprint is remembered.
	DefaultDedupTTL = 24 * time.Hour
)

// DedupGate is a set-membership gate over content fingerprints. A claimed
// fingerprint stays claimed until its TTL expires or the claimer releases it.
type DedupGate struct {
	cache Cache
	ttl   time.Duration
}

// NewDedupGate creates a gate over c. A non-positive ttl uses DefaultDedupTTL.
func NewDedupGate(c Cache, ttl time.Duration, logger zerolog.Logger) *DedupGate {
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}
	return &DedupGate{cache: NewFailOpen(c, logger), ttl: ttl}
}

// Claim marks fp as processed and reports whether this caller is the one
// that marked it. Concurrent claims of one fingerprint see exactly one
// winner. An unreachable cache yields true.
func (g *DedupGate) Claim(ctx context.Context, fp string) bool {
	won, _ := g.cache.SetNX(ctx, dedupPrefix+fp, []byte("1"), g.ttl)
	if !won {
		metrics.DedupSkippedTotal.Inc()
	}
	return won
}

// Release drops a claim whose processing failed so a later scan retries fp.
func (g *DedupGate) Release(ctx context.Context, fp string) {
	_ = g.cache.Delete(ctx, dedupPrefix+fp)
}

// Seen reports whether fp is currently claimed.
func (g *DedupGate) Seen(ctx context.Context, fp string) bool {
	ok, _ := g.cache.Exists(ctx, dedupPrefix+fp)
	return ok
}

// TTL returns the lifetime of a claim.
func (g *DedupGate) TTL() time.Duration { return g.ttl }
