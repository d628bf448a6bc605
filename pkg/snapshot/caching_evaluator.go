package snapshot

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/shellforge/shellforge/pkg/descriptor"
	"github.com/shellforge/shellforge/pkg/platform"
	"github.com/shellforge/shellforge/pkg/resolver"
	"github.com/shellforge/shellforge/pkg/telemetry"
)

// CachingEvaluator wraps a snapshot evaluator with the SQLite cache.
// Pinned references are served from the cache when present and stored
// after a successful fetch; moving references always go to the delegate.
type CachingEvaluator struct {
	delegate resolver.SnapshotEvaluator
	cache    *Cache
	logger   zerolog.Logger
	metrics  *telemetry.Metrics
}

// NewCachingEvaluator creates a caching evaluator. The cache must be
// initialized by the caller. metrics may be nil.
func NewCachingEvaluator(delegate resolver.SnapshotEvaluator, cache *Cache, logger zerolog.Logger, metrics *telemetry.Metrics) *CachingEvaluator {
	return &CachingEvaluator{
		delegate: delegate,
		cache:    cache,
		logger:   logger.With().Str("component", "snapshot-cache").Logger(),
		metrics:  metrics,
	}
}

// ImportSnapshot implements resolver.SnapshotEvaluator.
func (e *CachingEvaluator) ImportSnapshot(ctx context.Context, ref descriptor.SourceRef, p platform.Platform) (resolver.PackageSet, error) {
	if ref.IsPinned() {
		started := time.Now()
		index, hit, err := e.cache.Get(ctx, ref, p)
		if err != nil {
			// A broken cache must not make resolution fail; fall through
			// to the delegate.
			e.logger.Warn().Err(err).Str("source", ref.String()).Msg("cache read failed")
		} else if hit {
			e.metrics.ObserveSnapshotFetch("cached", time.Since(started))
			e.logger.Debug().
				Str("source", ref.String()).
				Str("platform", p.String()).
				Msg("snapshot served from cache")
			return newPackageSet(index), nil
		}
	}

	pkgs, err := e.delegate.ImportSnapshot(ctx, ref, p)
	if err != nil {
		return nil, err
	}

	// Store the snapshot under its resolved revision so future pinned
	// imports hit the cache, even when this import used a moving ref.
	if set, ok := pkgs.(*packageSet); ok {
		index := &Index{
			Revision: set.revision,
			Platform: set.platform,
			Packages: make([]PackageEntry, 0, len(set.byAttr)),
		}
		for _, entry := range set.byAttr {
			index.Packages = append(index.Packages, entry)
		}

		pinned := ref.Pin(set.revision)
		if pinned.IsPinned() {
			if err := e.cache.Put(ctx, pinned, p, index); err != nil {
				e.logger.Warn().Err(err).Str("source", pinned.String()).Msg("cache write failed")
			}
		}
	}

	return pkgs, nil
}
