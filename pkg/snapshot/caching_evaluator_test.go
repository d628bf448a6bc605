package snapshot

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"

	"github.com/shellforge/shellforge/pkg/descriptor"
	"github.com/shellforge/shellforge/pkg/platform"
	"github.com/shellforge/shellforge/pkg/resolver"
)

// countingEvaluator serves a fixed index and counts imports.
type countingEvaluator struct {
	calls atomic.Int32
	index Index
}

func (e *countingEvaluator) ImportSnapshot(ctx context.Context, ref descriptor.SourceRef, p platform.Platform) (resolver.PackageSet, error) {
	e.calls.Add(1)
	index := e.index
	index.Platform = p
	return newPackageSet(&index), nil
}

func TestCachingEvaluatorPinnedHit(t *testing.T) {
	cache := newTestCache(t)
	delegate := &countingEvaluator{index: testIndex(platform.X8664Linux)}
	eval := NewCachingEvaluator(delegate, cache, zerolog.Nop(), nil)
	ctx := context.Background()

	// First import goes to the delegate and populates the cache.
	if _, err := eval.ImportSnapshot(ctx, pinnedRef(), platform.X8664Linux); err != nil {
		t.Fatal(err)
	}
	if delegate.calls.Load() != 1 {
		t.Fatalf("expected 1 delegate call, got %d", delegate.calls.Load())
	}

	// Second import of the same pinned ref is served from the cache.
	pkgs, err := eval.ImportSnapshot(ctx, pinnedRef(), platform.X8664Linux)
	if err != nil {
		t.Fatal(err)
	}
	if delegate.calls.Load() != 1 {
		t.Errorf("pinned re-import hit the delegate, calls=%d", delegate.calls.Load())
	}
	if pkgs.Revision() != testRevision {
		t.Errorf("cached revision = %q", pkgs.Revision())
	}
}

func TestCachingEvaluatorMovingRefBypassesCache(t *testing.T) {
	cache := newTestCache(t)
	delegate := &countingEvaluator{index: testIndex(platform.X8664Linux)}
	eval := NewCachingEvaluator(delegate, cache, zerolog.Nop(), nil)
	ctx := context.Background()

	ref := testRef() // moving branch ref

	for i := 0; i < 2; i++ {
		if _, err := eval.ImportSnapshot(ctx, ref, platform.X8664Linux); err != nil {
			t.Fatal(err)
		}
	}
	if delegate.calls.Load() != 2 {
		t.Errorf("moving ref should always reach the delegate, calls=%d", delegate.calls.Load())
	}
}

func TestCachingEvaluatorStoresUnderResolvedRevision(t *testing.T) {
	cache := newTestCache(t)
	delegate := &countingEvaluator{index: testIndex(platform.X8664Linux)}
	eval := NewCachingEvaluator(delegate, cache, zerolog.Nop(), nil)
	ctx := context.Background()

	// Import via a moving ref; the snapshot must land in the cache under
	// its resolved revision.
	if _, err := eval.ImportSnapshot(ctx, testRef(), platform.X8664Linux); err != nil {
		t.Fatal(err)
	}

	_, hit, err := cache.Get(ctx, pinnedRef(), platform.X8664Linux)
	if err != nil {
		t.Fatal(err)
	}
	if !hit {
		t.Error("snapshot not cached under resolved revision")
	}
}
