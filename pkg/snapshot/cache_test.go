package snapshot

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/shellforge/shellforge/pkg/descriptor"
	"github.com/shellforge/shellforge/pkg/platform"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()

	cache, err := NewCache(filepath.Join(t.TempDir(), "snapshots.db"), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if err := cache.Init(context.Background()); err != nil {
		t.Fatalf("cache init failed: %v", err)
	}
	t.Cleanup(func() { _ = cache.Close() })

	return cache
}

func pinnedRef() descriptor.SourceRef {
	return descriptor.SourceRef{Host: "github", Owner: "NixOS", Repo: "nixpkgs", Ref: testRevision}
}

func TestCacheRoundTrip(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()
	index := testIndex(platform.X8664Linux)

	if err := cache.Put(ctx, pinnedRef(), platform.X8664Linux, &index); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, hit, err := cache.Get(ctx, pinnedRef(), platform.X8664Linux)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !hit {
		t.Fatal("expected cache hit")
	}
	if got.Revision != testRevision {
		t.Errorf("revision = %q", got.Revision)
	}
	if len(got.Packages) != len(index.Packages) {
		t.Errorf("packages = %d, want %d", len(got.Packages), len(index.Packages))
	}
}

func TestCacheMiss(t *testing.T) {
	cache := newTestCache(t)

	_, hit, err := cache.Get(context.Background(), pinnedRef(), platform.X8664Linux)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if hit {
		t.Error("expected cache miss")
	}
}

func TestCacheIsPlatformScoped(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()
	index := testIndex(platform.X8664Linux)

	if err := cache.Put(ctx, pinnedRef(), platform.X8664Linux, &index); err != nil {
		t.Fatal(err)
	}

	_, hit, err := cache.Get(ctx, pinnedRef(), platform.Aarch64Darwin)
	if err != nil {
		t.Fatal(err)
	}
	if hit {
		t.Error("cache entry leaked across platforms")
	}
}

func TestCacheReplace(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()
	index := testIndex(platform.X8664Linux)

	if err := cache.Put(ctx, pinnedRef(), platform.X8664Linux, &index); err != nil {
		t.Fatal(err)
	}
	if err := cache.Put(ctx, pinnedRef(), platform.X8664Linux, &index); err != nil {
		t.Fatalf("replacing an entry should not fail: %v", err)
	}
}

func TestCacheRequiresInit(t *testing.T) {
	cache, err := NewCache(filepath.Join(t.TempDir(), "snapshots.db"), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}

	if _, _, err := cache.Get(context.Background(), pinnedRef(), platform.X8664Linux); err == nil {
		t.Error("Get before Init should fail")
	}
	if err := cache.Put(context.Background(), pinnedRef(), platform.X8664Linux, &Index{}); err == nil {
		t.Error("Put before Init should fail")
	}
}
