package snapshot

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/shellforge/shellforge/pkg/descriptor"
	"github.com/shellforge/shellforge/pkg/platform"
	"github.com/shellforge/shellforge/pkg/resolver"
)

const testRevision = "0135b7a556ee32d2ec08a9e2c7fc8b316b2be589"

func testIndex(p platform.Platform) Index {
	return Index{
		Revision: testRevision,
		Platform: p,
		Packages: []PackageEntry{
			{Attr: "stdenv.cc", Name: "gcc-wrapper", Version: "13.2.0"},
			{Attr: "cmake", Name: "cmake", Version: "3.29.2"},
		},
	}
}

func testRef() descriptor.SourceRef {
	return descriptor.SourceRef{Host: "github", Owner: "NixOS", Repo: "nixpkgs", Ref: "nixos-unstable"}
}

func fastConfig(endpoint string) Config {
	return Config{
		Endpoints:   map[string]string{"github": endpoint},
		Timeout:     5 * time.Second,
		MaxAttempts: 3,
		BaseBackoff: time.Millisecond,
		MaxBackoff:  5 * time.Millisecond,
	}
}

func newTestEvaluator(endpoint string) *HTTPEvaluator {
	return NewHTTPEvaluator(fastConfig(endpoint), zerolog.Nop(), nil)
}

func TestImportSnapshot(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/NixOS/nixpkgs/nixos-unstable/x86_64-linux/index.json" {
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(testIndex(platform.X8664Linux))
	}))
	defer server.Close()

	eval := newTestEvaluator(server.URL)

	pkgs, err := eval.ImportSnapshot(context.Background(), testRef(), platform.X8664Linux)
	if err != nil {
		t.Fatalf("ImportSnapshot failed: %v", err)
	}

	if pkgs.Revision() != testRevision {
		t.Errorf("revision = %q", pkgs.Revision())
	}
	if pkgs.Platform() != platform.X8664Linux {
		t.Errorf("platform = %q", pkgs.Platform())
	}

	tool, err := pkgs.Lookup("stdenv.cc")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if tool.Name != "gcc-wrapper" || tool.Version != "13.2.0" {
		t.Errorf("tool = %+v", tool)
	}
	if tool.StorePath == "" {
		t.Error("tool has no store path")
	}
}

func TestLookupToolNotFound(t *testing.T) {
	pkgs := newPackageSet(&Index{Revision: testRevision, Platform: platform.X8664Linux})

	_, err := pkgs.Lookup("ghidra")
	if !resolver.IsToolNotFound(err) {
		t.Fatalf("expected tool-not-found, got %v", err)
	}
}

func TestStorePathIsDeterministic(t *testing.T) {
	entry := PackageEntry{Attr: "stdenv.cc", Name: "gcc-wrapper", Version: "13.2.0"}

	a := storePath(testRevision, platform.X8664Linux, entry)
	b := storePath(testRevision, platform.X8664Linux, entry)
	if a != b {
		t.Errorf("store path not deterministic: %q vs %q", a, b)
	}

	c := storePath(testRevision, platform.Aarch64Linux, entry)
	if a == c {
		t.Error("store path should differ across platforms")
	}
}

func TestRetryOnServerError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(testIndex(platform.X8664Linux))
	}))
	defer server.Close()

	eval := newTestEvaluator(server.URL)

	if _, err := eval.ImportSnapshot(context.Background(), testRef(), platform.X8664Linux); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestNoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer server.Close()

	eval := newTestEvaluator(server.URL)

	_, err := eval.ImportSnapshot(context.Background(), testRef(), platform.X8664Linux)
	if !resolver.IsUnreachableSource(err) {
		t.Fatalf("expected unreachable-source, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("404 should not be retried, got %d attempts", calls.Load())
	}
}

func TestUnreachableHost(t *testing.T) {
	// A closed server guarantees connection refusal.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	eval := newTestEvaluator(url)

	_, err := eval.ImportSnapshot(context.Background(), testRef(), platform.X8664Linux)
	if !resolver.IsUnreachableSource(err) {
		t.Fatalf("expected unreachable-source, got %v", err)
	}
}

func TestUnknownHostShorthand(t *testing.T) {
	eval := newTestEvaluator("http://127.0.0.1:0")

	ref := testRef()
	ref.Host = "codeberg"

	_, err := eval.ImportSnapshot(context.Background(), ref, platform.X8664Linux)
	if !resolver.IsUnreachableSource(err) {
		t.Fatalf("expected unreachable-source for unknown host, got %v", err)
	}
}

func TestMalformedIndex(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{not json"))
	}))
	defer server.Close()

	eval := newTestEvaluator(server.URL)

	_, err := eval.ImportSnapshot(context.Background(), testRef(), platform.X8664Linux)
	if !resolver.IsUnreachableSource(err) {
		t.Fatalf("expected unreachable-source for malformed index, got %v", err)
	}
}

func TestMissingRevisionRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(Index{Platform: platform.X8664Linux})
	}))
	defer server.Close()

	eval := newTestEvaluator(server.URL)

	if _, err := eval.ImportSnapshot(context.Background(), testRef(), platform.X8664Linux); err == nil {
		t.Fatal("expected error for index without revision")
	}
}
