package resolver

import (
	"context"
	"fmt"
	"reflect"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"

	"github.com/shellforge/shellforge/pkg/descriptor"
	"github.com/shellforge/shellforge/pkg/platform"
)

// Mock implementations for testing

const testRevision = "0135b7a556ee32d2ec08a9e2c7fc8b316b2be589"

type mockPackageSet struct {
	revision string
	platform platform.Platform
	tools    map[string]ToolReference
}

func (m *mockPackageSet) Lookup(toolID string) (ToolReference, error) {
	if tool, exists := m.tools[toolID]; exists {
		return tool, nil
	}
	return ToolReference{}, NewToolNotFoundError(toolID, nil)
}

func (m *mockPackageSet) Platform() platform.Platform { return m.platform }
func (m *mockPackageSet) Revision() string            { return m.revision }

type mockEvaluator struct {
	imports  atomic.Int32
	failWith error
	tools    []string
}

func (m *mockEvaluator) ImportSnapshot(ctx context.Context, ref descriptor.SourceRef, p platform.Platform) (PackageSet, error) {
	m.imports.Add(1)
	if m.failWith != nil {
		return nil, m.failWith
	}

	tools := make(map[string]ToolReference, len(m.tools))
	for _, id := range m.tools {
		tools[id] = ToolReference{
			ID:        id,
			Name:      id,
			Version:   "1.0.0",
			StorePath: fmt.Sprintf("/sf/store/%s-%s", p, id),
			Platform:  p,
		}
	}
	return &mockPackageSet{revision: testRevision, platform: p, tools: tools}, nil
}

func testDescriptor() *descriptor.Descriptor {
	return &descriptor.Descriptor{
		Description: "test shell",
		Inputs: map[string]descriptor.SourceRef{
			"nixpkgs": {Host: "github", Owner: "NixOS", Repo: "nixpkgs", Ref: "nixos-unstable"},
		},
		Outputs: descriptor.Outputs{
			DevShell: &descriptor.DevShellConfig{
				From:        "nixpkgs",
				BuildInputs: []string{"stdenv.cc"},
				Env:         map[string]string{"CC": "cc"},
			},
		},
	}
}

func newTestResolver(eval SnapshotEvaluator) *Resolver {
	return New(eval, zerolog.Nop(), nil)
}

func TestResolveSinglePlatform(t *testing.T) {
	eval := &mockEvaluator{tools: []string{"stdenv.cc"}}
	r := newTestResolver(eval)

	spec, err := r.Resolve(context.Background(), testDescriptor(), platform.X8664Linux)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if spec.Platform != platform.X8664Linux {
		t.Errorf("platform = %q", spec.Platform)
	}
	if len(spec.Tools) != 1 || spec.Tools[0].ID != "stdenv.cc" {
		t.Errorf("tools = %+v", spec.Tools)
	}
	if spec.Revision != testRevision {
		t.Errorf("revision = %q", spec.Revision)
	}
	if !spec.Source.IsPinned() {
		t.Errorf("spec source should be pinned, got %s", spec.Source)
	}
	if spec.Env["CC"] != "cc" {
		t.Errorf("env = %v", spec.Env)
	}
}

func TestResolveToolNotFound(t *testing.T) {
	eval := &mockEvaluator{tools: []string{"cmake"}}
	r := newTestResolver(eval)

	_, err := r.Resolve(context.Background(), testDescriptor(), platform.X8664Linux)
	if !IsToolNotFound(err) {
		t.Fatalf("expected tool-not-found, got %v", err)
	}
}

func TestResolveNeverReturnsPartialSpec(t *testing.T) {
	eval := &mockEvaluator{tools: []string{"stdenv.cc"}}
	r := newTestResolver(eval)

	desc := testDescriptor()
	desc.Outputs.DevShell.BuildInputs = []string{"stdenv.cc", "ghidra"}

	spec, err := r.Resolve(context.Background(), desc, platform.X8664Linux)
	if err == nil {
		t.Fatalf("expected failure, got spec with %d tools", len(spec.Tools))
	}
	if spec != nil {
		t.Error("failed resolution must not return a spec")
	}
}

func TestResolveUnresolvedInput(t *testing.T) {
	eval := &mockEvaluator{tools: []string{"stdenv.cc"}}
	r := newTestResolver(eval)

	desc := testDescriptor()
	desc.Outputs.DevShell.From = "missing"

	_, err := r.Resolve(context.Background(), desc, platform.X8664Linux)
	if !IsUnresolvedInput(err) {
		t.Fatalf("expected unresolved-input, got %v", err)
	}
	if eval.imports.Load() != 0 {
		t.Error("unresolved input should fail before any snapshot import")
	}
}

func TestResolveUnsupportedPlatform(t *testing.T) {
	eval := &mockEvaluator{tools: []string{"stdenv.cc"}}
	r := newTestResolver(eval)

	_, err := r.Resolve(context.Background(), testDescriptor(), "riscv64-linux")
	if !IsUnsupportedPlatform(err) {
		t.Fatalf("expected unsupported-platform, got %v", err)
	}
}

func TestResolveDoesNotMutateDescriptor(t *testing.T) {
	eval := &mockEvaluator{tools: []string{"stdenv.cc"}}
	r := newTestResolver(eval)

	desc := testDescriptor()
	before := *desc
	beforeInputs := map[string]descriptor.SourceRef{}
	for k, v := range desc.Inputs {
		beforeInputs[k] = v
	}

	if _, err := r.Resolve(context.Background(), desc, platform.X8664Linux); err != nil {
		t.Fatal(err)
	}

	if desc.Description != before.Description {
		t.Error("descriptor description mutated")
	}
	if !reflect.DeepEqual(desc.Inputs, beforeInputs) {
		t.Error("descriptor inputs mutated")
	}
}

func TestResolveIdempotent(t *testing.T) {
	eval := &mockEvaluator{tools: []string{"stdenv.cc"}}
	r := newTestResolver(eval)
	ctx := context.Background()
	desc := testDescriptor()

	first, err := r.Resolve(ctx, desc, platform.X8664Linux)
	if err != nil {
		t.Fatal(err)
	}
	second, err := r.Resolve(ctx, desc, platform.X8664Linux)
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(first.Tools, second.Tools) {
		t.Errorf("tools differ between resolutions: %+v vs %+v", first.Tools, second.Tools)
	}
	if first.Revision != second.Revision || first.Source != second.Source {
		t.Error("pinned resolution is not idempotent")
	}
}

func TestResolveAllDefaultPlatforms(t *testing.T) {
	eval := &mockEvaluator{tools: []string{"stdenv.cc"}}
	r := newTestResolver(eval)

	set, err := r.ResolveAll(context.Background(), testDescriptor(), Options{})
	if err != nil {
		t.Fatalf("ResolveAll failed: %v", err)
	}

	if set.ID == "" {
		t.Error("resolution set has no run ID")
	}
	if len(set.Results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(set.Results))
	}

	specs := set.Specs()
	if len(specs) != 4 {
		t.Fatalf("expected 4 specs, got %d (failed: %v)", len(specs), set.Failed())
	}

	// No cross-platform leakage: every tool reference carries its own
	// platform.
	for p, spec := range specs {
		if spec.Platform != p {
			t.Errorf("spec keyed under %s has platform %s", p, spec.Platform)
		}
		for _, tool := range spec.Tools {
			if tool.Platform != p {
				t.Errorf("tool %s leaked platform %s into %s", tool.ID, tool.Platform, p)
			}
		}
	}
}

func TestResolveAllUnreachableSource(t *testing.T) {
	eval := &mockEvaluator{
		failWith: NewUnreachableSourceError("github:NixOS/nixpkgs/nixos-unstable",
			fmt.Errorf("connect: no route to host")),
	}
	r := newTestResolver(eval)

	set, err := r.ResolveAll(context.Background(), testDescriptor(), Options{})
	if err != nil {
		t.Fatalf("ResolveAll failed: %v", err)
	}

	failed := set.Failed()
	if len(failed) != 4 {
		t.Fatalf("expected all 4 platforms to fail, got %d", len(failed))
	}
	for p, re := range failed {
		if re.Kind != ErrKindUnreachableSource {
			t.Errorf("platform %s failed with %s, want unreachable_source", p, re.Kind)
		}
	}
}

func TestResolveAllPartialFailureDoesNotAbortSiblings(t *testing.T) {
	eval := &failOnceEvaluator{inner: &mockEvaluator{tools: []string{"stdenv.cc"}}}
	r := newTestResolver(eval)

	set, err := r.ResolveAll(context.Background(), testDescriptor(), Options{MaxParallel: 1})
	if err != nil {
		t.Fatalf("ResolveAll failed: %v", err)
	}

	if len(set.Failed()) != 1 {
		t.Errorf("expected exactly 1 failure, got %d", len(set.Failed()))
	}
	if len(set.Specs()) != 3 {
		t.Errorf("expected 3 successes, got %d", len(set.Specs()))
	}
}

// failOnceEvaluator fails the first import and succeeds afterwards.
type failOnceEvaluator struct {
	failed atomic.Bool
	inner  *mockEvaluator
}

func (e *failOnceEvaluator) ImportSnapshot(ctx context.Context, ref descriptor.SourceRef, p platform.Platform) (PackageSet, error) {
	if e.failed.CompareAndSwap(false, true) {
		return nil, NewUnreachableSourceError(ref.String(), fmt.Errorf("transient"))
	}
	return e.inner.ImportSnapshot(ctx, ref, p)
}

func TestResolveAllPlatformSubset(t *testing.T) {
	eval := &mockEvaluator{tools: []string{"stdenv.cc"}}
	r := newTestResolver(eval)

	set, err := r.ResolveAll(context.Background(), testDescriptor(), Options{
		Platforms: []platform.Platform{platform.X8664Linux},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(set.Results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(set.Results))
	}
}
