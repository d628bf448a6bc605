package resolver

import (
	"context"

	"github.com/shellforge/shellforge/pkg/descriptor"
	"github.com/shellforge/shellforge/pkg/platform"
)

// SnapshotEvaluator dereferences a source reference into an evaluated
// package set for one platform. Implementations may fetch over the
// network or serve from a local cache; either way a given (ref, platform)
// pair resolves to exactly one snapshot per call.
type SnapshotEvaluator interface {
	// ImportSnapshot dereferences ref for the given platform. Failures to
	// reach the source surface as unreachable-source errors.
	ImportSnapshot(ctx context.Context, ref descriptor.SourceRef, p platform.Platform) (PackageSet, error)
}

// PackageSet is the evaluated contents of one snapshot for one platform.
type PackageSet interface {
	// Lookup resolves a tool identifier (attribute path) into a concrete
	// tool reference, or fails with a tool-not-found error.
	Lookup(toolID string) (ToolReference, error)

	// Platform returns the platform the set was evaluated for.
	Platform() platform.Platform

	// Revision returns the concrete snapshot revision.
	Revision() string
}
