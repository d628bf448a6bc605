package resolver

import (
	"time"

	"github.com/shellforge/shellforge/pkg/descriptor"
	"github.com/shellforge/shellforge/pkg/platform"
)

// ToolReference is a resolved build tool: a concrete, content-addressed
// entry in a package snapshot for one platform.
type ToolReference struct {
	// ID is the requested tool identifier (attribute path).
	ID string `json:"id"`

	// Name is the package name within the snapshot.
	Name string `json:"name"`

	// Version is the package version.
	Version string `json:"version"`

	// StorePath is the content-addressed path the tool's binaries live
	// under.
	StorePath string `json:"store_path"`

	// Platform is the platform this reference was resolved for.
	Platform platform.Platform `json:"platform"`
}

// ShellSpec is the resolved output for one platform: the exact set of
// tool references to expose in an interactive session. Specs are produced
// fresh on each resolution and never shared mutably.
type ShellSpec struct {
	// Platform is the platform this spec was resolved for.
	Platform platform.Platform `json:"platform"`

	// Input is the symbolic input name the tools were resolved against.
	Input string `json:"input"`

	// Source is the pinned source reference of the snapshot used.
	Source descriptor.SourceRef `json:"source"`

	// Revision is the concrete snapshot revision the source resolved to.
	Revision string `json:"revision"`

	// Tools are the resolved tool references, one per requested build
	// input, in request order.
	Tools []ToolReference `json:"tools"`

	// Env are extra environment variables from the descriptor.
	Env map[string]string `json:"env,omitempty"`

	// ResolvedAt is when this spec was produced.
	ResolvedAt time.Time `json:"resolved_at"`
}

// PlatformResult is the outcome of resolving one platform within a full
// default-set resolution.
type PlatformResult struct {
	// Platform is the platform that was resolved.
	Platform platform.Platform `json:"platform"`

	// Spec is the resolved shell specification, nil on failure.
	Spec *ShellSpec `json:"spec,omitempty"`

	// Error is the classified failure, nil on success.
	Error *ResolveError `json:"error,omitempty"`

	// Duration is how long the resolution took.
	Duration time.Duration `json:"duration"`
}

// ResolutionSet aggregates independent per-platform resolutions of one
// descriptor.
type ResolutionSet struct {
	// ID uniquely identifies this resolution run.
	ID string `json:"id"`

	// Results maps each resolved platform to its outcome.
	Results map[platform.Platform]*PlatformResult `json:"results"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`

	// Duration is the total wall-clock duration of the run.
	Duration time.Duration `json:"duration"`
}

// Specs returns the successful shell specifications keyed by platform.
func (rs *ResolutionSet) Specs() map[platform.Platform]*ShellSpec {
	specs := make(map[platform.Platform]*ShellSpec)
	for p, res := range rs.Results {
		if res.Spec != nil {
			specs[p] = res.Spec
		}
	}
	return specs
}

// Failed returns the per-platform failures keyed by platform.
func (rs *ResolutionSet) Failed() map[platform.Platform]*ResolveError {
	failed := make(map[platform.Platform]*ResolveError)
	for p, res := range rs.Results {
		if res.Error != nil {
			failed[p] = res.Error
		}
	}
	return failed
}

// Options controls descriptor resolution.
type Options struct {
	// Platforms overrides the default platform enumeration. Each entry
	// must still be a member of the default set.
	Platforms []platform.Platform

	// MaxParallel bounds concurrent platform resolutions. Zero means the
	// resolver default.
	MaxParallel int
}
