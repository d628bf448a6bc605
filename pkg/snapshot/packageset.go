package snapshot

import (
	"github.com/shellforge/shellforge/pkg/platform"
	"github.com/shellforge/shellforge/pkg/resolver"
)

// packageSet implements resolver.PackageSet over a fetched index.
type packageSet struct {
	revision string
	platform platform.Platform
	byAttr   map[string]PackageEntry
}

// newPackageSet builds a package set from an index. Duplicate attribute
// paths keep the first entry.
func newPackageSet(index *Index) *packageSet {
	byAttr := make(map[string]PackageEntry, len(index.Packages))
	for _, entry := range index.Packages {
		if _, ok := byAttr[entry.Attr]; !ok {
			byAttr[entry.Attr] = entry
		}
	}
	return &packageSet{
		revision: index.Revision,
		platform: index.Platform,
		byAttr:   byAttr,
	}
}

// Lookup resolves a tool identifier against the snapshot contents.
func (ps *packageSet) Lookup(toolID string) (resolver.ToolReference, error) {
	entry, ok := ps.byAttr[toolID]
	if !ok {
		return resolver.ToolReference{}, resolver.NewToolNotFoundError(toolID, nil)
	}

	return resolver.ToolReference{
		ID:        toolID,
		Name:      entry.Name,
		Version:   entry.Version,
		StorePath: storePath(ps.revision, ps.platform, entry),
		Platform:  ps.platform,
	}, nil
}

// Platform returns the platform the set was evaluated for.
func (ps *packageSet) Platform() platform.Platform {
	return ps.platform
}

// Revision returns the concrete snapshot revision.
func (ps *packageSet) Revision() string {
	return ps.revision
}
