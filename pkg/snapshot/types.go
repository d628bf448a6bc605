package snapshot

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"github.com/shellforge/shellforge/pkg/platform"
)

// Index is the wire format of a snapshot package index: the evaluated
// contents of one repository revision for one platform.
type Index struct {
	// Revision is the concrete revision the index was built from.
	Revision string `json:"revision"`

	// Platform is the platform the index was evaluated for.
	Platform platform.Platform `json:"platform"`

	// Packages lists the packages available in the snapshot.
	Packages []PackageEntry `json:"packages"`
}

// PackageEntry describes one package in a snapshot index.
type PackageEntry struct {
	// Attr is the attribute path the package is looked up by
	// (e.g. "stdenv.cc").
	Attr string `json:"attr"`

	// Name is the package name.
	Name string `json:"name"`

	// Version is the package version.
	Version string `json:"version"`
}

// storePath derives the content-addressed store path for a package in a
// snapshot. The digest covers everything that identifies the build, so
// the same pinned snapshot always yields the same path.
func storePath(revision string, p platform.Platform, entry PackageEntry) string {
	h, _ := blake2b.New256(nil)
	fmt.Fprintf(h, "%s\x00%s\x00%s\x00%s\x00%s", revision, p, entry.Attr, entry.Name, entry.Version)
	digest := hex.EncodeToString(h.Sum(nil))[:32]
	return fmt.Sprintf("/sf/store/%s-%s-%s", digest, entry.Name, entry.Version)
}
