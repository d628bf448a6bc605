// Package lockfile pins descriptor inputs to exact revisions so that
// later resolutions reproduce the same environment.
package lockfile

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/shellforge/shellforge/pkg/descriptor"
	"github.com/shellforge/shellforge/pkg/resolver"
)

// Version is the lockfile format version.
const Version = 1

// DefaultName is the lockfile name written next to the descriptor.
const DefaultName = "shellforge.lock.json"

// Entry pins one descriptor input.
type Entry struct {
	// Source is the fully pinned source reference.
	Source descriptor.SourceRef `json:"source"`

	// Revision is the concrete snapshot revision the input resolved to.
	Revision string `json:"revision"`

	// FetchedAt is when the revision was fetched.
	FetchedAt time.Time `json:"fetched_at"`

	// Integrity is a BLAKE2b digest over the pinned coordinates.
	Integrity string `json:"integrity"`
}

// Lockfile maps input names to pinned entries.
type Lockfile struct {
	Version     int              `json:"version"`
	GeneratedAt time.Time        `json:"generated_at"`
	Inputs      map[string]Entry `json:"inputs"`
}

// DriftKind classifies a divergence between descriptor and lockfile.
type DriftKind string

const (
	// DriftMissing means the descriptor declares an input the lockfile
	// does not pin.
	DriftMissing DriftKind = "missing"

	// DriftStale means the lockfile pins an input the descriptor no
	// longer declares.
	DriftStale DriftKind = "stale"

	// DriftChanged means the descriptor's source coordinates no longer
	// match the pinned entry.
	DriftChanged DriftKind = "changed"

	// DriftCorrupt means an entry's integrity digest does not match its
	// contents.
	DriftCorrupt DriftKind = "corrupt"
)

// Drift is one detected divergence.
type Drift struct {
	Input  string    `json:"input"`
	Kind   DriftKind `json:"kind"`
	Detail string    `json:"detail"`
}

func (d Drift) String() string {
	return fmt.Sprintf("%s: input %q: %s", d.Kind, d.Input, d.Detail)
}

// New builds a lockfile from a resolution set. Every successful platform
// resolution of an input must agree on the revision; disagreement means
// the source moved mid-run and the lock is refused.
func New(desc *descriptor.Descriptor, set *resolver.ResolutionSet) (*Lockfile, error) {
	lf := &Lockfile{
		Version:     Version,
		GeneratedAt: time.Now().UTC(),
		Inputs:      make(map[string]Entry),
	}

	for _, res := range set.Results {
		if res.Spec == nil {
			continue
		}
		spec := res.Spec

		if existing, ok := lf.Inputs[spec.Input]; ok {
			if existing.Revision != spec.Revision {
				return nil, fmt.Errorf("input %q resolved to both %s and %s across platforms, refusing to lock",
					spec.Input, existing.Revision, spec.Revision)
			}
			continue
		}

		if _, declared := desc.Inputs[spec.Input]; !declared {
			return nil, fmt.Errorf("resolved input %q is not declared by the descriptor", spec.Input)
		}

		entry := Entry{
			Source:    spec.Source,
			Revision:  spec.Revision,
			FetchedAt: spec.ResolvedAt.UTC(),
		}
		entry.Integrity = integrity(spec.Input, entry)
		lf.Inputs[spec.Input] = entry
	}

	if len(lf.Inputs) == 0 {
		return nil, fmt.Errorf("no successful resolutions to lock")
	}

	return lf, nil
}

// Write persists the lockfile atomically via a temp file rename.
func (lf *Lockfile) Write(path string) error {
	data, err := json.MarshalIndent(lf, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode lockfile: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".shellforge-lock-*")
	if err != nil {
		return fmt.Errorf("failed to create temp lockfile: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write lockfile: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close temp lockfile: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace lockfile: %w", err)
	}

	return nil
}

// Read loads and decodes a lockfile.
func Read(path string) (*Lockfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read lockfile: %w", err)
	}

	var lf Lockfile
	if err := json.Unmarshal(data, &lf); err != nil {
		return nil, fmt.Errorf("failed to parse lockfile: %w", err)
	}

	if lf.Version != Version {
		return nil, fmt.Errorf("unsupported lockfile version %d", lf.Version)
	}

	return &lf, nil
}

// Verify compares the lockfile against a descriptor and reports every
// divergence. An empty result means the lock is current.
func (lf *Lockfile) Verify(desc *descriptor.Descriptor) []Drift {
	var drifts []Drift

	names := make([]string, 0, len(desc.Inputs))
	for name := range desc.Inputs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		ref := desc.Inputs[name]

		entry, ok := lf.Inputs[name]
		if !ok {
			drifts = append(drifts, Drift{
				Input:  name,
				Kind:   DriftMissing,
				Detail: fmt.Sprintf("declared as %s but not pinned", ref),
			})
			continue
		}

		if entry.Integrity != integrity(name, entry) {
			drifts = append(drifts, Drift{
				Input:  name,
				Kind:   DriftCorrupt,
				Detail: "integrity digest mismatch",
			})
			continue
		}

		if entry.Source.Host != ref.Host || entry.Source.Owner != ref.Owner || entry.Source.Repo != ref.Repo {
			drifts = append(drifts, Drift{
				Input:  name,
				Kind:   DriftChanged,
				Detail: fmt.Sprintf("descriptor points at %s, lock pins %s", ref, entry.Source),
			})
			continue
		}

		// A descriptor pinned to a different revision than the lock is
		// drift; a moving branch ref matches any pinned revision.
		if ref.IsPinned() && ref.Ref != entry.Revision {
			drifts = append(drifts, Drift{
				Input:  name,
				Kind:   DriftChanged,
				Detail: fmt.Sprintf("descriptor pins %s, lock pins %s", ref.Ref, entry.Revision),
			})
		}
	}

	lockedNames := make([]string, 0, len(lf.Inputs))
	for name := range lf.Inputs {
		lockedNames = append(lockedNames, name)
	}
	sort.Strings(lockedNames)

	for _, name := range lockedNames {
		if _, ok := desc.Inputs[name]; !ok {
			drifts = append(drifts, Drift{
				Input:  name,
				Kind:   DriftStale,
				Detail: "pinned but no longer declared by the descriptor",
			})
		}
	}

	return drifts
}

// integrity digests the pinned coordinates of one entry. FetchedAt is
// excluded so re-locking an unchanged input is byte-stable.
func integrity(name string, entry Entry) string {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(name))
	h.Write([]byte{0})
	h.Write([]byte(entry.Source.String()))
	h.Write([]byte{0})
	h.Write([]byte(entry.Revision))
	return "blake2b-" + hex.EncodeToString(h.Sum(nil))
}
