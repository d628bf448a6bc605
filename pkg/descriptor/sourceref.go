package descriptor

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SourceRef identifies an external package-repository snapshot in the
// form "<host>:<owner>/<repo>/<ref>". The ref may be a branch, a tag, or
// a full revision; only a full revision pins the snapshot immutably.
type SourceRef struct {
	// Host is the forge shorthand (e.g. "github").
	Host string `json:"host" validate:"required"`

	// Owner is the repository owner or organization.
	Owner string `json:"owner" validate:"required"`

	// Repo is the repository name.
	Repo string `json:"repo" validate:"required"`

	// Ref is the branch, tag, or revision selector.
	Ref string `json:"ref" validate:"required"`
}

// ParseSourceRef parses the "<host>:<owner>/<repo>/<ref>" form.
func ParseSourceRef(s string) (SourceRef, error) {
	host, rest, ok := strings.Cut(s, ":")
	if !ok || host == "" {
		return SourceRef{}, fmt.Errorf("invalid source reference %q: missing host separator", s)
	}

	parts := strings.SplitN(rest, "/", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return SourceRef{}, fmt.Errorf("invalid source reference %q: expected <host>:<owner>/<repo>/<ref>", s)
	}

	return SourceRef{
		Host:  host,
		Owner: parts[0],
		Repo:  parts[1],
		Ref:   parts[2],
	}, nil
}

// String returns the canonical "<host>:<owner>/<repo>/<ref>" form.
func (r SourceRef) String() string {
	return fmt.Sprintf("%s:%s/%s/%s", r.Host, r.Owner, r.Repo, r.Ref)
}

// IsPinned reports whether the ref is a full 40-hex revision. Branch and
// tag selectors are moving and may resolve to different snapshots over
// time.
func (r SourceRef) IsPinned() bool {
	if len(r.Ref) != 40 {
		return false
	}
	for _, c := range r.Ref {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return false
		}
	}
	return true
}

// Pin returns a copy of the ref with the selector replaced by a concrete
// revision.
func (r SourceRef) Pin(revision string) SourceRef {
	r.Ref = revision
	return r
}

// MarshalJSON encodes the ref in its canonical string form.
func (r SourceRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON accepts the canonical string form.
func (r *SourceRef) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseSourceRef(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
