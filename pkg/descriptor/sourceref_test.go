package descriptor

import (
	"encoding/json"
	"testing"
)

func TestParseSourceRef(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    SourceRef
		wantErr bool
	}{
		{
			name:  "branch ref",
			input: "github:NixOS/nixpkgs/nixos-unstable",
			want:  SourceRef{Host: "github", Owner: "NixOS", Repo: "nixpkgs", Ref: "nixos-unstable"},
		},
		{
			name:  "ref with slashes collapses into ref component",
			input: "github:NixOS/nixpkgs/release-24.05",
			want:  SourceRef{Host: "github", Owner: "NixOS", Repo: "nixpkgs", Ref: "release-24.05"},
		},
		{
			name:    "missing host",
			input:   "NixOS/nixpkgs/master",
			wantErr: true,
		},
		{
			name:    "missing ref",
			input:   "github:NixOS/nixpkgs",
			wantErr: true,
		},
		{
			name:    "empty",
			input:   "",
			wantErr: true,
		},
		{
			name:    "empty components",
			input:   "github://nixpkgs/master",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSourceRef(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestSourceRefRoundTrip(t *testing.T) {
	const raw = "github:NixOS/nixpkgs/nixos-unstable"

	ref, err := ParseSourceRef(raw)
	if err != nil {
		t.Fatal(err)
	}
	if ref.String() != raw {
		t.Errorf("String() = %q, want %q", ref.String(), raw)
	}
}

func TestSourceRefIsPinned(t *testing.T) {
	pinned := SourceRef{Host: "github", Owner: "NixOS", Repo: "nixpkgs",
		Ref: "0135b7a556ee32d2ec08a9e2c7fc8b316b2be589"}
	if !pinned.IsPinned() {
		t.Error("40-hex ref should be pinned")
	}

	for _, ref := range []string{"master", "0135B7A556EE32D2EC08A9E2C7FC8B316B2BE589", "0135b7a5"} {
		r := pinned
		r.Ref = ref
		if r.IsPinned() {
			t.Errorf("ref %q should not be pinned", ref)
		}
	}
}

func TestSourceRefPin(t *testing.T) {
	ref := SourceRef{Host: "github", Owner: "NixOS", Repo: "nixpkgs", Ref: "master"}
	pinned := ref.Pin("0135b7a556ee32d2ec08a9e2c7fc8b316b2be589")

	if !pinned.IsPinned() {
		t.Error("Pin should produce a pinned ref")
	}
	if ref.Ref != "master" {
		t.Error("Pin must not mutate the receiver")
	}
}

func TestSourceRefJSON(t *testing.T) {
	ref := SourceRef{Host: "github", Owner: "NixOS", Repo: "nixpkgs", Ref: "master"}

	data, err := json.Marshal(ref)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `"github:NixOS/nixpkgs/master"` {
		t.Errorf("marshaled to %s", data)
	}

	var decoded SourceRef
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded != ref {
		t.Errorf("round trip produced %+v", decoded)
	}
}
