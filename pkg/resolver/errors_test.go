package resolver

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorKindPredicates(t *testing.T) {
	tests := []struct {
		err  error
		kind ErrorKind
	}{
		{NewUnresolvedInputError("nixpkgs"), ErrKindUnresolvedInput},
		{NewUnreachableSourceError("github:a/b/c", nil), ErrKindUnreachableSource},
		{NewUnsupportedPlatformError("riscv64-linux"), ErrKindUnsupportedPlatform},
		{NewToolNotFoundError("stdenv.cc", nil), ErrKindToolNotFound},
	}

	for _, tt := range tests {
		if KindOf(tt.err) != tt.kind {
			t.Errorf("KindOf(%v) = %s, want %s", tt.err, KindOf(tt.err), tt.kind)
		}
	}

	if !IsToolNotFound(NewToolNotFoundError("cc", nil)) {
		t.Error("IsToolNotFound failed on a tool-not-found error")
	}
	if IsToolNotFound(NewUnresolvedInputError("x")) {
		t.Error("IsToolNotFound matched the wrong kind")
	}
}

func TestErrorWrapping(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := NewUnreachableSourceError("github:NixOS/nixpkgs/master", cause)

	if !errors.Is(err, cause) {
		t.Error("underlying error not reachable via errors.Is")
	}

	wrapped := fmt.Errorf("resolving: %w", err)
	if !IsUnreachableSource(wrapped) {
		t.Error("kind predicate failed through wrapping")
	}
}

func TestErrorIsMatchesByKind(t *testing.T) {
	a := NewToolNotFoundError("cc", nil)
	b := NewToolNotFoundError("cmake", nil)

	if !errors.Is(a, b) {
		t.Error("errors of the same kind should match")
	}
	if errors.Is(a, NewUnresolvedInputError("x")) {
		t.Error("errors of different kinds should not match")
	}
}

func TestErrorMessageIncludesContext(t *testing.T) {
	err := NewToolNotFoundError("stdenv.cc", nil).WithPlatform("x86_64-linux")

	msg := err.Error()
	if !strings.Contains(msg, "tool_not_found") {
		t.Errorf("message missing kind: %s", msg)
	}
	if !strings.Contains(msg, "x86_64-linux") {
		t.Errorf("message missing platform: %s", msg)
	}
}

func TestKindOfNonResolveError(t *testing.T) {
	if KindOf(fmt.Errorf("plain")) != "" {
		t.Error("plain errors should have no kind")
	}
	if KindOf(nil) != "" {
		t.Error("nil should have no kind")
	}
}
