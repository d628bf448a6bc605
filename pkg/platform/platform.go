// Package platform enumerates the build platforms a descriptor can be
// resolved for. A platform is an architecture/OS pair in the canonical
// "<arch>-<os>" form (e.g. "x86_64-linux").
package platform

import (
	"fmt"
	"runtime"
	"strings"
)

// Platform identifies an architecture/OS pair.
type Platform string

// The default platform set. Every descriptor resolution over the full
// set produces exactly one shell specification per entry.
const (
	X8664Linux    Platform = "x86_64-linux"
	Aarch64Linux  Platform = "aarch64-linux"
	X8664Darwin   Platform = "x86_64-darwin"
	Aarch64Darwin Platform = "aarch64-darwin"
)

// DefaultPlatforms returns the default platform enumeration. The returned
// slice is a fresh copy; callers may reorder or filter it freely.
func DefaultPlatforms() []Platform {
	return []Platform{
		X8664Linux,
		Aarch64Linux,
		X8664Darwin,
		Aarch64Darwin,
	}
}

// IsDefault reports whether p is a member of the default platform set.
func IsDefault(p Platform) bool {
	for _, d := range DefaultPlatforms() {
		if p == d {
			return true
		}
	}
	return false
}

// Arch returns the architecture component of the platform.
func (p Platform) Arch() string {
	if i := strings.Index(string(p), "-"); i >= 0 {
		return string(p)[:i]
	}
	return string(p)
}

// OS returns the operating system component of the platform.
func (p Platform) OS() string {
	if i := strings.Index(string(p), "-"); i >= 0 {
		return string(p)[i+1:]
	}
	return ""
}

// String implements fmt.Stringer.
func (p Platform) String() string {
	return string(p)
}

// Parse validates a platform string and returns it as a Platform.
func Parse(s string) (Platform, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", fmt.Errorf("invalid platform %q: expected <arch>-<os>", s)
	}
	return Platform(s), nil
}

// Current returns the platform of the running process, mapped from the
// Go runtime's GOARCH/GOOS naming.
func Current() Platform {
	arch := runtime.GOARCH
	switch arch {
	case "amd64":
		arch = "x86_64"
	case "arm64":
		arch = "aarch64"
	}
	return Platform(arch + "-" + runtime.GOOS)
}
