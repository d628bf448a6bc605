// Package resolver turns a declarative environment descriptor into
// concrete, platform-specific shell specifications. It defines the
// collaborator interfaces (snapshot evaluation, platform enumeration)
// and the error taxonomy shared by their implementations.
package resolver

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a resolution failure.
type ErrorKind string

const (
	// ErrKindUnresolvedInput indicates the outputs reference a symbolic
	// name absent from the descriptor's inputs.
	ErrKindUnresolvedInput ErrorKind = "unresolved_input"

	// ErrKindUnreachableSource indicates a source reference could not be
	// dereferenced (network failure, unknown host, bad revision).
	ErrKindUnreachableSource ErrorKind = "unreachable_source"

	// ErrKindUnsupportedPlatform indicates the requested platform is not
	// in the default platform enumeration.
	ErrKindUnsupportedPlatform ErrorKind = "unsupported_platform"

	// ErrKindToolNotFound indicates a requested tool identifier is absent
	// from the resolved package set.
	ErrKindToolNotFound ErrorKind = "tool_not_found"
)

// ResolveError is a classified resolution failure with context. All four
// kinds are terminal for the platform resolution in which they occur.
type ResolveError struct {
	// Kind is the failure classification.
	Kind ErrorKind `json:"kind"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Platform is the platform being resolved, if applicable.
	Platform string `json:"platform,omitempty"`

	// Input is the symbolic input name involved, if applicable.
	Input string `json:"input,omitempty"`

	// Tool is the tool identifier involved, if applicable.
	Tool string `json:"tool,omitempty"`

	// Err is the underlying error.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *ResolveError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	if e.Platform != "" {
		msg += fmt.Sprintf(" (platform=%s)", e.Platform)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection.
func (e *ResolveError) Unwrap() error {
	return e.Err
}

// Is implements error equality for errors.Is; two ResolveErrors match
// when their kinds match.
func (e *ResolveError) Is(target error) bool {
	t, ok := target.(*ResolveError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// NewUnresolvedInputError creates an unresolved-input error.
func NewUnresolvedInputError(input string) *ResolveError {
	return &ResolveError{
		Kind:    ErrKindUnresolvedInput,
		Message: fmt.Sprintf("outputs reference undeclared input %q", input),
		Input:   input,
	}
}

// NewUnreachableSourceError creates an unreachable-source error.
func NewUnreachableSourceError(source string, err error) *ResolveError {
	return &ResolveError{
		Kind:    ErrKindUnreachableSource,
		Message: fmt.Sprintf("source %s could not be dereferenced", source),
		Err:     err,
	}
}

// NewUnsupportedPlatformError creates an unsupported-platform error.
func NewUnsupportedPlatformError(platform string) *ResolveError {
	return &ResolveError{
		Kind:     ErrKindUnsupportedPlatform,
		Message:  fmt.Sprintf("platform %s is not in the default platform set", platform),
		Platform: platform,
	}
}

// NewToolNotFoundError creates a tool-not-found error.
func NewToolNotFoundError(tool string, err error) *ResolveError {
	return &ResolveError{
		Kind:    ErrKindToolNotFound,
		Message: fmt.Sprintf("tool %q not found in package set", tool),
		Tool:    tool,
		Err:     err,
	}
}

// WithPlatform returns a copy of the error with platform context. The
// receiver may be shared across concurrent resolutions and is never
// mutated.
func (e *ResolveError) WithPlatform(platform string) *ResolveError {
	clone := *e
	clone.Platform = platform
	return &clone
}

// WithInput returns a copy of the error with input context.
func (e *ResolveError) WithInput(input string) *ResolveError {
	clone := *e
	clone.Input = input
	return &clone
}

// KindOf returns the classification of err, or "" if err is not a
// ResolveError.
func KindOf(err error) ErrorKind {
	var re *ResolveError
	if errors.As(err, &re) {
		return re.Kind
	}
	return ""
}

// IsUnresolvedInput reports whether err is an unresolved-input failure.
func IsUnresolvedInput(err error) bool { return KindOf(err) == ErrKindUnresolvedInput }

// IsUnreachableSource reports whether err is an unreachable-source failure.
func IsUnreachableSource(err error) bool { return KindOf(err) == ErrKindUnreachableSource }

// IsUnsupportedPlatform reports whether err is an unsupported-platform failure.
func IsUnsupportedPlatform(err error) bool { return KindOf(err) == ErrKindUnsupportedPlatform }

// IsToolNotFound reports whether err is a tool-not-found failure.
func IsToolNotFound(err error) bool { return KindOf(err) == ErrKindToolNotFound }
