package descriptor

import (
	"time"
)

// Descriptor is the top-level environment description. It is authored by a
// human, parsed once, and treated as immutable input by the resolver.
type Descriptor struct {
	// Description is free-text documentation for the environment.
	Description string `json:"description" validate:"required"`

	// Inputs maps symbolic names to versioned source references.
	Inputs map[string]SourceRef `json:"inputs" validate:"required,min=1,dive"`

	// Outputs declares the artifacts produced from the inputs. At minimum
	// a dev shell.
	Outputs Outputs `json:"outputs" validate:"required"`
}

// Outputs declares the named build artifacts of a descriptor. The dev
// shell may be declared directly or computed by a Starlark script.
type Outputs struct {
	// DevShell is the interactive shell declaration.
	DevShell *DevShellConfig `json:"devShell,omitempty"`

	// Script is an optional Starlark program that produces the devShell
	// declaration from the declared input names. Mutually exclusive with
	// DevShell.
	Script string `json:"script,omitempty"`
}

// DevShellConfig declares the tools to expose in an interactive session.
type DevShellConfig struct {
	// From is the symbolic input name the build inputs are resolved
	// against.
	From string `json:"from" validate:"required"`

	// BuildInputs are the tool identifiers to expose in the shell.
	// Identifiers may be attribute paths (e.g. "stdenv.cc").
	BuildInputs []string `json:"buildInputs" validate:"required,min=1,dive,required"`

	// Env are extra environment variables to set in the session.
	Env map[string]string `json:"env,omitempty"`
}

// ReferencedInputs returns the symbolic input names referenced by the
// outputs declaration, in no particular order.
func (d *Descriptor) ReferencedInputs() []string {
	if d.Outputs.DevShell == nil {
		return nil
	}
	return []string{d.Outputs.DevShell.From}
}

// ParsedDescriptor is a descriptor together with its parse provenance.
type ParsedDescriptor struct {
	// Descriptor is the parsed descriptor.
	Descriptor Descriptor `json:"descriptor"`

	// SourceFile is the file the descriptor was parsed from, or "inline".
	SourceFile string `json:"source_file"`

	// ParsedAt is when the descriptor was parsed.
	ParsedAt time.Time `json:"parsed_at"`

	// Errors lists any validation errors found during parsing.
	Errors []ValidationError `json:"errors,omitempty"`
}

// ValidationError is a schema or reference error with location information.
type ValidationError struct {
	// File is the source file path.
	File string `json:"file,omitempty"`

	// Path is the descriptor path to the error (e.g. "outputs.devShell.from").
	Path string `json:"path,omitempty"`

	// Message is the error message.
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	if e.Path != "" {
		return e.Path + ": " + e.Message
	}
	return e.Message
}
