package descriptor

import (
	"context"
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/go-playground/validator/v10"
)

// Parser parses and validates CUE environment descriptors.
type Parser struct {
	cuectx    *cue.Context
	validator *validator.Validate
	outputs   *OutputsEvaluator
}

// NewParser creates a new descriptor parser.
func NewParser() *Parser {
	return &Parser{
		cuectx:    cuecontext.New(),
		validator: validator.New(),
		outputs:   NewOutputsEvaluator(10 * time.Second),
	}
}

// Load parses the descriptor file at path. Schema violations and
// undeclared input references are collected into the returned
// ParsedDescriptor's Errors list rather than failing the load; callers
// that require a clean descriptor should check Errors (or use LoadStrict).
func (p *Parser) Load(ctx context.Context, path string) (*ParsedDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read descriptor %s: %w", path, err)
	}
	return p.Parse(ctx, data, path)
}

// LoadStrict parses the descriptor at path and fails on any validation
// error.
func (p *Parser) LoadStrict(ctx context.Context, path string) (*Descriptor, error) {
	parsed, err := p.Load(ctx, path)
	if err != nil {
		return nil, err
	}
	if len(parsed.Errors) > 0 {
		return nil, fmt.Errorf("descriptor %s has %d validation errors, first: %s",
			path, len(parsed.Errors), parsed.Errors[0].Error())
	}
	return &parsed.Descriptor, nil
}

// rawDescriptor mirrors the CUE document shape before source references
// are parsed into typed form.
type rawDescriptor struct {
	Description string            `json:"description"`
	Inputs      map[string]string `json:"inputs"`
	Outputs     struct {
		DevShell *DevShellConfig `json:"devShell,omitempty"`
		Script   string          `json:"script,omitempty"`
	} `json:"outputs"`
}

// Parse parses descriptor content. filename is used for error reporting
// only; pass "inline" for generated content.
func (p *Parser) Parse(ctx context.Context, data []byte, filename string) (*ParsedDescriptor, error) {
	value := p.cuectx.CompileBytes(data, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("failed to compile descriptor: %s", cueErrorDetail(err))
	}

	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("descriptor is not concrete: %s", cueErrorDetail(err))
	}

	var raw rawDescriptor
	if err := value.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode descriptor: %s", cueErrorDetail(err))
	}

	parsed := &ParsedDescriptor{
		SourceFile: filename,
		ParsedAt:   time.Now(),
	}

	desc := Descriptor{
		Description: raw.Description,
		Inputs:      make(map[string]SourceRef, len(raw.Inputs)),
	}
	desc.Outputs.DevShell = raw.Outputs.DevShell
	desc.Outputs.Script = raw.Outputs.Script

	for name, refStr := range raw.Inputs {
		ref, err := ParseSourceRef(refStr)
		if err != nil {
			parsed.Errors = append(parsed.Errors, ValidationError{
				File:    filename,
				Path:    "inputs." + name,
				Message: err.Error(),
			})
			continue
		}
		desc.Inputs[name] = ref
	}

	// A scripted outputs declaration is materialized before validation so
	// the reference checks below see the final shape.
	if desc.Outputs.Script != "" {
		if desc.Outputs.DevShell != nil {
			parsed.Errors = append(parsed.Errors, ValidationError{
				File:    filename,
				Path:    "outputs",
				Message: "devShell and script are mutually exclusive",
			})
		} else {
			shell, err := p.outputs.Eval(ctx, desc.Outputs.Script, inputNames(desc.Inputs))
			if err != nil {
				parsed.Errors = append(parsed.Errors, ValidationError{
					File:    filename,
					Path:    "outputs.script",
					Message: err.Error(),
				})
			} else {
				desc.Outputs.DevShell = shell
			}
		}
	}

	parsed.Descriptor = desc
	parsed.Errors = append(parsed.Errors, p.validateDescriptor(&desc, filename)...)

	return parsed, nil
}

// validateDescriptor runs struct validation and cross-reference checks.
func (p *Parser) validateDescriptor(d *Descriptor, filename string) []ValidationError {
	var errs []ValidationError

	if err := p.validator.Struct(d); err != nil {
		var invalid validator.ValidationErrors
		if ok := asValidationErrors(err, &invalid); ok {
			for _, fe := range invalid {
				errs = append(errs, ValidationError{
					File:    filename,
					Path:    fe.Namespace(),
					Message: fmt.Sprintf("failed %q validation", fe.Tag()),
				})
			}
		} else {
			errs = append(errs, ValidationError{File: filename, Message: err.Error()})
		}
	}

	if d.Outputs.DevShell == nil && d.Outputs.Script == "" {
		errs = append(errs, ValidationError{
			File:    filename,
			Path:    "outputs",
			Message: "descriptor declares no devShell output",
		})
	}

	// Every symbolic name referenced by the outputs must be declared.
	for _, name := range d.ReferencedInputs() {
		if _, ok := d.Inputs[name]; !ok {
			errs = append(errs, ValidationError{
				File:    filename,
				Path:    "outputs.devShell.from",
				Message: fmt.Sprintf("references undeclared input %q", name),
			})
		}
	}

	return errs
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	ve, ok := err.(validator.ValidationErrors)
	if ok {
		*target = ve
	}
	return ok
}

func inputNames(inputs map[string]SourceRef) []string {
	names := make([]string, 0, len(inputs))
	for name := range inputs {
		names = append(names, name)
	}
	return names
}

// cueErrorDetail flattens a CUE error list into a single message.
func cueErrorDetail(err error) string {
	list := cueerrors.Errors(err)
	if len(list) == 0 {
		return err.Error()
	}
	msg := list[0].Error()
	if len(list) > 1 {
		msg = fmt.Sprintf("%s (and %d more)", msg, len(list)-1)
	}
	return msg
}
