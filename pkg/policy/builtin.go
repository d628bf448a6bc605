package policy

import (
	"time"
)

// GetBuiltinPolicies returns all built-in policies.
func GetBuiltinPolicies() []Policy {
	return []Policy{
		pinnedSourcesPolicy(),
		buildInputAllowlistPolicy(),
		descriptorHygienePolicy(),
		inputNamingPolicy(),
	}
}

// pinnedSourcesPolicy rejects moving branch refs in locked mode.
func pinnedSourcesPolicy() Policy {
	return Policy{
		Name:        "pinned-sources",
		Description: "Requires every input to reference a 40-hex revision when resolving in locked mode",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"pinning", "reproducibility"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package shellforge.policies.pinning

import rego.v1

deny contains violation if {
	input.context.mode == "locked"
	some name, ref in input.descriptor.inputs

	# Source refs serialize as <host>:<owner>/<repo>/<ref>; a pinned ref
	# ends in a 40-hex revision.
	not regex.match("/[0-9a-f]{40}$", ref)

	violation := {
		"message": sprintf("input %s uses moving ref %s in locked mode", [name, ref]),
		"severity": "error",
		"input": name,
	}
}`,
	}
}

// buildInputAllowlistPolicy restricts buildInputs to an approved set.
func buildInputAllowlistPolicy() Policy {
	return Policy{
		Name:        "build-input-allowlist",
		Description: "Restricts devShell buildInputs to the allowlist carried in the evaluation context",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"tools", "compliance"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package shellforge.policies.allowlist

import rego.v1

deny contains violation if {
	allowed := input.context.allowed_build_inputs
	count(allowed) > 0

	some tool in input.descriptor.outputs.devShell.buildInputs
	not tool in allowed

	violation := {
		"message": sprintf("build input %s is not on the allowlist", [tool]),
		"severity": "error",
	}
}`,
	}
}

// descriptorHygienePolicy enforces a minimal descriptor surface.
func descriptorHygienePolicy() Policy {
	return Policy{
		Name:        "descriptor-hygiene",
		Description: "Requires a description and at least one build input",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"hygiene"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package shellforge.policies.hygiene

import rego.v1

deny contains violation if {
	trim_space(input.descriptor.description) == ""

	violation := {
		"message": "descriptor has no description",
		"severity": "warning",
	}
}

deny contains violation if {
	input.descriptor.outputs.devShell
	count(input.descriptor.outputs.devShell.buildInputs) == 0

	violation := {
		"message": "devShell declares no build inputs",
		"severity": "warning",
	}
}

deny contains violation if {
	not input.descriptor.outputs.script
	some name, _ in input.descriptor.inputs
	name != input.descriptor.outputs.devShell.from

	violation := {
		"message": sprintf("input %s is declared but never referenced", [name]),
		"severity": "info",
		"input": name,
	}
}`,
	}
}

// inputNamingPolicy enforces input naming conventions.
func inputNamingPolicy() Policy {
	return Policy{
		Name:        "input-naming",
		Description: "Enforces input naming conventions (lowercase, alphanumeric, hyphens only)",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"naming", "conventions"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package shellforge.policies.naming

import rego.v1

deny contains violation if {
	some name, _ in input.descriptor.inputs

	not regex.match("^[a-z0-9-]+$", name)

	violation := {
		"message": sprintf("input name %s must contain only lowercase letters, numbers, and hyphens", [name]),
		"severity": "error",
		"input": name,
	}
}

deny contains violation if {
	some name, _ in input.descriptor.inputs

	count(name) > 63

	violation := {
		"message": sprintf("input name %s must not exceed 63 characters", [name]),
		"severity": "error",
		"input": name,
	}
}`,
	}
}
