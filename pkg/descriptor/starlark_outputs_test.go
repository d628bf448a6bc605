package descriptor

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestEvalDictOutputs(t *testing.T) {
	eval := NewOutputsEvaluator(0)

	const script = `
devShell = {
	"from": "nixpkgs",
	"buildInputs": ["stdenv.cc"],
	"env": {"RUST_BACKTRACE": "1"},
}
`
	shell, err := eval.Eval(context.Background(), script, []string{"nixpkgs"})
	if err != nil {
		t.Fatalf("Eval failed: %v", err)
	}

	if shell.From != "nixpkgs" {
		t.Errorf("from = %q", shell.From)
	}
	if len(shell.BuildInputs) != 1 || shell.BuildInputs[0] != "stdenv.cc" {
		t.Errorf("buildInputs = %v", shell.BuildInputs)
	}
	if shell.Env["RUST_BACKTRACE"] != "1" {
		t.Errorf("env = %v", shell.Env)
	}
}

func TestEvalStructOutputs(t *testing.T) {
	eval := NewOutputsEvaluator(0)

	const script = `
devShell = struct(
	from = inputs[0],
	buildInputs = ["stdenv.cc", "cmake"],
)
`
	shell, err := eval.Eval(context.Background(), script, []string{"nixpkgs"})
	if err != nil {
		t.Fatalf("Eval failed: %v", err)
	}
	if shell.From != "nixpkgs" {
		t.Errorf("from = %q", shell.From)
	}
	if len(shell.BuildInputs) != 2 {
		t.Errorf("buildInputs = %v", shell.BuildInputs)
	}
}

func TestEvalInputsAreSorted(t *testing.T) {
	eval := NewOutputsEvaluator(0)

	const script = `
devShell = {"from": inputs[0], "buildInputs": ["cc"]}
`
	shell, err := eval.Eval(context.Background(), script, []string{"zlib", "nixpkgs"})
	if err != nil {
		t.Fatalf("Eval failed: %v", err)
	}
	if shell.From != "nixpkgs" {
		t.Errorf("inputs not presented in sorted order: from = %q", shell.From)
	}
}

func TestEvalMissingDevShell(t *testing.T) {
	eval := NewOutputsEvaluator(0)

	_, err := eval.Eval(context.Background(), `x = 1`, nil)
	if err == nil || !strings.Contains(err.Error(), "did not define devShell") {
		t.Fatalf("expected missing devShell error, got %v", err)
	}
}

func TestEvalBadTypes(t *testing.T) {
	eval := NewOutputsEvaluator(0)

	tests := []struct {
		name   string
		script string
	}{
		{"devShell not dict", `devShell = "nope"`},
		{"from not string", `devShell = {"from": 1, "buildInputs": ["cc"]}`},
		{"buildInputs not list", `devShell = {"from": "n", "buildInputs": "cc"}`},
		{"buildInputs member not string", `devShell = {"from": "n", "buildInputs": [1]}`},
		{"env not dict", `devShell = {"from": "n", "buildInputs": ["cc"], "env": 1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := eval.Eval(context.Background(), tt.script, nil); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestEvalTimeout(t *testing.T) {
	eval := NewOutputsEvaluator(50 * time.Millisecond)

	// Busy loop; large enough to outlast the timeout.
	const script = `
x = 0
for i in range(100000000):
	x += i
devShell = {"from": "n", "buildInputs": ["cc"]}
`
	_, err := eval.Eval(context.Background(), script, nil)
	if err == nil || !strings.Contains(err.Error(), "timed out") {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestEvalScriptError(t *testing.T) {
	eval := NewOutputsEvaluator(0)

	if _, err := eval.Eval(context.Background(), `devShell = undefined_name`, nil); err == nil {
		t.Fatal("expected execution error")
	}
}
