package descriptor

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// OutputsEvaluator executes the optional Starlark outputs script. The
// script runs with the declared input names predeclared as `inputs` and
// must define a global `devShell` dict or struct with `from`,
// `buildInputs`, and optionally `env`.
type OutputsEvaluator struct {
	timeout time.Duration
}

// NewOutputsEvaluator creates a new evaluator with the given execution
// timeout.
func NewOutputsEvaluator(timeout time.Duration) *OutputsEvaluator {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &OutputsEvaluator{timeout: timeout}
}

// Eval executes the script and extracts the devShell declaration.
func (oe *OutputsEvaluator) Eval(ctx context.Context, script string, inputs []string) (*DevShellConfig, error) {
	evalCtx, cancel := context.WithTimeout(ctx, oe.timeout)
	defer cancel()

	type evalResult struct {
		shell *DevShellConfig
		err   error
	}
	resultCh := make(chan evalResult, 1)

	go func() {
		shell, err := oe.evalSync(script, inputs)
		resultCh <- evalResult{shell: shell, err: err}
	}()

	select {
	case <-evalCtx.Done():
		return nil, fmt.Errorf("outputs script timed out after %v", oe.timeout)
	case res := <-resultCh:
		return res.shell, res.err
	}
}

func (oe *OutputsEvaluator) evalSync(script string, inputs []string) (*DevShellConfig, error) {
	thread := &starlark.Thread{
		Name: "shellforge-outputs",
		Print: func(_ *starlark.Thread, _ string) {
			// Scripts may not write to the tool's output.
		},
	}

	sort.Strings(inputs)
	inputList := make([]starlark.Value, len(inputs))
	for i, name := range inputs {
		inputList[i] = starlark.String(name)
	}

	predeclared := starlark.StringDict{
		"struct": starlarkstruct.Default,
		"inputs": starlark.NewList(inputList),
	}

	globals, err := starlark.ExecFile(thread, "outputs.star", script, predeclared)
	if err != nil {
		return nil, fmt.Errorf("outputs script failed: %w", err)
	}

	shellValue, ok := globals["devShell"]
	if !ok {
		return nil, fmt.Errorf("outputs script did not define devShell")
	}

	return decodeDevShell(shellValue)
}

// decodeDevShell converts a Starlark dict or struct into a DevShellConfig.
func decodeDevShell(v starlark.Value) (*DevShellConfig, error) {
	attrs, err := starlarkAttrs(v)
	if err != nil {
		return nil, err
	}

	shell := &DevShellConfig{}

	if from, ok := attrs["from"]; ok {
		s, ok := from.(starlark.String)
		if !ok {
			return nil, fmt.Errorf("devShell.from must be a string, got %s", from.Type())
		}
		shell.From = string(s)
	}

	if raw, ok := attrs["buildInputs"]; ok {
		list, ok := raw.(*starlark.List)
		if !ok {
			return nil, fmt.Errorf("devShell.buildInputs must be a list, got %s", raw.Type())
		}
		for i := 0; i < list.Len(); i++ {
			s, ok := list.Index(i).(starlark.String)
			if !ok {
				return nil, fmt.Errorf("devShell.buildInputs[%d] must be a string", i)
			}
			shell.BuildInputs = append(shell.BuildInputs, string(s))
		}
	}

	if raw, ok := attrs["env"]; ok {
		dict, ok := raw.(*starlark.Dict)
		if !ok {
			return nil, fmt.Errorf("devShell.env must be a dict, got %s", raw.Type())
		}
		shell.Env = make(map[string]string, dict.Len())
		for _, item := range dict.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("devShell.env keys must be strings")
			}
			val, ok := item[1].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("devShell.env values must be strings")
			}
			shell.Env[string(key)] = string(val)
		}
	}

	return shell, nil
}

// starlarkAttrs flattens a dict or struct into a name -> value map.
func starlarkAttrs(v starlark.Value) (map[string]starlark.Value, error) {
	attrs := make(map[string]starlark.Value)

	switch val := v.(type) {
	case *starlark.Dict:
		for _, item := range val.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("devShell keys must be strings")
			}
			attrs[string(key)] = item[1]
		}
	case *starlarkstruct.Struct:
		for _, name := range val.AttrNames() {
			attr, err := val.Attr(name)
			if err != nil {
				continue
			}
			attrs[name] = attr
		}
	default:
		return nil, fmt.Errorf("devShell must be a dict or struct, got %s", v.Type())
	}

	return attrs, nil
}
