package commands

import (
	"errors"
	"fmt"
	"testing"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"plain error", errors.New("boom"), 0},
		{"exit code error", &ExitCodeError{Code: 3}, 3},
		{"wrapped exit code error", fmt.Errorf("shell: %w", &ExitCodeError{Code: 7}), 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestExitCodeErrorMessage(t *testing.T) {
	err := &ExitCodeError{Code: 130}
	if err.Error() != "exit status 130" {
		t.Errorf("Error() = %q", err.Error())
	}
}
