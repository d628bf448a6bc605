package commands

import (
	"errors"
	"fmt"
)

// ExitCodeError carries a child process exit status out of a command.
// Returning it instead of calling os.Exit lets deferred cleanup (cache,
// telemetry) run before the process terminates.
type ExitCodeError struct {
	Code int
}

func (e *ExitCodeError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// ExitCode returns the exit status carried by err, or 0 when err carries
// none.
func ExitCode(err error) int {
	var ee *ExitCodeError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return 0
}
