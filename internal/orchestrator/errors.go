package orchestrator

import (
	"fmt"
	"strings"
	"time"

	oerrors "github.com/modkit/cli/internal/errors"
)

// CommandError reports a phase whose process exited non-zero or could not
// be started. ExitCode is -1 when the process never ran.
type CommandError struct {
	Phase    string
	Module   string
	Command  string
	Args     []string
	Dir      string
	ExitCode int
	Err      error
}

func (e *CommandError) Error() string {
	line := strings.TrimSpace(e.Command + " " + strings.Join(e.Args, " "))
	if e.ExitCode < 0 {
		return fmt.Sprintf("phase %s: %s could not be started: %v", e.Phase, line, e.Err)
	}
	return fmt.Sprintf("phase %s: %s exited with code %d", e.Phase, line, e.ExitCode)
}

// Unwrap exposes ErrCommand and the underlying process error.
func (e *CommandError) Unwrap() []error {
	if e.Err == nil {
		return []error{oerrors.ErrCommand}
	}
	return []error{oerrors.ErrCommand, e.Err}
}

// TimeoutError reports a phase that ran past its bound and was terminated.
type TimeoutError struct {
	Phase   string
	Module  string
	Command string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("phase %s: %s did not finish within %s", e.Phase, e.Command, e.Timeout)
}

// Unwrap returns ErrTimeout.
func (e *TimeoutError) Unwrap() error {
	return oerrors.ErrTimeout
}
