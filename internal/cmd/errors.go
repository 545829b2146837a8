package cmd

import (
	"errors"

	oerrors "github.com/modkit/cli/internal/errors"
)

// ExitError wraps an error with an exit code.
type ExitError struct {
	Err  error
	Code int

	// Printed is set when the command already reported the error, so the
	// entry point only exits.
	Printed bool
}

// Error implements the error interface.
func (e *ExitError) Error() string {
	return e.Err.Error()
}

// Unwrap returns the wrapped error.
func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given error and exit code.
func NewExitError(err error, code int) *ExitError {
	return &ExitError{Err: err, Code: code}
}

// ExitCodeFromError determines the appropriate exit code for an error.
func ExitCodeFromError(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}

	switch {
	case errors.Is(err, oerrors.ErrCancelled):
		return ExitCancelled
	case errors.Is(err, oerrors.ErrValidation), errors.Is(err, oerrors.ErrInvalidSelection):
		return ExitValidationError
	case errors.Is(err, oerrors.ErrRead):
		return ExitReadError
	case errors.Is(err, oerrors.ErrExtraction):
		return ExitExtractionError
	case errors.Is(err, oerrors.ErrManifest):
		return ExitManifestError
	case errors.Is(err, oerrors.ErrCommand), errors.Is(err, oerrors.ErrTimeout):
		return ExitCommandError
	case errors.Is(err, oerrors.ErrNotFound):
		return ExitReadError
	default:
		return ExitGeneralError
	}
}

// reported wraps err so the entry point exits with its code without
// printing it again.
func reported(err error) error {
	if err == nil {
		return nil
	}
	return &ExitError{Err: err, Code: ExitCodeFromError(err), Printed: true}
}
