package errors

import "errors"

// Sentinel errors for known conditions.
var (
	// ErrRead indicates the source tree could not be scanned.
	ErrRead = errors.New("read error")

	// ErrInvalidSelection indicates an empty or malformed module selection.
	ErrInvalidSelection = errors.New("invalid selection")

	// ErrExtraction indicates an archive I/O or format failure, or an
	// inconsistent destination tree.
	ErrExtraction = errors.New("extraction error")

	// ErrManifest indicates a missing or invalid JSON build descriptor.
	ErrManifest = errors.New("manifest error")

	// ErrCommand indicates an external build command exited non-zero.
	ErrCommand = errors.New("command failed")

	// ErrTimeout indicates a build phase exceeded its time bound.
	ErrTimeout = errors.New("timeout")

	// ErrCancelled indicates the build was halted by the operator.
	ErrCancelled = errors.New("cancelled")

	// ErrValidation indicates a configuration validation failure.
	ErrValidation = errors.New("validation error")

	// ErrNotFound indicates a file, module, or archive was not found.
	ErrNotFound = errors.New("not found")
)
