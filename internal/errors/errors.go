// Package errors provides sentinel errors and structured error details for modkit.
package errors

import (
	"fmt"
	"sort"
	"strings"
)

// DetailError captures structured error information for terminal display.
type DetailError struct {
	// Type is the error category (required).
	Type string

	// Message is the specific description (required).
	Message string

	// Location is the file or directory involved (optional).
	Location string

	// Context contains additional key-value context (optional).
	Context map[string]string

	// Hint provides actionable guidance (optional).
	Hint string

	// Cause is the underlying error (optional).
	Cause error
}

// Error implements the error interface.
func (e *DetailError) Error() string {
	var b strings.Builder

	b.WriteString("Error: ")
	b.WriteString(e.Type)
	b.WriteString("\n")

	if e.Location != "" {
		b.WriteString("  Location: ")
		b.WriteString(e.Location)
		b.WriteString("\n")
	}

	keys := make([]string, 0, len(e.Context))
	for k := range e.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString("  ")
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(e.Context[k])
		b.WriteString("\n")
	}

	b.WriteString("\n  ")
	b.WriteString(e.Message)
	b.WriteString("\n")

	if e.Hint != "" {
		b.WriteString("\nHint: ")
		b.WriteString(e.Hint)
		b.WriteString("\n")
	}

	return b.String()
}

// Unwrap returns the underlying error.
func (e *DetailError) Unwrap() error {
	return e.Cause
}

// NewReadError creates a catalog read error.
func NewReadError(message, location string, cause error) error {
	return &DetailError{
		Type:     "read failed",
		Message:  message,
		Location: location,
		Hint:     "Make sure the source path exists and is a readable directory.",
		Cause:    join(ErrRead, cause),
	}
}

// NewSelectionError creates an invalid selection error.
func NewSelectionError(message, hint string) error {
	return &DetailError{
		Type:    "invalid selection",
		Message: message,
		Hint:    hint,
		Cause:   ErrInvalidSelection,
	}
}

// NewExtractionError creates an extraction error.
func NewExtractionError(message, location string, cause error) error {
	return &DetailError{
		Type:     "extraction failed",
		Message:  message,
		Location: location,
		Cause:    join(ErrExtraction, cause),
	}
}

// NewManifestError creates a manifest error.
func NewManifestError(message, location string, cause error) error {
	return &DetailError{
		Type:     "manifest failed",
		Message:  message,
		Location: location,
		Cause:    join(ErrManifest, cause),
	}
}

// NewValidationError creates a validation error with details.
func NewValidationError(message, location, hint string) error {
	return &DetailError{
		Type:     "validation failed",
		Message:  message,
		Location: location,
		Hint:     hint,
		Cause:    ErrValidation,
	}
}

// NewNotFoundError creates a not found error with details.
func NewNotFoundError(message, location, hint string) error {
	return &DetailError{
		Type:     "not found",
		Message:  message,
		Location: location,
		Hint:     hint,
		Cause:    ErrNotFound,
	}
}

// Wrap wraps an error with a sentinel error type.
func Wrap(sentinel error, message string) error {
	return fmt.Errorf("%s: %w", message, sentinel)
}

// join keeps the sentinel reachable through errors.Is while preserving the
// underlying cause.
func join(sentinel, cause error) error {
	if cause == nil {
		return sentinel
	}
	return fmt.Errorf("%w: %w", sentinel, cause)
}
