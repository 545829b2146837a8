//nolint:revive // Package name matches the package it tests
package errors

import (
	"errors"
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentinelErrors(t *testing.T) {
	all := []error{
		ErrRead, ErrInvalidSelection, ErrExtraction, ErrManifest,
		ErrCommand, ErrTimeout, ErrCancelled, ErrValidation, ErrNotFound,
	}
	for i := range all {
		for j := range all {
			if i != j {
				assert.NotEqual(t, all[i], all[j])
			}
		}
	}
}

func TestDetailErrorError(t *testing.T) {
	detail := &DetailError{
		Type:     "extraction failed",
		Message:  "destination child is a file",
		Location: "/dst/extracted/moduleA",
		Context:  map[string]string{"Module": "moduleA", "Archive": "source.tar"},
		Hint:     "Remove the file and retry",
	}

	output := detail.Error()

	assert.Contains(t, output, "Error: extraction failed")
	assert.Contains(t, output, "Location: /dst/extracted/moduleA")
	assert.Contains(t, output, "Module: moduleA")
	assert.Contains(t, output, "destination child is a file")
	assert.Contains(t, output, "Hint: Remove the file and retry")
	assert.Less(t, strings.Index(output, "Archive:"), strings.Index(output, "Module:"), "context keys are sorted")
}

func TestDetailErrorUnwrap(t *testing.T) {
	detail := &DetailError{
		Type:    "test",
		Message: "test message",
		Cause:   ErrManifest,
	}

	assert.True(t, errors.Is(detail, ErrManifest))
	assert.Equal(t, ErrManifest, detail.Unwrap())
}

func TestConstructorsKeepCause(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"read", NewReadError("cannot list", "/src", fs.ErrNotExist), ErrRead},
		{"extraction", NewExtractionError("bad header", "a.tar", fs.ErrInvalid), ErrExtraction},
		{"manifest", NewManifestError("bad json", "m.json", fs.ErrNotExist), ErrManifest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, errors.Is(tt.err, tt.sentinel))

			var detail *DetailError
			require.True(t, errors.As(tt.err, &detail))
			assert.NotEmpty(t, detail.Message)
		})
	}

	assert.True(t, errors.Is(NewReadError("x", "/src", fs.ErrNotExist), fs.ErrNotExist))
}

func TestNewSelectionError(t *testing.T) {
	err := NewSelectionError("no modules selected", "Pass --select")
	assert.True(t, errors.Is(err, ErrInvalidSelection))
	assert.Contains(t, err.Error(), "Hint: Pass --select")
}

func TestWrap(t *testing.T) {
	wrapped := Wrap(ErrValidation, "schema check failed")

	assert.True(t, errors.Is(wrapped, ErrValidation))
	assert.Contains(t, wrapped.Error(), "schema check failed")
}
