// Package cmd provides command implementations for the modkit CLI.
package cmd

// Process exit codes.
const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError = 1

	// ExitValidationError indicates invalid configuration or module selection.
	ExitValidationError = 2

	// ExitReadError indicates the source tree could not be scanned.
	ExitReadError = 3

	// ExitExtractionError indicates the archive or destination tree failed.
	ExitExtractionError = 4

	// ExitManifestError indicates a missing or invalid build descriptor.
	ExitManifestError = 5

	// ExitCommandError indicates a build phase failed or timed out.
	ExitCommandError = 6

	// ExitCancelled indicates the build was halted (128 + SIGINT).
	ExitCancelled = 130
)

// ExitCodeName returns the name of the exit code.
func ExitCodeName(code int) string {
	switch code {
	case ExitSuccess:
		return "Success"
	case ExitGeneralError:
		return "General Error"
	case ExitValidationError:
		return "Validation Error"
	case ExitReadError:
		return "Read Error"
	case ExitExtractionError:
		return "Extraction Error"
	case ExitManifestError:
		return "Manifest Error"
	case ExitCommandError:
		return "Command Error"
	case ExitCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}
