package output

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Color palette for all ANSI 256 colors used in the CLI.
// Never use inline lipgloss.Color literals outside this block.
var (
	// ColorCyan is used for identifiable nouns: module names, paths.
	ColorCyan = lipgloss.Color("14")

	// ColorGreen is used for the "extracted" and "succeeded" statuses.
	ColorGreen = lipgloss.Color("82")

	// ColorYellow is used for the "preserved" status and stderr lines.
	ColorYellow = lipgloss.Color("220")

	// ColorRed is used for the "deleted" status.
	ColorRed = lipgloss.Color("196")

	// ColorBoldRed is used for the "failed" status (matches ERROR level).
	ColorBoldRed = lipgloss.Color("204")

	// ColorGreenCheck is used for the completion checkmark.
	ColorGreenCheck = lipgloss.Color("10")

	// ColorDimGray is used for borders and other structural chrome.
	ColorDimGray = lipgloss.Color("240")
)

// Semantic styles.
var (
	// StyleNoun styles identifiable nouns (module names, paths).
	StyleNoun = lipgloss.NewStyle().Foreground(ColorCyan)

	// StyleAction styles action verbs.
	StyleAction = lipgloss.NewStyle().Bold(true)

	// StyleDim styles structural chrome (scope prefixes, separators).
	StyleDim = lipgloss.NewStyle().Faint(true)

	// StyleSummary styles completion and summary lines.
	StyleSummary = lipgloss.NewStyle().Bold(true)

	// StyleStderr styles lines a child process wrote to stderr.
	StyleStderr = lipgloss.NewStyle().Foreground(ColorYellow)
)

// Path and build status constants.
const (
	StatusExtracted = "extracted"
	StatusPreserved = "preserved"
	StatusDeleted   = "deleted"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// StatusStyle returns the lipgloss style for a given status string.
// Unknown statuses return an unstyled default.
func StatusStyle(status string) lipgloss.Style {
	switch status {
	case StatusExtracted, StatusSucceeded:
		return lipgloss.NewStyle().Foreground(ColorGreen)
	case StatusPreserved:
		return lipgloss.NewStyle().Foreground(ColorYellow)
	case StatusDeleted:
		return lipgloss.NewStyle().Foreground(ColorRed)
	case StatusFailed:
		return lipgloss.NewStyle().Bold(true).Foreground(ColorBoldRed)
	case StatusCancelled:
		return lipgloss.NewStyle().Faint(true)
	default:
		return lipgloss.NewStyle()
	}
}

// minPathColumnWidth is the minimum width for the path column before the
// status suffix, so status words align.
const minPathColumnWidth = 48

// FormatPathLine renders a destination path with a right-aligned,
// color-coded status suffix.
//
// Format: p:<path>  <status>
func FormatPathLine(path, status string) string {
	padding := minPathColumnWidth - len(path)
	if padding < 2 {
		padding = 2
	}

	prefix := StyleDim.Render("p:")
	styledPath := StyleNoun.Render(path)
	styledStatus := StatusStyle(status).Render(status)

	return prefix + styledPath + strings.Repeat(" ", padding) + styledStatus
}

// FormatCheckmark renders a green checkmark with a message for stdout output.
func FormatCheckmark(msg string) string {
	check := lipgloss.NewStyle().Foreground(ColorGreenCheck).Render("✔")
	return check + " " + msg
}

// FormatCommand renders a command line the way progress events announce it.
func FormatCommand(command string, args []string) string {
	if len(args) == 0 {
		return fmt.Sprintf("Running: %s", command)
	}
	return fmt.Sprintf("Running: %s %s", command, strings.Join(args, " "))
}
