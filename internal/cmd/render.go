package cmd

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/modkit/cli/internal/extract"
	"github.com/modkit/cli/internal/manifest"
	"github.com/modkit/cli/internal/output"
	"github.com/modkit/cli/internal/progress"
)

// renderEvents logs every progress event until the stream is closed.
func renderEvents(events <-chan progress.Event) {
	for e := range events {
		renderEvent(e)
	}
}

func renderEvent(e progress.Event) {
	logger := output.Logger()
	if e.Module != "" {
		logger = output.ModuleLogger(e.Module)
	}
	switch e.Stream {
	case progress.StreamStderr:
		logger.Info(output.StyleStderr.Render(e.Message), "phase", e.Phase)
	case progress.StreamStdout:
		logger.Info(e.Message, "phase", e.Phase)
	default:
		logger.Info(output.StyleAction.Render(e.Message), "stage", e.Phase)
	}
}

// spinnerStage runs a non-interruptible stage under a spinner.
func spinnerStage(ctx context.Context, title string, fn func() error) error {
	return output.RunWithSpinner(ctx, fn, output.WithTitle(title))
}

// writePlan prints the destination children a reconciliation touches.
func writePlan(w io.Writer, tree string, plan extract.Plan, set []string) {
	if plan.CreateRoot {
		fmt.Fprintln(w, output.FormatPathLine(tree, "created"))
	}
	for _, name := range plan.Deletes {
		fmt.Fprintln(w, output.FormatPathLine(path.Join(extract.TreeName, name), output.StatusDeleted))
	}
	for _, name := range plan.Preserved {
		fmt.Fprintln(w, output.FormatPathLine(path.Join(extract.TreeName, name), output.StatusPreserved))
	}
	for _, name := range set {
		fmt.Fprintln(w, output.FormatPathLine(path.Join(extract.TreeName, name), output.StatusExtracted))
	}
}

// writeManifestDiffs prints the route changes of each patched manifest.
func writeManifestDiffs(w io.Writer, results []manifest.Result, useColor bool) error {
	for _, r := range results {
		if !r.Changed() {
			fmt.Fprintln(w, output.StyleNoun.Render(r.Module)+": routes unchanged")
			continue
		}
		diff, err := manifest.Diff(r.ReadFrom, r.Before, r.After, useColor)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, output.StyleNoun.Render(r.Module)+":")
		fmt.Fprint(w, output.IndentDiff(diff, "  "))
	}
	return nil
}
