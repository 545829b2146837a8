package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/modkit/cli/internal/orchestrator"
	"github.com/modkit/cli/internal/output"
	"github.com/modkit/cli/internal/pipeline"
)

// NewBuildCmd creates the build command.
func NewBuildCmd() *cobra.Command {
	var sf SelectFlags
	var df DiffFlags
	var skipBuildFlag bool

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Extract selected modules and run the build pipeline",
		Long: `Extract the selected modules into <destination>/extracted and build them.

The build runs these stages in order:
  1. catalog    read the source tree and validate the selection
  2. extract    prune the destination tree and extract the archive
  3. overlay    copy src-custom overrides, shared packages and the library
  4. manifest   copy build descriptors and rewrite the route manifest
  5. build      run the configured external phases

Interrupting the command (Ctrl-C) halts the build: a running phase is
terminated at once, any other stage finishes and the build stops at the
next stage boundary.

Examples:
  # Build two sub-packages of the billing module
  modkit build --select billing=invoices,payments

  # Build every sub-package of a module, selection from a file
  modkit build --select reports --selection-file selection.yaml

  # Prepare the tree without running the external phases
  modkit build --select billing --skip-build`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd, &sf, &df, skipBuildFlag)
		},
	}

	sf.AddTo(cmd)
	df.AddTo(cmd, "show-diff", "Print the route changes of each patched manifest")
	cmd.Flags().BoolVar(&skipBuildFlag, "skip-build", false,
		"Stop after the manifest stage")

	return cmd
}

func runBuild(cmd *cobra.Command, sf *SelectFlags, df *DiffFlags, skipBuild bool) error {
	cfg, err := loadedConfig()
	if err != nil {
		return err
	}

	p := pipeline.New(cfg, pipeline.WithStageRunner(spinnerStage))
	cat, err := p.ReadCatalog()
	if err != nil {
		return err
	}
	sel, err := sf.Selection(afero.NewOsFs(), cat)
	if err != nil {
		return err
	}

	output.Info("starting build",
		"modules", strings.Join(sel.Modules(), ","),
		"destination", cfg.ExtractedRoot(),
	)

	session := p.Start(cmd.Context(), pipeline.Options{Selection: sel, SkipBuild: skipBuild})
	stop := haltOnSignal(session)
	defer stop()

	renderEvents(session.Events())
	res := session.Wait()

	w := cmd.OutOrStdout()
	if verboseFlag && res.Extract.Tree != "" {
		writePlan(w, res.Extract.Tree, res.Extract.Plan, res.ExtractionSet)
	}
	if df.Show && len(res.Manifests) > 0 {
		if err := writeManifestDiffs(w, res.Manifests, df.Color); err != nil {
			output.Warn("could not render manifest diff", "error", err)
		}
	}

	return buildOutcome(w, res, skipBuild)
}

// buildOutcome reports the final session state and converts it to the
// command's error.
func buildOutcome(w io.Writer, res pipeline.Result, skipBuild bool) error {
	switch res.State {
	case orchestrator.Succeeded:
		msg := fmt.Sprintf("Build succeeded: %d entries extracted, %d overlay files copied",
			res.Extract.Stats.Extracted, res.Overlay.Files())
		if skipBuild {
			msg = fmt.Sprintf("Tree prepared: %d entries extracted, %d overlay files copied",
				res.Extract.Stats.Extracted, res.Overlay.Files())
		}
		fmt.Fprintln(w, output.FormatCheckmark(msg))
		return nil
	case orchestrator.Cancelled:
		output.Warn("build "+output.StatusCancelled, "stage", res.Stage)
		return reported(res.Err)
	default:
		err := res.Err
		if err == nil {
			err = errors.New("build failed")
		}
		output.Error("build "+output.StatusFailed, "stage", res.Stage)
		return err
	}
}

// halter is the part of a session a signal can stop.
type halter interface {
	Halt()
	Done() <-chan struct{}
}

// haltOnSignal halts h on SIGINT or SIGTERM until h finishes or the
// returned stop function is called.
func haltOnSignal(h halter) (stop func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case sig := <-sigCh:
			output.Warn("halting build", "signal", sig.String())
			h.Halt()
		case <-h.Done():
		case <-ctx.Done():
		}
	}()

	return func() {
		cancel()
		signal.Stop(sigCh)
	}
}
