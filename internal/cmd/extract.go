package cmd

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/modkit/cli/internal/output"
	"github.com/modkit/cli/internal/pipeline"
)

// NewExtractCmd creates the extract command.
func NewExtractCmd() *cobra.Command {
	var sf SelectFlags
	var df DiffFlags
	var dryRunFlag bool

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract selected modules without building",
		Long: `Prepare <destination>/extracted for the selected modules without running
the external build phases. Equivalent to 'modkit build --skip-build'.

With --dry-run nothing is written: the command prints which destination
entries would be deleted, which dependency caches would be kept and which
top-level folders would be extracted.

Examples:
  # Prepare the tree for one module
  modkit extract --select billing=invoices

  # Preview the reconciliation and the route changes
  modkit extract --select billing=invoices --dry-run --show-diff`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dryRunFlag {
				return runExtractDryRun(cmd, &sf, &df)
			}
			return runBuild(cmd, &sf, &df, true)
		},
	}

	sf.AddTo(cmd)
	df.AddTo(cmd, "show-diff", "Print the route changes of each patched manifest")
	cmd.Flags().BoolVar(&dryRunFlag, "dry-run", false,
		"Print the reconciliation plan without touching disk")

	return cmd
}

func runExtractDryRun(cmd *cobra.Command, sf *SelectFlags, df *DiffFlags) error {
	cfg, err := loadedConfig()
	if err != nil {
		return err
	}

	p := pipeline.New(cfg)
	cat, err := p.ReadCatalog()
	if err != nil {
		return err
	}
	sel, err := sf.Selection(afero.NewOsFs(), cat)
	if err != nil {
		return err
	}

	set := sel.ExtractionSet(cfg.AlwaysInclude)
	plan, err := p.Extractor().DryRun(cfg.Destination, set)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	writePlan(w, cfg.ExtractedRoot(), plan, set)

	if df.Show {
		patcher := p.Patcher()
		patcher.DryRun = true
		results, err := patcher.PatchAll(sel)
		if err != nil {
			return err
		}
		if err := writeManifestDiffs(w, results, df.Color); err != nil {
			return err
		}
	}

	fmt.Fprintln(w, output.FormatCheckmark(fmt.Sprintf(
		"Dry run: %d to delete, %d caches kept, %d folders to extract",
		len(plan.Deletes), len(plan.Preserved), len(set))))
	return nil
}
