package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	oerrors "github.com/modkit/cli/internal/errors"
	"github.com/modkit/cli/internal/manifest"
	"github.com/modkit/cli/internal/output"
	"github.com/modkit/cli/internal/pipeline"
)

// NewRoutesCmd creates the routes command.
func NewRoutesCmd() *cobra.Command {
	var sf SelectFlags
	var df DiffFlags
	var dryRunFlag bool

	cmd := &cobra.Command{
		Use:   "routes <module>",
		Short: "Rewrite the route manifest of one module",
		Long: `Copy the build descriptors of one module into the extracted tree and
rewrite its route manifest so that "routes" lists exactly the selected
sub-packages.

Examples:
  # Restrict billing to two routes
  modkit routes billing --select billing=invoices,payments

  # Preview the change without writing
  modkit routes billing --select billing=invoices --dry-run --diff`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoutes(cmd, args[0], &sf, &df, dryRunFlag)
		},
	}

	sf.AddTo(cmd)
	df.AddTo(cmd, "diff", "Print the route changes")
	cmd.Flags().BoolVar(&dryRunFlag, "dry-run", false,
		"Compute the patched manifest without writing it")

	return cmd
}

func runRoutes(cmd *cobra.Command, module string, sf *SelectFlags, df *DiffFlags, dryRun bool) error {
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
	pkgs, ok := sel[module]
	if !ok {
		return oerrors.NewSelectionError(
			fmt.Sprintf("module %s is not selected", module),
			fmt.Sprintf("Add --select %s=<sub-packages>.", module),
		)
	}

	patcher := p.Patcher()
	patcher.DryRun = dryRun
	res, err := patcher.Patch(module, pkgs)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if df.Show {
		if err := writeManifestDiffs(w, []manifest.Result{res}, df.Color); err != nil {
			return err
		}
	}

	verb := "Patched"
	if dryRun {
		verb = "Would patch"
	}
	fmt.Fprintln(w, output.FormatCheckmark(fmt.Sprintf("%s %s: routes %s",
		verb, strings.Join(res.Written, ", "), strings.Join(pkgs, ", "))))
	return nil
}
