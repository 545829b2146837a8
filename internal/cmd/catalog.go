package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/modkit/cli/internal/catalog"
	oerrors "github.com/modkit/cli/internal/errors"
	"github.com/modkit/cli/internal/output"
	"github.com/modkit/cli/internal/pipeline"
)

// NewCatalogCmd creates the catalog command.
func NewCatalogCmd() *cobra.Command {
	var outputFlag string

	cmd := &cobra.Command{
		Use:   "catalog [source]",
		Short: "List the modules of a source tree",
		Long: `List the modules of a source tree and their selectable sub-packages.

A top-level folder is a module when it contains a "packages" directory;
every directory under "packages" is a sub-package.

Arguments:
  source    Source tree root (default: --source, MODKIT_SOURCE, config, ".")

Examples:
  # List modules as a table
  modkit catalog ./monorepo

  # Machine-readable listing
  modkit catalog -o json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCatalog(cmd, args, outputFlag)
		},
	}

	cmd.Flags().StringVarP(&outputFlag, "output", "o", "table",
		"Output format: "+strings.Join(output.ValidFormats(), ", "))

	return cmd
}

func runCatalog(cmd *cobra.Command, args []string, outputFlag string) error {
	format, ok := output.ParseFormat(outputFlag)
	if !ok {
		return oerrors.NewValidationError(
			fmt.Sprintf("unknown output format %q", outputFlag),
			"",
			"Use one of: "+strings.Join(output.ValidFormats(), ", "),
		)
	}

	cfg, err := loadedConfig()
	if err != nil {
		return err
	}
	if len(args) > 0 {
		c := *cfg
		c.Source = args[0]
		cfg = &c
	}

	cat, err := pipeline.New(cfg).ReadCatalog()
	if err != nil {
		return err
	}
	output.Debug("catalog read", "source", cfg.Source, "modules", len(cat))

	return writeCatalog(cmd.OutOrStdout(), cat, format)
}

func writeCatalog(w io.Writer, cat catalog.Catalog, format output.OutputFormat) error {
	switch format {
	case output.FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(cat)
	case output.FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(cat); err != nil {
			return err
		}
		return enc.Close()
	default:
		if len(cat) == 0 {
			_, err := fmt.Fprintln(w, "No modules found.")
			return err
		}
		tbl := output.NewCatalogTable()
		for _, m := range cat.Modules() {
			tbl.Add(m, cat[m])
		}
		_, err := fmt.Fprintln(w, tbl.String())
		return err
	}
}
