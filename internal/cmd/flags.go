package cmd

import (
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/modkit/cli/internal/catalog"
	"github.com/modkit/cli/internal/selection"
)

// SelectFlags holds the module selection flags shared by
// extract, build and routes.
type SelectFlags struct {
	Select []string
	File   string
}

// AddTo registers the selection flags on the given cobra command.
func (f *SelectFlags) AddTo(cmd *cobra.Command) {
	cmd.Flags().StringArrayVar(&f.Select, "select", nil,
		"Module selection as module=pkg1,pkg2 or module (can be repeated)")
	cmd.Flags().StringVar(&f.File, "selection-file", "",
		"YAML or JSON file mapping modules to sub-packages")
}

// Selection merges the file and flag selections and validates the result
// against the catalog.
func (f *SelectFlags) Selection(fs afero.Fs, cat catalog.Catalog) (selection.Selection, error) {
	sel := make(selection.Selection)
	if f.File != "" {
		fromFile, err := selection.LoadFile(fs, f.File)
		if err != nil {
			return nil, err
		}
		sel = sel.Merge(fromFile)
	}

	fromFlags, err := selection.Parse(f.Select, cat)
	if err != nil {
		return nil, err
	}
	sel = sel.Merge(fromFlags)

	if err := sel.Validate(cat); err != nil {
		return nil, err
	}
	return sel, nil
}

// DiffFlags holds the manifest diff flags.
type DiffFlags struct {
	Show  bool
	Color bool
}

// AddTo registers the diff flags under the given name on cmd.
func (f *DiffFlags) AddTo(cmd *cobra.Command, name, usage string) {
	cmd.Flags().BoolVar(&f.Show, name, false, usage)
	cmd.Flags().BoolVar(&f.Color, "color", false, "Colorize diff output")
}
