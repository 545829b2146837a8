package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/modkit/cli/internal/version"
)

// NewVersionCmd creates the version command.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long: `Show modkit version information.

Displays the CLI version, commit and build date, the Go toolchain and
the versions of the archive, storage and schema libraries linked in.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version.Get().String())
			return err
		},
	}
}
