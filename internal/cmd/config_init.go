package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/modkit/cli/internal/config"
	oerrors "github.com/modkit/cli/internal/errors"
	"github.com/modkit/cli/internal/output"
)

// NewConfigInitCmd creates the config init command.
func NewConfigInitCmd() *cobra.Command {
	var forceFlag bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize default configuration",
		Long: `Write the default modkit configuration.

The file is created at the resolved config path:
  --config flag > MODKIT_CONFIG env > ~/.modkit/config.yaml

The defaults describe the extraction rules (always-included folders,
cache directory, overlay names, manifest name) and the external build
phases. Edit the file to match your source tree.

Examples:
  # Initialize configuration
  modkit config init

  # Overwrite existing configuration
  modkit config init --force`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigInit(cmd, forceFlag)
		},
	}

	cmd.Flags().BoolVarP(&forceFlag, "force", "f", false,
		"Overwrite existing configuration")

	return cmd
}

func runConfigInit(_ *cobra.Command, force bool) error {
	pathResult, err := config.ResolveConfigPath(configFlag)
	if err != nil {
		return oerrors.Wrap(oerrors.ErrNotFound, "could not determine home directory")
	}
	configPath, err := config.ExpandPath(pathResult.Value)
	if err != nil {
		return oerrors.Wrap(oerrors.ErrNotFound, "could not expand config path")
	}

	if _, err := os.Stat(configPath); err == nil && !force {
		return &oerrors.DetailError{
			Type:     "validation failed",
			Message:  "configuration already exists",
			Location: configPath,
			Hint:     "Use --force to overwrite existing configuration.",
			Cause:    oerrors.ErrValidation,
		}
	}

	body, err := config.DefaultConfigYAML()
	if err != nil {
		return err
	}

	// Create directories with secure permissions (0700)
	if err := os.MkdirAll(filepath.Dir(configPath), 0o700); err != nil {
		return oerrors.Wrap(oerrors.ErrValidation, "could not create "+filepath.Dir(configPath))
	}

	// Write config with secure permissions (0600)
	if err := os.WriteFile(configPath, body, 0o600); err != nil {
		return oerrors.Wrap(oerrors.ErrValidation, "could not write "+configPath)
	}

	output.Println("Configuration initialized at " + configPath)
	output.Println("Validate with: modkit config vet")

	return nil
}
