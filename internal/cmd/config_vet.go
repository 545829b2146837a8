package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/modkit/cli/internal/config"
	oerrors "github.com/modkit/cli/internal/errors"
	"github.com/modkit/cli/internal/output"
)

// NewConfigVetCmd creates the config vet command.
func NewConfigVetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vet",
		Short: "Validate configuration",
		Long: `Validate the modkit configuration file.

Checks performed:
  1. Config file exists at resolved path
  2. Config file is valid YAML
  3. Every field matches the configuration schema

The config path is resolved using precedence:
  --config flag > MODKIT_CONFIG env > ~/.modkit/config.yaml

Examples:
  # Validate default configuration
  modkit config vet

  # Validate custom config path
  modkit config vet --config /path/to/config.yaml`,
		RunE: runConfigVet,
	}

	return cmd
}

func runConfigVet(cmd *cobra.Command, args []string) error {
	pathResult, err := config.ResolveConfigPath(configFlag)
	if err != nil {
		return oerrors.Wrap(oerrors.ErrNotFound, "could not resolve config path")
	}
	configPath, err := config.ExpandPath(pathResult.Value)
	if err != nil {
		return oerrors.Wrap(oerrors.ErrNotFound, "could not expand config path")
	}

	output.Debug("validating config",
		"path", configPath,
		"source", pathResult.Source,
	)

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return &oerrors.DetailError{
			Type:     "not found",
			Message:  "configuration file not found",
			Location: configPath,
			Hint:     "Run 'modkit config init' to create default configuration",
			Cause:    oerrors.ErrNotFound,
		}
	}

	validator, err := config.NewValidator()
	if err != nil {
		return err
	}
	if err := validator.ValidateFile(configPath); err != nil {
		return NewExitError(err, ExitValidationError)
	}

	output.Println("Configuration is valid: " + configPath)
	return nil
}
