package cmd

import (
	"github.com/spf13/cobra"

	"github.com/modkit/cli/internal/config"
	oerrors "github.com/modkit/cli/internal/errors"
	"github.com/modkit/cli/internal/output"
)

var (
	// Global flags
	configFlag      string
	verboseFlag     bool
	timestampsFlag  bool
	sourceFlag      string
	destinationFlag string

	// Resolved configuration (loaded during PersistentPreRunE)
	modkitConfig *config.Config
	configErr    error
)

// NewRootCmd creates the root command for the modkit CLI.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "modkit",
		Short: "Selective module extraction and build",
		Long: `modkit extracts the selected modules of a monolithic source archive into a
destination tree, reconciles that tree with the previous build, applies
customization overlays and runs the external build pipeline.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initializeGlobals(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Path to config file (env: MODKIT_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&timestampsFlag, "timestamps", true, "Show timestamps in log output")
	rootCmd.PersistentFlags().StringVarP(&sourceFlag, "source", "s", "", "Source tree root (env: MODKIT_SOURCE)")
	rootCmd.PersistentFlags().StringVarP(&destinationFlag, "destination", "d", "", "Destination root (env: MODKIT_DESTINATION)")

	rootCmd.AddCommand(NewCatalogCmd())
	rootCmd.AddCommand(NewExtractCmd())
	rootCmd.AddCommand(NewBuildCmd())
	rootCmd.AddCommand(NewRoutesCmd())
	rootCmd.AddCommand(NewConfigCmd())
	rootCmd.AddCommand(NewVersionCmd())

	return rootCmd
}

// initializeGlobals sets up logging and loads configuration.
func initializeGlobals(cmd *cobra.Command) error {
	pathResult, err := config.ResolveConfigPath(configFlag)
	if err != nil {
		return oerrors.Wrap(oerrors.ErrNotFound, "could not resolve config path")
	}

	// A broken config file must not stop `config init --force` or `version`;
	// commands that need the configuration call loadedConfig.
	cfg, err := config.NewLoader().LoadWithDefaults(pathResult.Value)
	configErr = err
	if err != nil {
		cfg = config.DefaultConfig()
	}

	source := config.Resolve(config.ResolveOptions{
		Key:          "source",
		FlagValue:    sourceFlag,
		ConfigValue:  cfg.Source,
		DefaultValue: ".",
	})
	destination := config.Resolve(config.ResolveOptions{
		Key:          "destination",
		FlagValue:    destinationFlag,
		ConfigValue:  cfg.Destination,
		DefaultValue: ".",
	})
	cfg.Source = source.Value
	cfg.Destination = destination.Value
	modkitConfig = cfg

	// Build LogConfig with precedence: flag > config > default(true)
	logCfg := output.LogConfig{
		Verbose: verboseFlag,
	}
	if cmd.Flags().Changed("timestamps") {
		logCfg.Timestamps = output.BoolPtr(timestampsFlag)
	} else if cfg.Log.Timestamps != nil {
		logCfg.Timestamps = cfg.Log.Timestamps
	}
	output.SetupLogging(logCfg)

	if configErr != nil {
		output.Debug("config load error", "path", pathResult.Value, "error", configErr)
	}
	config.LogResolvedValues([]config.ResolvedValue{pathResult, source, destination})

	return nil
}

// loadedConfig returns the resolved configuration, or the error that
// prevented loading it.
func loadedConfig() (*config.Config, error) {
	if configErr != nil {
		return nil, &oerrors.DetailError{
			Type:    "validation failed",
			Message: configErr.Error(),
			Hint:    "Run 'modkit config vet' to check the configuration file.",
			Cause:   oerrors.ErrValidation,
		}
	}
	if modkitConfig == nil {
		return config.DefaultConfig(), nil
	}
	return modkitConfig, nil
}
