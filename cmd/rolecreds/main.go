package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/systmms/rolecreds/cmd/rolecreds/commands"
	"github.com/systmms/rolecreds/internal/config"
	"github.com/systmms/rolecreds/internal/execenv"
	"github.com/systmms/rolecreds/internal/logging"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		var exitErr *execenv.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile string
		noColor    bool
		debug      bool
	)

	cfg := &config.Config{}

	rootCmd := &cobra.Command{
		Use:   "rolecreds",
		Short: "Keep short-lived AWS credentials fresh",
		Long: `rolecreds selects a credentials source (container credentials endpoint,
static keys, or a dev role) and keeps the credentials rotated before they
expire.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg.Path = configFile
			cfg.Debug = debug
			cfg.NoColor = noColor
			cfg.Logger = logging.New(debug, noColor)
			return cfg.Load(cmd.Flags().Changed("config"))
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "rolecreds.yaml", "Config file path")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(
		commands.NewResolveCommand(cfg),
		commands.NewWatchCommand(cfg),
		commands.NewExecCommand(cfg),
		commands.NewVersionCommand(version, commit, date),
	)

	return rootCmd.Execute()
}
