// Package cli provides the command-line interface for labelrelay.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/orrn/labelrelay/internal/config"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	configPath string
	verbose    bool

	store       *config.Store
	logger      *slog.Logger
	closeLogger func() error
)

var rootCmd = &cobra.Command{
	Use:   "labelrelay",
	Short: "Relay label print jobs from Odoo to a network label printer",
	Long: `labelrelay fetches pending label print jobs from an Odoo instance, renders
them with the configured templates and streams the commands to a raw TCP
label printer (port 9100). A web UI shows progress live.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" {
			return nil
		}

		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg.ApplyEnv()
		if verbose {
			cfg.Logging.Level = "debug"
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		store = config.NewStore(cfg, configPath)
		logger, closeLogger = config.SetupLogger(cfg.Logging)
		slog.SetDefault(logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if closeLogger != nil {
			if err := closeLogger(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
			}
		}
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(printCmd)
	rootCmd.AddCommand(printAllCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(templatesCmd)
}
