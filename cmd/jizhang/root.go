package main

import (
	"context"
	"os"

	"jizhang/internal/backend"
	"jizhang/internal/cli"
	"jizhang/internal/config"
	"jizhang/internal/log"

	"github.com/spf13/cobra"
)

var (
	flagConfig   string
	flagLogLevel string
	flagBackend  string
)

// Set by the root PersistentPreRunE.
var (
	appConfig *config.Config
	appLogger *log.Logger
)

var rootCmd = &cobra.Command{
	Use:               "jizhang",
	Short:             "Spreadsheet-backed expense tracker",
	Long:              "Record dated expenses in a Google spreadsheet and compare monthly spending with a budget.",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "Config file (default ./jizhang.yaml if present)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Override LOG_LEVEL (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&flagBackend, "backend", "", "Override DATA_BACKEND (sheets or memory)")
}

func setup(cmd *cobra.Command, _ []string) error {
	cli.LoadEnvFile()
	cfg, err := cli.LoadAndValidateConfig(flagConfig, func(c *config.Config) {
		if flagLogLevel != "" {
			c.LogLevel = flagLogLevel
		}
		if flagBackend != "" {
			c.DataBackend = flagBackend
		}
	})
	if err != nil {
		return err
	}

	// Only the server logs to stdout; other commands keep stdout for results.
	out := os.Stderr
	if cmd.Name() == serveCmd.Name() {
		out = os.Stdout
	}
	logger, err := cli.SetupLogger(cfg.LogLevel, out)
	if err != nil {
		return err
	}
	appConfig, appLogger = cfg, logger
	return nil
}

// withBackend opens the configured backend for the duration of fn.
func withBackend(ctx context.Context, fn func(res *backend.BackendResult) error) error {
	res, err := cli.OpenBackend(ctx, appConfig, appLogger)
	if err != nil {
		return err
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			appLogger.Warn("Cleanup failed", log.FieldError, err)
		}
	}()
	return fn(res)
}
