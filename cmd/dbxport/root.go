package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/dbxport/pkg/cli"
	"mercator-hq/dbxport/pkg/config"
	"mercator-hq/dbxport/pkg/telemetry/logging"
)

var (
	// Global flags
	cfgFile   string
	logLevel  string
	logFormat string
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "dbxport",
	Short: "dbxport - export database query results to files",
	Long: `dbxport runs a SQL query against SQLite, PostgreSQL or MySQL and writes the
result as JSON, NDJSON, CSV, a Markdown table, an Excel workbook, SQL INSERT
statements or Parquet.

Values keep their database types: exact decimals stay exact, 64-bit integers
are never rounded and timestamps keep their zone. Output is written to a
temporary file and renamed into place, so a failed export never leaves a
truncated file behind.`,
	Version:           Version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

// Execute runs the root command and exits with the status matching the
// error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", logging.NewRedactor(nil).RedactString(err.Error()))
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (optional for export and describe)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "override log format (text, json, console)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (same as --log-level debug)")
}

// setup loads configuration and installs the process logger before any
// subcommand runs.
func setup(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return cli.NewConfigError("--config", err.Error())
	}

	if logLevel != "" {
		cfg.Telemetry.Logging.Level = logLevel
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	if logFormat != "" {
		cfg.Telemetry.Logging.Format = logFormat
	}
	config.SetConfig(cfg)

	logger, err := newLogger(cfg.Telemetry.Logging)
	if err != nil {
		return cli.NewConfigError("--log-level", err.Error())
	}
	slog.SetDefault(logger.Slog())
	return nil
}

func loadConfig() (*config.Config, error) {
	if cfgFile == "" {
		return config.FromEnv()
	}
	return config.LoadConfigWithEnvOverrides(cfgFile)
}

func newLogger(cfg config.LoggingConfig) (*logging.Logger, error) {
	return logging.New(logging.Config{
		Level:          cfg.Level,
		Format:         cfg.Format,
		AddSource:      cfg.AddSource,
		RedactSecrets:  cfg.RedactSecretsEnabled(),
		RedactPatterns: cfg.RedactPatterns,
		Writer:         os.Stderr,
	})
}
