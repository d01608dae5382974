package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/tburn/internal/config"
	"github.com/theirongolddev/tburn/internal/logger"
)

var (
	flagConfig   string
	flagQuiet    bool
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:   "tburn",
	Short: "Tibber electricity metrics with subsidy estimates",
	Long: "Fetch hourly consumption and prices from Tibber, track the monthly peak\n" +
		"hours and estimate the electricity subsidy and cost for the current month.",
	RunE:         runSnapshot,
	SilenceUsage: true,
}

// Execute is the main entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", config.ConfigPath(), "Config file path")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Suppress progress output")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Override log level (debug, info, warn, error)")
}

// loadConfig is the shared config path used by all commands. It also
// configures the package logger from the [general] section.
func loadConfig() (config.Config, error) {
	cfg, err := config.LoadFrom(flagConfig)
	if err != nil {
		return cfg, err
	}
	level := cfg.General.LogLevel
	if flagLogLevel != "" {
		level = flagLogLevel
	}
	if flagQuiet && flagLogLevel == "" {
		level = "warn"
	}
	logger.Setup(os.Stderr, level, cfg.General.LogJSON)
	return cfg, nil
}

func progressf(format string, args ...any) {
	if flagQuiet {
		return
	}
	fmt.Fprintf(os.Stderr, format, args...)
}
