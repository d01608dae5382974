// Package cmd implements the tburn CLI commands.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show current configuration",
	RunE:  runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	fmt.Printf("  Config file: %s\n", flagConfig)
	if _, err := os.Stat(flagConfig); err == nil {
		fmt.Println("  Status: loaded")
	} else {
		fmt.Println("  Status: using defaults (no config file)")
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("  Problem: %v\n", err)
	}
	fmt.Println()

	fmt.Println("  [General]")
	tz := cfg.General.Timezone
	if tz == "" {
		tz = "local"
	}
	fmt.Printf("    Timezone:  %s\n", tz)
	fmt.Printf("    Log level: %s\n", cfg.General.LogLevel)
	fmt.Printf("    Theme:     %s\n", cfg.General.Theme)
	fmt.Println()

	fmt.Println("  [Tibber]")
	fmt.Printf("    Access token: %s\n", maskSecret(cfg.Tibber.AccessToken))
	if cfg.Tibber.HomeID != "" {
		fmt.Printf("    Home ID:      %s\n", cfg.Tibber.HomeID)
	} else {
		fmt.Println("    Home ID:      first home on the account")
	}
	if cfg.GridPricesEnabled() {
		fmt.Printf("    Grid prices:  enabled (%s)\n", cfg.Tibber.Email)
	} else {
		fmt.Println("    Grid prices:  disabled (no email/password)")
	}
	fmt.Println()

	fmt.Println("  [Subsidy]")
	p := cfg.Subsidy.Params()
	fmt.Printf("    Reference price: %.4f\n", p.ReferencePrice)
	fmt.Printf("    VAT multiplier:  %.4f\n", p.VATMultiplier)
	fmt.Printf("    Coverage:        %.0f%%\n", p.Coverage*100)
	fmt.Printf("    Threshold:       %.4f\n", p.Threshold())
	fmt.Println()

	fmt.Println("  [Daemon]")
	fmt.Printf("    Address:  %s\n", cfg.Daemon.Addr)
	fmt.Printf("    Tick:     %s\n", cfg.TickInterval())
	fmt.Printf("    Timeout:  %s\n", cfg.FetchTimeout())
	fmt.Printf("    Notify:   %v\n", cfg.Daemon.Notify)
	fmt.Println()

	fmt.Println("  [Sinks]")
	if cfg.Archive.Enabled {
		fmt.Printf("    Archive:  %s\n", cfg.ArchivePath())
	} else {
		fmt.Println("    Archive:  disabled")
	}
	if cfg.MQTT.Enabled {
		fmt.Printf("    MQTT:     %s:%d (prefix %s, discovery %s)\n",
			cfg.MQTT.Broker, cfg.MQTT.Port, cfg.MQTT.TopicPrefix, cfg.MQTT.DiscoveryPrefix)
	} else {
		fmt.Println("    MQTT:     disabled")
	}
	if cfg.InfluxDB.Enabled {
		fmt.Printf("    InfluxDB: %s (%s/%s)\n", cfg.InfluxDB.URL, cfg.InfluxDB.Org, cfg.InfluxDB.Bucket)
	} else {
		fmt.Println("    InfluxDB: disabled")
	}
	fmt.Println()

	fmt.Println("  Run `tburn setup` to reconfigure.")
	return nil
}

func maskSecret(s string) string {
	switch {
	case s == "":
		return "not configured"
	case len(s) > 16:
		return s[:6] + "..." + s[len(s)-4:]
	case len(s) > 4:
		return s[:4] + "..."
	}
	return "****"
}
