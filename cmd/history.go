package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/tburn/internal/cli"
	"github.com/theirongolddev/tburn/internal/store"
)

var flagHistoryDays int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show archived metrics, one row per day",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&flagHistoryDays, "days", "n", 14, "Number of days to show")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.Archive.Enabled {
		return errors.New("archive is disabled ([archive] enabled = false)")
	}

	archive, err := store.Open(cfg.ArchivePath())
	if err != nil {
		return err
	}
	defer func() { _ = archive.Close() }()

	days, err := archive.History(context.Background(), flagHistoryDays)
	if err != nil && !errors.Is(err, store.ErrNoHistory) {
		return err
	}

	fmt.Println()
	fmt.Print(cli.RenderHistory(days))
	fmt.Println()
	if len(days) == 0 {
		fmt.Println("  The daemon archives a snapshot whenever a metric changes.")
		fmt.Println()
	}
	return nil
}
