package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/tburn/internal/cli"
	"github.com/theirongolddev/tburn/internal/model"
)

var flagSnapshotJSON bool

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Fetch once and print the current metrics",
	RunE:  runSnapshot,
}

func init() {
	snapshotCmd.Flags().BoolVar(&flagSnapshotJSON, "json", false, "Print the snapshot as JSON")
	rootCmd.Flags().BoolVar(&flagSnapshotJSON, "json", false, "Print the snapshot as JSON")
	rootCmd.AddCommand(snapshotCmd)
}

func runSnapshot(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	progressf("  Fetching from Tibber...\n")
	rt, err := newRuntime(ctx, cfg)
	if err != nil {
		return err
	}

	now := time.Now()
	snap := rt.coord.Tick(ctx, now)
	for _, e := range rt.coord.Schedule() {
		if e.LastError != "" {
			progressf("  %s: %s\n", e.ID, e.LastError)
		}
	}

	if flagSnapshotJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle("TIBBER METRICS"))
	fmt.Println()
	fmt.Print(cli.RenderSnapshot(snap))
	fmt.Println()

	if peaks := cli.RenderPeaks(snap.Peak, rt.loc); peaks != "" {
		fmt.Print(peaks)
		fmt.Println()
	}

	local := now.In(rt.loc)
	if points := cli.PriceSeries(rt.home.PriceTotal(), local, rt.loc); len(points) > 1 {
		fmt.Print(cli.RenderPriceChart("Spot price today", points, snap.Home.PriceUnit, local))
		fmt.Println()
	}
	if snap.IsEnabled(model.GridPrice) {
		if points := cli.GridSeries(snap.GridPrices, local, rt.loc); len(points) > 1 {
			fmt.Print(cli.RenderPriceChart("Grid price today", points, snap.Home.PriceUnit, local))
			fmt.Println()
		}
	}

	fmt.Print(cli.RenderSchedule(rt.coord.Schedule(), now))
	fmt.Println()
	return nil
}
