package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/tburn/internal/cli"
	"github.com/theirongolddev/tburn/internal/daemon"
	"github.com/theirongolddev/tburn/internal/model"
)

var flagStatusRefresh bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the metrics published by the running daemon",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().BoolVarP(&flagStatusRefresh, "refresh", "r", false, "Ask the daemon to run every fetcher first")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	addr := daemonAddr(cfg)
	client := daemon.NewClient(addr)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if flagStatusRefresh {
		progressf("  Refreshing...\n")
		if _, err := client.Refresh(ctx); err != nil && !errors.Is(err, daemon.ErrNoSnapshot) {
			return fmt.Errorf("refresh: %w", err)
		}
	}

	st, err := client.Status(ctx)
	if err != nil {
		fmt.Println()
		fmt.Printf("  No daemon reachable at http://%s\n", addr)
		fmt.Println()
		fmt.Println("  Start one with:")
		fmt.Println("    tburn daemon --detach")
		fmt.Println("  or fetch once without a daemon:")
		fmt.Println("    tburn snapshot")
		fmt.Println()
		return nil
	}

	now := time.Now()
	fmt.Println()
	fmt.Println(cli.RenderTitle("TIBBER METRICS"))
	fmt.Println()
	fmt.Print(cli.RenderSnapshot(st.Snapshot))
	fmt.Println()

	if st.Snapshot != nil {
		if peaks := cli.RenderPeaks(st.Snapshot.Peak, loc); peaks != "" {
			fmt.Print(peaks)
			fmt.Println()
		}
		if st.Snapshot.IsEnabled(model.GridPrice) {
			local := now.In(loc)
			if points := cli.GridSeries(st.Snapshot.GridPrices, local, loc); len(points) > 1 {
				fmt.Print(cli.RenderPriceChart("Grid price today", points, st.Snapshot.Home.PriceUnit, local))
				fmt.Println()
			}
		}
	}

	fmt.Print(cli.RenderSchedule(st.Schedule, now))
	fmt.Printf("  Last tick %s, %d ticks since %s\n",
		cli.FormatRelative(st.LastTickAt, now), st.TickCount, st.StartedAt.In(loc).Format("2006-01-02 15:04"))
	fmt.Println()
	return nil
}
