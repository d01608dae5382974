package cmd

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/theirongolddev/tburn/internal/daemon"
	"github.com/theirongolddev/tburn/internal/tui"
	"github.com/theirongolddev/tburn/internal/tui/theme"
)

var flagWatchInterval time.Duration

var watchCmd = &cobra.Command{
	Use:     "watch",
	Aliases: []string{"tui"},
	Short:   "Live dashboard over the running daemon",
	RunE:    runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&flagWatchInterval, "interval", 5*time.Second, "Poll interval")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	theme.SetActive(cfg.General.Theme)

	// Force TrueColor so themed styles produce ANSI codes, unless the user
	// opted out with NO_COLOR.
	if termenv.EnvNoColor() {
		lipgloss.SetColorProfile(termenv.Ascii)
	} else {
		lipgloss.SetColorProfile(termenv.TrueColor)
	}

	app := tui.NewApp(daemon.NewClient(daemonAddr(cfg)), flagWatchInterval, loc)
	p := tea.NewProgram(app, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
