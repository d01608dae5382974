// Package tui provides the live Bubble Tea watch view over a running daemon.
package tui

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/theirongolddev/tburn/internal/cli"
	"github.com/theirongolddev/tburn/internal/daemon"
	"github.com/theirongolddev/tburn/internal/model"
	"github.com/theirongolddev/tburn/internal/tui/components"
	"github.com/theirongolddev/tburn/internal/tui/theme"
)

// Source is the daemon API the watch view polls.
type Source interface {
	Status(ctx context.Context) (*daemon.Status, error)
	Events(ctx context.Context) ([]daemon.Event, error)
	Refresh(ctx context.Context) (*model.Snapshot, error)
}

// StatusMsg carries the result of one poll.
type StatusMsg struct {
	Status *daemon.Status
	Events []daemon.Event
	Err    error
	At     time.Time
}

// RefreshedMsg is sent when a manual refresh completes.
type RefreshedMsg struct {
	Err error
}

type pollTickMsg struct{}

// App is the root Bubble Tea model.
type App struct {
	src      Source
	interval time.Duration
	loc      *time.Location
	now      func() time.Time

	// Data
	status   *daemon.Status
	events   []daemon.Event
	lastPoll time.Time
	err      error

	refreshing bool

	// UI state
	width       int
	height      int
	activeTab   int
	showHelp    bool
	eventScroll int
	spinner     spinner.Model
}

const (
	minTerminalWidth = 60
	maxContentWidth  = 140
	pollTimeout      = 5 * time.Second
	cardsPerRow      = 3
)

// NewApp creates a watch view polling src every interval.
func NewApp(src Source, interval time.Duration, loc *time.Location) App {
	if interval < time.Second {
		interval = 5 * time.Second
	}
	if loc == nil {
		loc = time.Local
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.Active.Accent)

	return App{
		src:      src,
		interval: interval,
		loc:      loc,
		now:      time.Now,
		spinner:  sp,
	}
}

// Init implements tea.Model.
func (a App) Init() tea.Cmd {
	return tea.Batch(
		tea.EnableMouseCellMotion,
		a.spinner.Tick,
		pollCmd(a.src, a.now),
	)
}

// Update implements tea.Model.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		return a, nil

	case tea.MouseMsg:
		if a.status == nil || a.showHelp {
			return a, nil
		}
		switch msg.Button {
		case tea.MouseButtonLeft:
			if msg.Y == 0 {
				if tab := components.TabAtX(msg.X, a.activeTab); tab >= 0 {
					a.activeTab = tab
				}
			}
		case tea.MouseButtonWheelDown:
			a.scrollEvents(1)
		case tea.MouseButtonWheelUp:
			a.scrollEvents(-1)
		}
		return a, nil

	case tea.KeyMsg:
		return a.updateKey(msg)

	case StatusMsg:
		a.lastPoll = msg.At
		a.err = msg.Err
		if msg.Err == nil {
			a.status = msg.Status
			a.events = msg.Events
		}
		return a, tea.Tick(a.interval, func(time.Time) tea.Msg { return pollTickMsg{} })

	case pollTickMsg:
		return a, pollCmd(a.src, a.now)

	case RefreshedMsg:
		a.refreshing = false
		if msg.Err != nil {
			a.err = msg.Err
			return a, nil
		}
		return a, pollCmd(a.src, a.now)

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd
	}

	return a, nil
}

func (a App) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	switch key {
	case "ctrl+c", "q":
		return a, tea.Quit
	case "?":
		a.showHelp = !a.showHelp
		return a, nil
	}

	if a.showHelp {
		a.showHelp = false
		return a, nil
	}

	switch key {
	case "r":
		if a.refreshing {
			return a, nil
		}
		a.refreshing = true
		return a, refreshCmd(a.src)
	case "tab", "right", "l":
		a.activeTab = (a.activeTab + 1) % len(components.Tabs)
		return a, nil
	case "shift+tab", "left", "h":
		a.activeTab = (a.activeTab + len(components.Tabs) - 1) % len(components.Tabs)
		return a, nil
	case "j", "down":
		a.scrollEvents(1)
		return a, nil
	case "k", "up":
		a.scrollEvents(-1)
		return a, nil
	}

	if len(key) == 1 {
		if tab := components.TabIdxByKey(rune(key[0])); tab >= 0 {
			a.activeTab = tab
		}
	}
	return a, nil
}

func (a *App) scrollEvents(delta int) {
	if a.activeTab != eventsTab {
		return
	}
	a.eventScroll += delta
	if last := len(a.events) - 1; a.eventScroll > last {
		a.eventScroll = last
	}
	if a.eventScroll < 0 {
		a.eventScroll = 0
	}
}

func (a App) contentWidth() int {
	cw := a.width
	if cw > maxContentWidth {
		cw = maxContentWidth
	}
	return cw
}

// View implements tea.Model.
func (a App) View() string {
	if a.width == 0 {
		return ""
	}
	if a.width < minTerminalWidth {
		return fmt.Sprintf("\n  Terminal too narrow (%d cols)\n\n  tburn needs at least %d columns.\n",
			a.width, minTerminalWidth)
	}
	if a.status == nil {
		return a.viewLoading()
	}
	if a.showHelp {
		return a.viewHelp()
	}
	return a.viewMain()
}

func (a App) viewLoading() string {
	t := theme.Active

	cardStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.BorderAccent).
		Padding(1, 3)

	logoStyle := lipgloss.NewStyle().Foreground(t.Accent).Bold(true)
	mutedStyle := lipgloss.NewStyle().Foreground(t.TextMuted)
	errStyle := lipgloss.NewStyle().Foreground(t.Red)

	var b strings.Builder
	b.WriteString(logoStyle.Render("◈ tburn"))
	b.WriteString(mutedStyle.Render(" · Tibber metrics"))
	b.WriteString("\n\n")
	b.WriteString(a.spinner.View())
	b.WriteString(mutedStyle.Render(" Waiting for daemon..."))
	if a.err != nil {
		b.WriteString("\n\n")
		b.WriteString(errStyle.Render(a.err.Error()))
		b.WriteString("\n")
		b.WriteString(mutedStyle.Render("Start it with: tburn daemon --detach"))
	}

	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, cardStyle.Render(b.String()))
}

func (a App) viewHelp() string {
	t := theme.Active
	keyStyle := lipgloss.NewStyle().Foreground(t.Accent).Bold(true)
	descStyle := lipgloss.NewStyle().Foreground(t.TextMuted)

	rows := [][2]string{
		{"o p s e", "switch tab"},
		{"tab / ←→", "next / previous tab"},
		{"j k", "scroll events"},
		{"r", "refresh all fetchers now"},
		{"?", "toggle help"},
		{"q", "quit"},
	}
	var b strings.Builder
	for _, r := range rows {
		b.WriteString(keyStyle.Render(fmt.Sprintf("%-10s", r[0])))
		b.WriteString(descStyle.Render(r[1]))
		b.WriteString("\n")
	}
	card := components.ContentCard("Keys", strings.TrimRight(b.String(), "\n"), 44)
	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, card)
}

const (
	overviewTab = iota
	pricesTab
	scheduleTab
	eventsTab
)

func (a App) viewMain() string {
	cw := a.contentWidth()

	var body string
	switch a.activeTab {
	case overviewTab:
		body = a.renderOverview(cw)
	case pricesTab:
		body = a.renderPrices(cw)
	case scheduleTab:
		body = a.renderSchedule(cw)
	case eventsTab:
		body = a.renderEvents(cw)
	}

	right := "updated " + cli.FormatRelative(a.lastPoll, a.now())
	if a.refreshing {
		right = a.spinner.View() + " refreshing"
	}
	if a.err != nil {
		right = lipgloss.NewStyle().Foreground(theme.Active.Red).Render("poll failed: " + a.err.Error())
	}

	header := components.RenderTabBar(a.activeTab, cw)
	footer := components.RenderStatusBar(cw, right)

	bodyHeight := a.height - lipgloss.Height(header) - lipgloss.Height(footer) - 1
	return header + "\n" + fitHeight(body, bodyHeight) + "\n" + footer
}

func (a App) renderOverview(cw int) string {
	snap := a.status.Snapshot
	if snap == nil {
		return lipgloss.NewStyle().Foreground(theme.Active.TextMuted).Render("\n  No snapshot published yet.")
	}

	deltas := a.latestDeltas()
	var cards []components.Card
	for _, d := range model.Metrics {
		if !snap.IsEnabled(d.Key) {
			continue
		}
		c := components.Card{
			Label:   d.Name,
			Value:   cli.FormatMetric(snap, d.Key),
			Missing: snap.Value(d.Key) == nil,
		}
		if delta, ok := deltas[d.Key]; ok {
			c.Delta = cli.FormatDelta(delta)
		}
		cards = append(cards, c)
	}

	var rows []string
	for i := 0; i < len(cards); i += cardsPerRow {
		end := i + cardsPerRow
		if end > len(cards) {
			end = len(cards)
		}
		rows = append(rows, components.MetricCardRow(cards[i:end], cw))
	}

	if peak := peakBody(snap.Peak, a.loc); peak != "" {
		rows = append(rows, components.ContentCard("Peak hours this month", peak, cw))
	}

	title := snap.Home.Name
	if title == "" {
		title = snap.Home.ID
	}
	if snap.PricesTomorrow {
		title += "  ·  tomorrow's prices available"
	}
	head := lipgloss.NewStyle().Foreground(theme.Active.TextMuted).Render(" " + title)
	return head + "\n" + strings.Join(rows, "\n")
}

// latestDeltas returns the changes from the newest metrics_delta event.
func (a App) latestDeltas() map[model.MetricKey]float64 {
	for i := len(a.events) - 1; i >= 0; i-- {
		if a.events[i].Type == daemon.EventMetricsDelta {
			return a.events[i].Delta.Changed
		}
	}
	return nil
}

func peakBody(peak *model.PeakAttrs, loc *time.Location) string {
	if peak == nil {
		return ""
	}
	var lines []string
	for i, d := range peak.Dates {
		if i >= len(peak.Consumptions) {
			break
		}
		lines = append(lines, fmt.Sprintf("%d. %s  %s", i+1, cli.FormatHour(d, loc), cli.FormatKWh(peak.Consumptions[i])))
	}
	return strings.Join(lines, "\n")
}

func (a App) renderPrices(cw int) string {
	snap := a.status.Snapshot
	muted := lipgloss.NewStyle().Foreground(theme.Active.TextMuted)
	if snap == nil || !snap.IsEnabled(model.GridPrice) {
		return muted.Render("\n  Grid prices are not configured. Add tibber.email and tibber.password.")
	}
	now := a.now().In(a.loc)
	points := cli.GridSeries(snap.GridPrices, now, a.loc)
	if len(points) < 2 {
		return muted.Render("\n  No grid prices for today yet.")
	}
	chart := cli.RenderPriceChart("Grid price today", points, snap.Home.PriceUnit, now)
	return components.ContentCard("", strings.TrimRight(chart, "\n"), cw)
}

func (a App) renderSchedule(cw int) string {
	st := a.status
	var b strings.Builder
	b.WriteString(cli.RenderSchedule(st.Schedule, a.now()))

	info := []string{
		fmt.Sprintf("Ticks       %s every %ds", cli.FormatNumber(st.TickCount), st.TickIntervalSec),
		fmt.Sprintf("Started     %s", cli.FormatRelative(st.StartedAt, a.now())),
		fmt.Sprintf("Subscribers %d", st.SubscriberCount),
	}
	sinks := "none"
	if len(st.Sinks) > 0 {
		sinks = strings.Join(st.Sinks, ", ")
	}
	info = append(info, "Sinks       "+sinks)
	if st.Snapshot != nil {
		info = append(info, fmt.Sprintf("Ledger      %d hours", st.Snapshot.LedgerSize))
	}
	b.WriteString(components.ContentCard("Daemon", strings.Join(info, "\n"), cw))
	return b.String()
}

func (a App) renderEvents(cw int) string {
	t := theme.Active
	if len(a.events) == 0 {
		return lipgloss.NewStyle().Foreground(t.TextMuted).Render("\n  No events yet.")
	}

	typeStyle := lipgloss.NewStyle().Foreground(t.Accent)
	errStyle := lipgloss.NewStyle().Foreground(t.Red)
	timeStyle := lipgloss.NewStyle().Foreground(t.TextDim)

	var lines []string
	for i := len(a.events) - 1 - a.eventScroll; i >= 0; i-- {
		ev := a.events[i]
		line := timeStyle.Render(ev.Timestamp.In(a.loc).Format("15:04:05")) + "  " +
			typeStyle.Render(fmt.Sprintf("%-15s", ev.Type)) + " "
		if ev.Type == daemon.EventFetchError {
			line += errStyle.Render(ev.Fetcher + ": " + ev.Error)
		} else {
			line += describeDelta(ev.Delta)
		}
		lines = append(lines, lipgloss.NewStyle().MaxWidth(cw).Render(line))
	}
	return strings.Join(lines, "\n")
}

func describeDelta(d daemon.Delta) string {
	var parts []string
	keys := make([]string, 0, len(d.Changed))
	for k := range d.Changed {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, k+" "+cli.FormatDelta(d.Changed[model.MetricKey(k)]))
	}
	for _, k := range d.Appeared {
		parts = append(parts, string(k)+" appeared")
	}
	for _, k := range d.Vanished {
		parts = append(parts, string(k)+" unknown")
	}
	return strings.Join(parts, ", ")
}

func fitHeight(s string, h int) string {
	if h <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) > h {
		lines = lines[:h]
	}
	for len(lines) < h {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

func pollCmd(src Source, now func() time.Time) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), pollTimeout)
		defer cancel()

		st, err := src.Status(ctx)
		if err != nil {
			return StatusMsg{Err: err, At: now()}
		}
		events, err := src.Events(ctx)
		if err != nil {
			return StatusMsg{Err: err, At: now()}
		}
		return StatusMsg{Status: st, Events: events, At: now()}
	}
}

func refreshCmd(src Source) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		_, err := src.Refresh(ctx)
		return RefreshedMsg{Err: err}
	}
}
