package cli

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/theirongolddev/tburn/internal/coordinator"
	"github.com/theirongolddev/tburn/internal/model"
)

// RenderSnapshot renders the enabled metrics of snap as a table.
func RenderSnapshot(snap *model.Snapshot) string {
	if snap == nil {
		return mutedStyle.Render("  No snapshot published yet.") + "\n"
	}
	t := Table{
		Title:      snapshotTitle(snap),
		Headers:    []string{"Metric", "Value"},
		AlignRight: true,
	}
	for _, d := range model.Metrics {
		if !snap.IsEnabled(d.Key) {
			continue
		}
		value := FormatMetric(snap, d.Key)
		if snap.Value(d.Key) == nil {
			value = dimStyle.Render(value)
		}
		t.Rows = append(t.Rows, []string{d.Name, value})
	}
	return RenderTable(t)
}

func snapshotTitle(snap *model.Snapshot) string {
	name := snap.Home.Name
	if name == "" {
		name = snap.Home.ID
	}
	if name == "" {
		name = "Home"
	}
	title := fmt.Sprintf("%s  %s", name, snap.At.Format("2006-01-02 15:04"))
	if snap.PricesTomorrow {
		title += "  (tomorrow's prices available)"
	}
	return title
}

// RenderPeaks renders the top consumption hours.
func RenderPeaks(peak *model.PeakAttrs, loc *time.Location) string {
	if peak == nil || len(peak.Dates) == 0 {
		return ""
	}
	t := Table{
		Title:      "Peak Hours",
		Headers:    []string{"Hour", "Consumption"},
		AlignRight: true,
	}
	for i, d := range peak.Dates {
		if i >= len(peak.Consumptions) {
			break
		}
		hour := d
		if loc != nil {
			hour = d.In(loc)
		}
		t.Rows = append(t.Rows, []string{
			hour.Format("2006-01-02 15:04"),
			FormatKWh(peak.Consumptions[i]),
		})
	}
	return RenderTable(t)
}

// RenderSchedule renders each fetcher's next run relative to now.
func RenderSchedule(entries []coordinator.ScheduleEntry, now time.Time) string {
	if len(entries) == 0 {
		return ""
	}
	sorted := make([]coordinator.ScheduleEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	t := Table{
		Title:   "Schedule",
		Headers: []string{"Fetcher", "Next run", "Last run", "Last error"},
	}
	for _, e := range sorted {
		lastErr := goodStyle.Render("ok")
		switch {
		case e.LastRun.IsZero():
			lastErr = dimStyle.Render("-")
		case e.LastError != "":
			lastErr = errStyle.Render(truncate(e.LastError, 48))
		}
		next := FormatRelative(e.NextDue, now)
		if !e.NextDue.After(now) {
			next = warnStyle.Render("due")
		}
		t.Rows = append(t.Rows, []string{e.ID, next, FormatRelative(e.LastRun, now), lastErr})
	}
	return RenderTable(t)
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
