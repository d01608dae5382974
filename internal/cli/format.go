// Package cli provides formatting and rendering utilities for terminal output.
package cli

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/theirongolddev/tburn/internal/model"
)

// Unknown is shown in place of an absent metric.
const Unknown = "unknown"

// FormatValue formats an optional metric value with its unit.
// e.g., 0.4231, "NOK/kWh" -> "0.42 NOK/kWh"; nil -> "unknown"
func FormatValue(v *float64, unit string) string {
	if v == nil {
		return Unknown
	}
	s := strconv.FormatFloat(math.Round(*v*100)/100, 'f', 2, 64)
	if unit == "" {
		return s
	}
	return s + " " + unit
}

// FormatMetric formats the value of key in snap using the home's units.
func FormatMetric(snap *model.Snapshot, key model.MetricKey) string {
	desc, ok := model.Describe(key)
	if !ok || snap == nil {
		return Unknown
	}
	return FormatValue(snap.Value(key), snap.Home.UnitLabel(desc.Unit))
}

// FormatKWh formats an energy amount.
func FormatKWh(kwh float64) string {
	if kwh >= 1000 {
		return FormatNumber(int64(math.Round(kwh))) + " kWh"
	}
	return fmt.Sprintf("%.2f kWh", kwh)
}

// FormatNumber adds comma separators to an integer.
// e.g., 1234567 -> "1,234,567"
func FormatNumber(n int64) string {
	if n < 0 {
		return "-" + FormatNumber(-n)
	}

	s := strconv.FormatInt(n, 10)
	if len(s) <= 3 {
		return s
	}

	var result strings.Builder
	remainder := len(s) % 3
	if remainder > 0 {
		result.WriteString(s[:remainder])
	}
	for i := remainder; i < len(s); i += 3 {
		if result.Len() > 0 {
			result.WriteByte(',')
		}
		result.WriteString(s[i : i+3])
	}
	return result.String()
}

// FormatDelta formats a signed change with two decimals.
func FormatDelta(delta float64) string {
	if delta >= 0 {
		return fmt.Sprintf("+%.2f", delta)
	}
	return fmt.Sprintf("-%.2f", -delta)
}

// FormatRelative describes t relative to now, e.g. "3 minutes from now".
func FormatRelative(t, now time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

// FormatHour formats an hour in loc as "Mon 15:00".
func FormatHour(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	return FormatDayOfWeek(int(t.Weekday())) + " " + t.Format("15:04")
}

// FormatDayOfWeek returns a 3-letter day abbreviation from a weekday number.
func FormatDayOfWeek(weekday int) string {
	days := []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}
	if weekday >= 0 && weekday < 7 {
		return days[weekday]
	}
	return "???"
}
