package cli

import (
	"strings"

	"github.com/theirongolddev/tburn/internal/model"
	"github.com/theirongolddev/tburn/internal/store"
)

var historyColumns = []model.MetricKey{
	model.PeakConsumption,
	model.MonthlyAvgPrice,
	model.EstSubsidy,
	model.DailyCostWithSubsidy,
	model.MonthlyCostWithSubsidy,
}

// RenderHistory renders one row per archived day, newest first, followed by
// a subsidy sparkline in chronological order.
func RenderHistory(days []store.DaySummary) string {
	if len(days) == 0 {
		return mutedStyle.Render("  No archived snapshots.") + "\n"
	}

	t := Table{
		Title:      "Daily History",
		Headers:    []string{"Day"},
		AlignRight: true,
	}
	for _, key := range historyColumns {
		d, _ := model.Describe(key)
		t.Headers = append(t.Headers, shortName(d))
	}
	for _, day := range days {
		row := []string{day.Day}
		for _, key := range historyColumns {
			row = append(row, FormatValue(day.Values[key], ""))
		}
		t.Rows = append(t.Rows, row)
	}

	var b strings.Builder
	b.WriteString(RenderTable(t))

	var subsidy []float64
	for i := len(days) - 1; i >= 0; i-- {
		if v := days[i].Values[model.EstSubsidy]; v != nil {
			subsidy = append(subsidy, *v)
		}
	}
	if len(subsidy) > 1 {
		b.WriteString("  ")
		b.WriteString(mutedStyle.Render("Subsidy trend "))
		b.WriteString(RenderSparkline(subsidy))
		b.WriteString("\n")
	}
	return b.String()
}

func shortName(d model.MetricDescription) string {
	switch d.Key {
	case model.PeakConsumption:
		return "Peak kWh"
	case model.MonthlyAvgPrice:
		return "Avg price"
	case model.EstSubsidy:
		return "Subsidy"
	case model.DailyCostWithSubsidy:
		return "Day cost"
	case model.MonthlyCostWithSubsidy:
		return "Month cost"
	}
	return d.Name
}
