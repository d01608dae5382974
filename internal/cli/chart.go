package cli

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/guptarohit/asciigraph"
)

// PricePoint is one hourly price.
type PricePoint struct {
	Hour  time.Time
	Price float64
}

// PriceSeries parses prices keyed by ISO-8601 start time and keeps the ones
// on the same local day as day, in hour order. Unparseable keys are skipped.
func PriceSeries(prices map[string]float64, day time.Time, loc *time.Location) []PricePoint {
	if loc == nil {
		loc = time.Local
	}
	y, m, d := day.In(loc).Date()

	var out []PricePoint
	for startsAt, price := range prices {
		t, err := time.Parse(time.RFC3339, startsAt)
		if err != nil {
			continue
		}
		ty, tm, td := t.In(loc).Date()
		if ty != y || tm != m || td != d {
			continue
		}
		out = append(out, PricePoint{Hour: t, Price: price})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hour.Before(out[j].Hour) })
	return out
}

// GridSeries converts hour-keyed grid prices for the local day of day.
func GridSeries(prices map[time.Time]float64, day time.Time, loc *time.Location) []PricePoint {
	keyed := make(map[string]float64, len(prices))
	for h, p := range prices {
		keyed[h.Format(time.RFC3339)] = p
	}
	return PriceSeries(keyed, day, loc)
}

// RenderPriceChart draws an hourly price line chart. The current hour is
// called out in the caption.
func RenderPriceChart(title string, points []PricePoint, unit string, now time.Time) string {
	if len(points) < 2 {
		return ""
	}
	data := make([]float64, len(points))
	current := -1
	for i, p := range points {
		data[i] = p.Price
		if !now.Before(p.Hour) && now.Before(p.Hour.Add(time.Hour)) {
			current = i
		}
	}

	caption := fmt.Sprintf("%s (%s), %02d:00 to %02d:00",
		title, unit, points[0].Hour.In(now.Location()).Hour(), points[len(points)-1].Hour.In(now.Location()).Hour()+1)
	if current >= 0 {
		caption += fmt.Sprintf(", now %.2f", data[current])
	}

	graph := asciigraph.Plot(data,
		asciigraph.Height(8),
		asciigraph.Width(len(data)*2),
		asciigraph.Precision(2),
		asciigraph.Caption(caption),
	)

	var b strings.Builder
	b.WriteString("  ")
	b.WriteString(headerStyle.Render(title))
	b.WriteString("\n")
	b.WriteString(graph)
	b.WriteString("\n")
	return b.String()
}
