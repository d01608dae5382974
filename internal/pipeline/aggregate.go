package pipeline

import (
	"time"

	"github.com/theirongolddev/tburn/internal/config"
	"github.com/theirongolddev/tburn/internal/model"
)

// Inputs is everything Compute derives metrics from.
type Inputs struct {
	Now        time.Time
	Location   *time.Location
	Records    []model.Record
	Peak       *PeakTracker
	LivePrices map[time.Time]float64 // hour (UTC) -> total price
	GridPrices map[time.Time]float64 // hour (UTC) -> grid price
	Subsidy    config.SubsidyParams
}

// HourKey normalizes t to the map key used for hour-indexed prices.
func HourKey(t time.Time) time.Time {
	return t.Truncate(time.Hour).UTC()
}

// Compute derives every metric from in. Metrics whose operands are
// missing are nil. Values are not rounded.
func Compute(in Inputs) map[model.MetricKey]*float64 {
	loc := in.Location
	if loc == nil {
		loc = time.Local
	}
	out := make(map[model.MetricKey]*float64, len(model.Metrics))

	if in.Peak != nil {
		if mean, ok := in.Peak.Mean(); ok {
			out[model.PeakConsumption] = model.Float(mean)
		}
	}

	// S: records with both cost and consumption known.
	var usage []model.Record
	for _, r := range in.Records {
		if r.HasUsage() {
			usage = append(usage, r)
		}
	}

	if mean, ok := model.MeanPrice(usage); ok {
		out[model.MonthlyAvgPrice] = model.Float(mean)
	}

	var subsidy *float64
	if mean, ok := model.MeanPrice(in.Records); ok {
		subsidy = model.Float(in.Subsidy.Estimate(mean))
	}
	out[model.EstSubsidy] = subsidy

	if cost, ok := model.SumCost(usage); ok {
		if cons, _ := model.SumConsumption(usage); cons != 0 {
			out[model.CustomerAvgPrice] = model.Float(cost / cons)
		}
	}

	today := model.DayOf(in.Now, loc)
	var usageToday []model.Record
	for _, r := range usage {
		if r.Day(loc).Equal(today) {
			usageToday = append(usageToday, r)
		}
	}
	out[model.DailyCostWithSubsidy] = costWithSubsidy(usageToday, subsidy)
	out[model.MonthlyCostWithSubsidy] = costWithSubsidy(usage, subsidy)

	hour := HourKey(in.Now)
	live, liveOK := in.LivePrices[hour]
	grid, gridOK := in.GridPrices[hour]

	if gridOK {
		out[model.GridPrice] = model.Float(grid)
	}
	if liveOK && subsidy != nil {
		out[model.EstCurrentPriceWithSubsidy] = model.Float(live - *subsidy)
		if gridOK {
			out[model.TotalPriceWithSubsidy] = model.Float(grid + live - *subsidy)
		}
	}

	return out
}

// costWithSubsidy is Σcost − subsidy×Σconsumption over records, or nil when
// records is empty or the subsidy is unknown.
func costWithSubsidy(records []model.Record, subsidy *float64) *float64 {
	if len(records) == 0 || subsidy == nil {
		return nil
	}
	cost, _ := model.SumCost(records)
	cons, _ := model.SumConsumption(records)
	return model.Float(cost - *subsidy*cons)
}
