package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/theirongolddev/tburn/internal/logger"
	"github.com/theirongolddev/tburn/internal/model"
	"github.com/theirongolddev/tburn/internal/pipeline"
)

// ConsumptionFetcherID identifies the consumption and price fetcher.
const ConsumptionFetcherID = "consumption"

// Availability is what the last consumption fetch learned about data
// freshness. It drives NextConsumptionDue.
type Availability struct {
	RealTime       bool // home has a real-time meter
	LastHour       bool // the hour before now is in the history
	Yesterday      bool // some hour of yesterday is in the history
	PricesTomorrow bool // tomorrow's prices are published
}

// ConsumptionFetcher rebuilds the monthly ledger from the consumption
// history and the current price info.
type ConsumptionFetcher struct {
	source HistoricSource
	home   LiveHome
	loc    *time.Location

	// realtime is remembered from the last successful fetch.
	realtime bool
}

// NewConsumptionFetcher creates the fetcher.
func NewConsumptionFetcher(source HistoricSource, home LiveHome, loc *time.Location) *ConsumptionFetcher {
	if loc == nil {
		loc = time.Local
	}
	return &ConsumptionFetcher{source: source, home: home, loc: loc}
}

// ID implements Fetcher.
func (f *ConsumptionFetcher) ID() string { return ConsumptionFetcherID }

// Fetch implements Fetcher. On any error no mutations are returned and the
// next run is scheduled from the availability learned before the failure.
func (f *ConsumptionFetcher) Fetch(ctx context.Context, _ pipeline.View, now time.Time) Result {
	res, avail, err := f.fetch(ctx, now)
	if err != nil {
		avail.RealTime = f.realtime
		return Result{
			NextDue: NextConsumptionDue(now, f.loc, avail),
			Err:     err,
		}
	}
	return res
}

func (f *ConsumptionFetcher) fetch(ctx context.Context, now time.Time) (Result, Availability, error) {
	var avail Availability
	raw, err := f.source.FetchHistoricConsumption(ctx)
	if err != nil {
		return Result{}, avail, fmt.Errorf("consumption history: %w", err)
	}

	ledger := pipeline.NewLedger(now, f.loc)
	peak := pipeline.NewPeakTracker(f.loc)
	today := model.DayOf(now, f.loc)
	yesterday := today.AddDate(0, 0, -1)
	lastHour := now.Truncate(time.Hour).Add(-time.Hour)

	for _, h := range raw {
		if h.Consumption == nil {
			continue
		}
		rec := model.NewRecord(h.From, h.Consumption, h.UnitPrice, h.Cost)
		if !ledger.InMonth(rec.Timestamp) {
			continue
		}
		if rec.Day(f.loc).Equal(yesterday) {
			avail.Yesterday = true
		}
		if rec.Timestamp.Equal(lastHour) {
			avail.LastHour = true
		}
		ledger.Add(rec)
		peak.Observe(rec)
	}

	if err := f.home.UpdatePriceInfo(ctx); err != nil {
		return Result{}, avail, fmt.Errorf("price info: %w", err)
	}
	avail.RealTime = f.home.HasRealTimeConsumption()

	tomorrow := today.AddDate(0, 0, 1)
	live := make(map[time.Time]float64)
	for startsAt, total := range f.home.PriceTotal() {
		ts, err := time.Parse(time.RFC3339, startsAt)
		if err != nil {
			logger.Debug("skipping price with bad timestamp", "starts_at", startsAt, "error", err)
			continue
		}
		if model.DayOf(ts, f.loc).Equal(tomorrow) {
			avail.PricesTomorrow = true
		}
		live[pipeline.HourKey(ts)] = total
		if ledger.InMonth(ts) {
			ledger.Add(model.NewRecord(ts, nil, model.Float(total), nil))
		}
	}

	f.realtime = avail.RealTime
	return Result{
		Mutations: []Mutation{
			ReplaceLedger{Ledger: ledger},
			SetPeak{Tracker: peak},
			SetLivePrices{
				Prices:         live,
				RealTime:       avail.RealTime,
				PricesTomorrow: avail.PricesTomorrow,
				Home:           f.home.Info(),
			},
		},
		NextDue: NextConsumptionDue(now, f.loc, avail),
	}, avail, nil
}

// NextConsumptionDue returns when the consumption fetcher should run next.
// Data freshness picks a base time which is then capped by the daily price
// publication window around 13:00.
func NextConsumptionDue(now time.Time, loc *time.Location, a Availability) time.Time {
	if loc == nil {
		loc = time.Local
	}
	local := now.In(loc)
	y, m, d := local.Date()

	var next time.Time
	switch {
	case a.RealTime && a.LastHour:
		next = time.Date(y, m, d, local.Hour()+1, 2, 0, 0, loc)
	case a.RealTime:
		next = now.Add(2 * time.Minute)
	case a.Yesterday:
		next = time.Date(y, m, d+1, 3, 0, 0, 0, loc)
	default:
		next = now.Add(15 * time.Minute)
	}

	var limit time.Time
	switch {
	case a.PricesTomorrow:
		limit = time.Date(y, m, d+1, 13, 0, 0, 0, loc)
	case local.Hour() >= 13:
		limit = now.Add(2 * time.Minute)
	default:
		limit = time.Date(y, m, d, 13, 1, 0, 0, loc)
	}

	if limit.Before(next) {
		return limit
	}
	return next
}
