package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/theirongolddev/tburn/internal/logger"
	"github.com/theirongolddev/tburn/internal/pipeline"
)

// GridPriceFetcherID identifies the grid tariff fetcher.
const GridPriceFetcherID = "grid_price"

const gridRetry = 2 * time.Minute

// GridPriceFetcher keeps an app token and refreshes the grid tariffs of one
// home twice a day.
type GridPriceFetcher struct {
	source   GridSource
	email    string
	password string
	homeID   func() string
	loc      *time.Location

	token string
}

// NewGridPriceFetcher creates the fetcher. homeID is consulted on every
// fetch so a home resolved after startup is picked up.
func NewGridPriceFetcher(source GridSource, email, password string, homeID func() string, loc *time.Location) *GridPriceFetcher {
	if loc == nil {
		loc = time.Local
	}
	return &GridPriceFetcher{source: source, email: email, password: password, homeID: homeID, loc: loc}
}

// ID implements Fetcher.
func (f *GridPriceFetcher) ID() string { return GridPriceFetcherID }

// Fetch implements Fetcher.
func (f *GridPriceFetcher) Fetch(ctx context.Context, _ pipeline.View, now time.Time) Result {
	if f.token == "" {
		token, err := f.source.Authenticate(ctx, f.email, f.password)
		if err != nil {
			return Result{NextDue: now.Add(gridRetry), Err: fmt.Errorf("app login: %w", err)}
		}
		f.token = token
	}

	resp, err := f.source.FetchGridPrices(ctx, f.token)
	if err != nil {
		f.token = ""
		return Result{NextDue: now.Add(gridRetry), Err: fmt.Errorf("grid prices: %w", err)}
	}

	next := NextGridDue(now, f.loc)
	homeID := f.homeID()
	entries, ok := resp.ForHome(homeID)
	if !ok {
		logger.Warn("home missing from grid price response", "home_id", homeID)
		return Result{NextDue: next}
	}

	prices := make(map[time.Time]float64, len(entries))
	for _, e := range entries {
		prices[pipeline.HourKey(e.Time)] = e.GridPrice
	}
	return Result{
		Mutations: []Mutation{SetGridPrices{Prices: prices}},
		NextDue:   next,
	}
}

// NextGridDue returns 15:00 today before 15:00, else the next midnight.
func NextGridDue(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	local := now.In(loc)
	y, m, d := local.Date()
	if local.Hour() < 15 {
		return time.Date(y, m, d, 15, 0, 0, 0, loc)
	}
	return time.Date(y, m, d+1, 0, 0, 0, 0, loc)
}
