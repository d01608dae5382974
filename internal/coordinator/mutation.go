package coordinator

import (
	"time"

	"github.com/theirongolddev/tburn/internal/model"
	"github.com/theirongolddev/tburn/internal/pipeline"
	"github.com/theirongolddev/tburn/internal/tibber"
)

// Mutation is a state change proposed by a fetcher and applied by the
// coordinator after the fetch returns.
type Mutation interface {
	apply(st *state)
}

// ReplaceLedger swaps in a freshly built ledger.
type ReplaceLedger struct {
	Ledger *pipeline.Ledger
}

func (m ReplaceLedger) apply(st *state) {
	if m.Ledger != nil {
		st.ledger = m.Ledger
	}
}

// SetPeak swaps in the peak tracker computed alongside the ledger.
type SetPeak struct {
	Tracker *pipeline.PeakTracker
}

func (m SetPeak) apply(st *state) {
	if m.Tracker != nil {
		st.peak = m.Tracker
	}
}

// SetLivePrices stores the hourly price totals and home flags from the
// latest price info.
type SetLivePrices struct {
	Prices         map[time.Time]float64
	RealTime       bool
	PricesTomorrow bool
	Home           tibber.HomeInfo
}

func (m SetLivePrices) apply(st *state) {
	st.live = m.Prices
	st.realtime = m.RealTime
	st.tomorrow = m.PricesTomorrow
	st.home = homeInfo(m.Home)
}

// SetGridPrices replaces the grid tariff map.
type SetGridPrices struct {
	Prices map[time.Time]float64
}

func (m SetGridPrices) apply(st *state) {
	st.grid = m.Prices
}

func homeInfo(h tibber.HomeInfo) model.HomeInfo {
	info := model.HomeInfo{ID: h.ID, Name: h.Name, Currency: h.Currency}
	if h.Currency != "" {
		info.PriceUnit = h.Currency + "/kWh"
	}
	return info
}
