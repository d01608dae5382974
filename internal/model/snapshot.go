package model

import (
	"encoding/json"
	"math"
	"sort"
	"time"
)

// MetricKey names a published metric.
type MetricKey string

// Published metric keys.
const (
	PeakConsumption            MetricKey = "peak_consumption"
	MonthlyAvgPrice            MetricKey = "monthly_avg_price"
	CustomerAvgPrice           MetricKey = "customer_avg_price"
	EstSubsidy                 MetricKey = "est_subsidy"
	EstCurrentPriceWithSubsidy MetricKey = "est_current_price_with_subsidy"
	DailyCostWithSubsidy       MetricKey = "daily_cost_with_subsidy"
	MonthlyCostWithSubsidy     MetricKey = "monthly_cost_with_subsidy"
	TotalPriceWithSubsidy      MetricKey = "total_price_with_subsidy"
	GridPrice                  MetricKey = "grid_price"
)

// UnitKind selects which unit label a metric is displayed with.
type UnitKind int

const (
	UnitPrice UnitKind = iota // home price unit, e.g. NOK/kWh
	UnitEnergy
	UnitMonetary // home currency
)

// MetricDescription holds display metadata for a metric.
type MetricDescription struct {
	Key  MetricKey
	Name string
	Unit UnitKind
}

// Metrics lists every metric in display order.
var Metrics = []MetricDescription{
	{PeakConsumption, "Average of 3 highest hourly consumption", UnitEnergy},
	{MonthlyAvgPrice, "Monthly avg price", UnitPrice},
	{CustomerAvgPrice, "Monthly avg customer price", UnitPrice},
	{EstSubsidy, "Estimated subsidy", UnitPrice},
	{EstCurrentPriceWithSubsidy, "Estimated price with subsidy", UnitPrice},
	{DailyCostWithSubsidy, "Daily cost with subsidy", UnitMonetary},
	{MonthlyCostWithSubsidy, "Monthly cost with subsidy", UnitMonetary},
	{TotalPriceWithSubsidy, "Estimated total price with subsidy and grid price", UnitPrice},
	{GridPrice, "Grid price", UnitPrice},
}

// Describe returns the description for key.
func Describe(key MetricKey) (MetricDescription, bool) {
	for _, d := range Metrics {
		if d.Key == key {
			return d, true
		}
	}
	return MetricDescription{}, false
}

// HomeInfo identifies the home a coordinator serves.
type HomeInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Currency  string `json:"currency"`
	PriceUnit string `json:"price_unit"`
}

// UnitLabel returns the display unit for kind.
func (h HomeInfo) UnitLabel(kind UnitKind) string {
	switch kind {
	case UnitEnergy:
		return "kWh"
	case UnitMonetary:
		return h.Currency
	default:
		return h.PriceUnit
	}
}

// PeakAttrs are the attributes attached to the peak consumption metric.
// Dates and Consumptions are parallel and ordered highest first.
type PeakAttrs struct {
	Dates        []time.Time `json:"peak_consumption_dates"`
	Consumptions []float64   `json:"peak_consumptions"`
}

// Snapshot is the published, read-only result of one coordinator tick.
type Snapshot struct {
	At             time.Time
	Home           HomeInfo
	Values         map[MetricKey]*float64
	Peak           *PeakAttrs
	GridPrices     map[time.Time]float64
	Enabled        []MetricKey
	PricesTomorrow bool
	LedgerSize     int
}

// Value returns the rounded value for key, or nil when absent.
func (s *Snapshot) Value(key MetricKey) *float64 {
	if s == nil {
		return nil
	}
	return s.Values[key]
}

// IsEnabled reports whether key is exposed for this home.
func (s *Snapshot) IsEnabled(key MetricKey) bool {
	if s == nil {
		return false
	}
	for _, k := range s.Enabled {
		if k == key {
			return true
		}
	}
	return false
}

// Round2 rounds v to two decimals. Nil stays nil.
func Round2(v *float64) *float64 {
	if v == nil {
		return nil
	}
	r := math.Round(*v*100) / 100
	return &r
}

type snapshotJSON struct {
	At             time.Time              `json:"at"`
	Home           HomeInfo               `json:"home"`
	Values         map[MetricKey]*float64 `json:"values"`
	Peak           *PeakAttrs             `json:"peak_consumption_attrs"`
	GridPrices     map[string]float64     `json:"grid_prices,omitempty"`
	Enabled        []MetricKey            `json:"enabled"`
	PricesTomorrow bool                   `json:"prices_tomorrow"`
	LedgerSize     int                    `json:"ledger_size"`
}

// MarshalJSON emits absent metrics as null and grid prices keyed by RFC 3339 hour.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	out := snapshotJSON{
		At:             s.At,
		Home:           s.Home,
		Values:         make(map[MetricKey]*float64, len(Metrics)),
		Peak:           s.Peak,
		Enabled:        s.Enabled,
		PricesTomorrow: s.PricesTomorrow,
		LedgerSize:     s.LedgerSize,
	}
	for _, key := range s.Enabled {
		out.Values[key] = s.Values[key]
	}
	if len(s.GridPrices) > 0 {
		out.GridPrices = make(map[string]float64, len(s.GridPrices))
		for hour, price := range s.GridPrices {
			out.GridPrices[hour.Format(time.RFC3339)] = price
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var in snapshotJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*s = Snapshot{
		At:             in.At,
		Home:           in.Home,
		Values:         in.Values,
		Peak:           in.Peak,
		Enabled:        in.Enabled,
		PricesTomorrow: in.PricesTomorrow,
		LedgerSize:     in.LedgerSize,
	}
	if s.Values == nil {
		s.Values = make(map[MetricKey]*float64)
	}
	if len(in.GridPrices) > 0 {
		s.GridPrices = make(map[time.Time]float64, len(in.GridPrices))
		for k, v := range in.GridPrices {
			t, err := time.Parse(time.RFC3339, k)
			if err != nil {
				continue
			}
			s.GridPrices[t] = v
		}
	}
	return nil
}

// SortedGridHours returns the grid price hours in ascending order.
func (s *Snapshot) SortedGridHours() []time.Time {
	hours := make([]time.Time, 0, len(s.GridPrices))
	for h := range s.GridPrices {
		hours = append(hours, h)
	}
	sort.Slice(hours, func(i, j int) bool { return hours[i].Before(hours[j]) })
	return hours
}
