// Package model defines domain types for tburn consumption records and metrics.
package model

import (
	"fmt"
	"sort"
	"time"
)

// Record is one hourly consumption/price sample. Nil fields are unknown.
type Record struct {
	Timestamp   time.Time
	Consumption *float64 // kWh
	UnitPrice   *float64
	Cost        *float64
}

// NewRecord returns a record truncated to its hour.
func NewRecord(ts time.Time, consumption, unitPrice, cost *float64) Record {
	return Record{
		Timestamp:   ts.Truncate(time.Hour),
		Consumption: consumption,
		UnitPrice:   unitPrice,
		Cost:        cost,
	}
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

// SameHour reports whether two records share an identity.
// Value fields are not part of it.
func (r Record) SameHour(o Record) bool {
	return r.Timestamp.Equal(o.Timestamp)
}

// Day returns the local calendar date of the record as midnight in loc.
func (r Record) Day(loc *time.Location) time.Time {
	return DayOf(r.Timestamp, loc)
}

// DayOf returns midnight of t's calendar date in loc.
func DayOf(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// HasUsage reports whether both cost and consumption are known.
func (r Record) HasUsage() bool {
	return r.Cost != nil && r.Consumption != nil
}

// Merge overlays the known fields of o onto r. Unknown fields in o keep
// the value already in r. A price-only o never replaces a unit price that
// r already carries, so a metered hour keeps its billed price.
func (r Record) Merge(o Record) Record {
	if o.Consumption != nil {
		r.Consumption = o.Consumption
	}
	if o.UnitPrice != nil && (r.UnitPrice == nil || !o.priceOnly()) {
		r.UnitPrice = o.UnitPrice
	}
	if o.Cost != nil {
		r.Cost = o.Cost
	}
	return r
}

func (r Record) priceOnly() bool {
	return r.Consumption == nil && r.Cost == nil
}

func (r Record) String() string {
	return fmt.Sprintf("Record(%s, %s, %s, %s)",
		r.Timestamp.Format(time.RFC3339), fmtOpt(r.Consumption), fmtOpt(r.UnitPrice), fmtOpt(r.Cost))
}

func fmtOpt(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}

// Compare orders records for peak selection. A record with unknown
// consumption ranks below any record with known consumption. Equal or
// unknown consumptions fall back to timestamp order, so the order is total.
func Compare(a, b Record) int {
	switch {
	case a.Consumption == nil && b.Consumption == nil:
		return a.Timestamp.Compare(b.Timestamp)
	case a.Consumption == nil:
		return -1
	case b.Consumption == nil:
		return 1
	case *a.Consumption < *b.Consumption:
		return -1
	case *a.Consumption > *b.Consumption:
		return 1
	}
	return a.Timestamp.Compare(b.Timestamp)
}

// SortDesc sorts records from highest to lowest by Compare.
func SortDesc(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return Compare(records[i], records[j]) > 0
	})
}

// SumConsumption adds up known consumption. ok is false if none was known.
func SumConsumption(records []Record) (sum float64, ok bool) {
	for _, r := range records {
		if r.Consumption != nil {
			sum += *r.Consumption
			ok = true
		}
	}
	return sum, ok
}

// SumCost adds up known cost. ok is false if none was known.
func SumCost(records []Record) (sum float64, ok bool) {
	for _, r := range records {
		if r.Cost != nil {
			sum += *r.Cost
			ok = true
		}
	}
	return sum, ok
}

// MeanPrice averages known unit prices. ok is false if none was known.
func MeanPrice(records []Record) (mean float64, ok bool) {
	var total float64
	n := 0
	for _, r := range records {
		if r.UnitPrice == nil {
			continue
		}
		total += *r.UnitPrice
		n++
	}
	if n == 0 {
		return 0, false
	}
	return total / float64(n), true
}
