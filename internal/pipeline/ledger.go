// Package pipeline folds hourly consumption records into the active month
// and derives the published metrics from them.
package pipeline

import (
	"sort"
	"time"

	"github.com/theirongolddev/tburn/internal/model"
)

// View is the read-only side of a Ledger handed to fetchers.
type View interface {
	Records() []model.Record
	Len() int
	Month() (int, time.Month)
	Location() *time.Location
}

// Ledger holds at most one record per hour of a single calendar month.
// Inserting a record for an hour already present merges field by field.
type Ledger struct {
	loc    *time.Location
	year   int
	month  time.Month
	byHour map[int64]model.Record
}

// NewLedger returns an empty ledger scoped to the month containing now in loc.
func NewLedger(now time.Time, loc *time.Location) *Ledger {
	if loc == nil {
		loc = time.Local
	}
	local := now.In(loc)
	return &Ledger{
		loc:    loc,
		year:   local.Year(),
		month:  local.Month(),
		byHour: make(map[int64]model.Record),
	}
}

// InMonth reports whether t falls in the ledger's month.
func (l *Ledger) InMonth(t time.Time) bool {
	local := t.In(l.loc)
	return local.Year() == l.year && local.Month() == l.month
}

// Add folds r into the ledger. Records outside the active month are
// rejected and Add reports false.
func (l *Ledger) Add(r model.Record) bool {
	if !l.InMonth(r.Timestamp) {
		return false
	}
	r.Timestamp = r.Timestamp.Truncate(time.Hour)
	key := r.Timestamp.Unix()
	if existing, ok := l.byHour[key]; ok {
		l.byHour[key] = existing.Merge(r)
		return true
	}
	l.byHour[key] = r
	return true
}

// Get returns the record for the hour containing t.
func (l *Ledger) Get(t time.Time) (model.Record, bool) {
	r, ok := l.byHour[t.Truncate(time.Hour).Unix()]
	return r, ok
}

// Records returns a copy of the ledger sorted by timestamp.
func (l *Ledger) Records() []model.Record {
	out := make([]model.Record, 0, len(l.byHour))
	for _, r := range l.byHour {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// Len returns the number of distinct hours held.
func (l *Ledger) Len() int {
	return len(l.byHour)
}

// Month returns the active year and month.
func (l *Ledger) Month() (int, time.Month) {
	return l.year, l.month
}

// Location returns the zone used for month and day boundaries.
func (l *Ledger) Location() *time.Location {
	return l.loc
}
