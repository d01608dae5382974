package pipeline

import (
	"time"

	"github.com/theirongolddev/tburn/internal/model"
)

// PeakSize is the number of distinct days the peak window averages over.
const PeakSize = 3

// PeakTracker keeps the highest-consumption hours of the month, at most one
// per local calendar day, sorted highest first.
type PeakTracker struct {
	loc     *time.Location
	entries []model.Record
}

// NewPeakTracker returns an empty tracker using loc for day boundaries.
func NewPeakTracker(loc *time.Location) *PeakTracker {
	if loc == nil {
		loc = time.Local
	}
	return &PeakTracker{loc: loc, entries: make([]model.Record, 0, PeakSize+1)}
}

// Observe offers r to the tracker. Records with unknown consumption are
// ignored.
func (p *PeakTracker) Observe(r model.Record) {
	if r.Consumption == nil {
		return
	}
	if len(p.entries) >= PeakSize && model.Compare(r, p.entries[len(p.entries)-1]) <= 0 {
		return
	}

	day := r.Day(p.loc)
	for i, e := range p.entries {
		if !e.Day(p.loc).Equal(day) {
			continue
		}
		if model.Compare(r, e) > 0 {
			p.entries[i] = r
			model.SortDesc(p.entries)
		}
		return
	}

	p.entries = append(p.entries, r)
	model.SortDesc(p.entries)
	if len(p.entries) > PeakSize {
		p.entries = p.entries[:PeakSize]
	}
}

// Entries returns a copy of the tracked records, highest first.
func (p *PeakTracker) Entries() []model.Record {
	out := make([]model.Record, len(p.entries))
	copy(out, p.entries)
	return out
}

// Len returns the number of tracked records.
func (p *PeakTracker) Len() int {
	return len(p.entries)
}

// Mean returns the average consumption of the tracked records.
func (p *PeakTracker) Mean() (float64, bool) {
	if len(p.entries) == 0 {
		return 0, false
	}
	sum, _ := model.SumConsumption(p.entries)
	return sum / float64(len(p.entries)), true
}

// Attrs returns the peak attributes, or nil when nothing is tracked.
func (p *PeakTracker) Attrs() *model.PeakAttrs {
	if len(p.entries) == 0 {
		return nil
	}
	attrs := &model.PeakAttrs{
		Dates:        make([]time.Time, len(p.entries)),
		Consumptions: make([]float64, len(p.entries)),
	}
	for i, e := range p.entries {
		attrs.Dates[i] = e.Timestamp.In(p.loc)
		attrs.Consumptions[i] = *e.Consumption
	}
	return attrs
}
