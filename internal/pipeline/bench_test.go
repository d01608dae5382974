package pipeline

import (
	"testing"
	"time"

	"github.com/theirongolddev/tburn/internal/config"
	"github.com/theirongolddev/tburn/internal/model"
)

// monthOfRecords returns one record per hour from March 1 until now.
func monthOfRecords(now time.Time) []model.Record {
	var recs []model.Record
	for ts := time.Date(2025, time.March, 1, 0, 0, 0, 0, now.Location()); ts.Before(now); ts = ts.Add(time.Hour) {
		recs = append(recs, model.NewRecord(ts,
			model.Float(float64(ts.Hour()*ts.Day()%17)/4),
			model.Float(1.2),
			model.Float(float64(ts.Hour())/3)))
	}
	return recs
}

func BenchmarkLedgerReplay(b *testing.B) {
	now := time.Date(2025, time.March, 31, 12, 0, 0, 0, time.UTC)
	recs := monthOfRecords(now)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		l := NewLedger(now, time.UTC)
		for _, r := range recs {
			l.Add(r)
		}
	}
}

func BenchmarkPeakObserve(b *testing.B) {
	now := time.Date(2025, time.March, 31, 12, 0, 0, 0, time.UTC)
	recs := monthOfRecords(now)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p := NewPeakTracker(time.UTC)
		for _, r := range recs {
			p.Observe(r)
		}
	}
}

func BenchmarkCompute(b *testing.B) {
	loc := time.UTC
	now := time.Date(2025, time.March, 31, 12, 0, 0, 0, loc)
	l := NewLedger(now, loc)
	p := NewPeakTracker(loc)
	for _, r := range monthOfRecords(now) {
		l.Add(r)
		p.Observe(r)
	}
	recs := l.Records()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Compute(Inputs{Now: now, Location: loc, Records: recs, Peak: p, Subsidy: config.DefaultSubsidy})
	}
}
