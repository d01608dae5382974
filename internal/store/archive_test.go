package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/theirongolddev/tburn/internal/model"
)

func openTest(t *testing.T) *Archive {
	t.Helper()
	a, err := Open(filepath.Join(t.TempDir(), "nested", "archive.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func snap(at time.Time, subsidy *float64, peak float64) *model.Snapshot {
	return &model.Snapshot{
		At:   at,
		Home: model.HomeInfo{ID: "home-1"},
		Values: map[model.MetricKey]*float64{
			model.EstSubsidy:      subsidy,
			model.PeakConsumption: model.Float(peak),
		},
		Enabled: []model.MetricKey{model.PeakConsumption, model.EstSubsidy},
		Peak: &model.PeakAttrs{
			Dates:        []time.Time{at.Truncate(time.Hour), at.Truncate(time.Hour).Add(-24 * time.Hour)},
			Consumptions: []float64{peak + 1, peak - 1},
		},
	}
}

func TestHistory_LatestPerDay(t *testing.T) {
	a := openTest(t)
	ctx := context.Background()

	if _, err := a.History(ctx, 7); !errors.Is(err, ErrNoHistory) {
		t.Fatalf("History on empty archive: err = %v, want ErrNoHistory", err)
	}

	d1 := time.Date(2025, 3, 9, 10, 0, 0, 0, time.UTC)
	d2 := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	for _, s := range []*model.Snapshot{
		snap(d1, model.Float(0.1), 3),
		snap(d1.Add(2*time.Hour), model.Float(0.2), 4),
		snap(d2, nil, 5),
	} {
		if err := a.Publish(ctx, s); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}

	n, err := a.SnapshotCount(ctx)
	if err != nil || n != 3 {
		t.Fatalf("SnapshotCount() = %d, %v, want 3", n, err)
	}

	days, err := a.History(ctx, 7)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(days) != 2 {
		t.Fatalf("days = %d, want 2", len(days))
	}
	if days[0].Day != "2025-03-10" || days[1].Day != "2025-03-09" {
		t.Fatalf("days = [%s, %s], want newest first", days[0].Day, days[1].Day)
	}
	if v, ok := days[0].Values[model.EstSubsidy]; !ok || v != nil {
		t.Fatalf("absent subsidy = %v, %v, want stored NULL", v, ok)
	}
	if v := days[1].Values[model.EstSubsidy]; v == nil || *v != 0.2 {
		t.Fatalf("2025-03-09 subsidy = %v, want latest 0.2", v)
	}
	if p := days[1].Peak; p == nil || len(p.Consumptions) != 2 || p.Consumptions[0] != 5 {
		t.Fatalf("2025-03-09 peak = %+v, want [5 3]", p)
	}

	days, err = a.History(ctx, 1)
	if err != nil || len(days) != 1 {
		t.Fatalf("History(1) = %d days, %v", len(days), err)
	}
}

func TestPublish_SameInstantReplaces(t *testing.T) {
	a := openTest(t)
	ctx := context.Background()
	at := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

	if err := a.Publish(ctx, snap(at, model.Float(0.1), 3)); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := a.Publish(ctx, snap(at, model.Float(0.3), 3)); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	days, err := a.History(ctx, 7)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if v := days[0].Values[model.EstSubsidy]; v == nil || *v != 0.3 {
		t.Fatalf("subsidy = %v, want 0.3", v)
	}
	if len(days[0].Peak.Dates) != 2 {
		t.Fatalf("peak rows = %d, want 2", len(days[0].Peak.Dates))
	}
}
