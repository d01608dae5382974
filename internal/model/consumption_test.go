package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func hour(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return ts
}

func TestCompare_HigherConsumptionSortsFirst(t *testing.T) {
	early := NewRecord(hour(t, "2025-03-01T01:00:00Z"), Float(4.0), nil, nil)
	late := NewRecord(hour(t, "2025-03-20T01:00:00Z"), Float(2.0), nil, nil)

	recs := []Record{late, early}
	SortDesc(recs)
	if recs[0].Timestamp != early.Timestamp {
		t.Fatalf("first = %s, want the 4.0 kWh record", recs[0])
	}

	recs = []Record{early, late}
	SortDesc(recs)
	if recs[0].Timestamp != early.Timestamp {
		t.Fatalf("first = %s, want the 4.0 kWh record regardless of input order", recs[0])
	}
}

func TestCompare_UnknownConsumptionRanksLowest(t *testing.T) {
	known := NewRecord(hour(t, "2025-03-01T01:00:00Z"), Float(0), nil, nil)
	unknown := NewRecord(hour(t, "2025-03-01T02:00:00Z"), nil, Float(1.2), nil)

	if Compare(unknown, known) >= 0 {
		t.Fatal("unknown consumption should rank below a known zero")
	}
	if Compare(known, unknown) <= 0 {
		t.Fatal("known consumption should rank above unknown")
	}
}

func TestCompare_BothUnknownByTimestamp(t *testing.T) {
	a := NewRecord(hour(t, "2025-03-01T01:00:00Z"), nil, nil, nil)
	b := NewRecord(hour(t, "2025-03-01T02:00:00Z"), nil, nil, nil)

	if Compare(a, b) >= 0 || Compare(b, a) <= 0 {
		t.Fatal("records with unknown consumption should order by timestamp")
	}
	if Compare(a, a) != 0 {
		t.Fatal("a record should compare equal to itself")
	}
}

func TestMerge_KeepsKnownFields(t *testing.T) {
	ts := hour(t, "2025-03-01T01:00:00Z")
	cons := NewRecord(ts, Float(1.5), Float(0.9), Float(1.35))
	priceOnly := NewRecord(ts, nil, Float(1.1), nil)

	merged := cons.Merge(priceOnly)
	if merged.Consumption == nil || *merged.Consumption != 1.5 {
		t.Fatalf("Consumption = %v, want 1.5", merged.Consumption)
	}
	if merged.Cost == nil || *merged.Cost != 1.35 {
		t.Fatalf("Cost = %v, want 1.35", merged.Cost)
	}
	if *merged.UnitPrice != 0.9 {
		t.Fatalf("UnitPrice = %.2f, want 0.90 (billed price kept over a price-only record)", *merged.UnitPrice)
	}

	merged = priceOnly.Merge(cons)
	if *merged.UnitPrice != 0.9 || merged.Consumption == nil {
		t.Fatalf("merged = %s, want the metered record's fields", merged)
	}

	fresh := NewRecord(ts, Float(1.6), Float(1.0), Float(1.6))
	merged = cons.Merge(fresh)
	if *merged.UnitPrice != 1.0 || *merged.Consumption != 1.6 {
		t.Fatalf("merged = %s, want the later metered values", merged)
	}

	merged = NewRecord(ts, nil, Float(1.1), nil).Merge(NewRecord(ts, nil, Float(1.3), nil))
	if *merged.UnitPrice != 1.3 {
		t.Fatalf("UnitPrice = %.2f, want 1.30 (later live price wins)", *merged.UnitPrice)
	}
}

func TestDay_UsesLocation(t *testing.T) {
	oslo, err := time.LoadLocation("Europe/Oslo")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	r := NewRecord(hour(t, "2025-03-01T23:00:00Z"), Float(1), nil, nil)
	day := r.Day(oslo)
	if day.Day() != 2 || day.Month() != time.March {
		t.Fatalf("Day = %s, want 2025-03-02 in Oslo", day.Format("2006-01-02"))
	}
}

func TestAccumulators_SkipUnknown(t *testing.T) {
	ts := hour(t, "2025-03-01T00:00:00Z")
	recs := []Record{
		NewRecord(ts, Float(1), Float(2), nil),
		NewRecord(ts.Add(time.Hour), nil, Float(4), Float(3)),
		NewRecord(ts.Add(2*time.Hour), Float(2), nil, Float(1)),
	}

	if sum, ok := SumConsumption(recs); !ok || sum != 3 {
		t.Fatalf("SumConsumption = %.2f, %v, want 3, true", sum, ok)
	}
	if sum, ok := SumCost(recs); !ok || sum != 4 {
		t.Fatalf("SumCost = %.2f, %v, want 4, true", sum, ok)
	}
	if mean, ok := MeanPrice(recs); !ok || mean != 3 {
		t.Fatalf("MeanPrice = %.2f, %v, want 3, true", mean, ok)
	}
	if _, ok := MeanPrice([]Record{NewRecord(ts, Float(1), nil, nil)}); ok {
		t.Fatal("MeanPrice over unknown prices should not be ok")
	}
}

func TestSnapshotJSON_AbsentIsNull(t *testing.T) {
	snap := Snapshot{
		Values: map[MetricKey]*float64{
			EstSubsidy: Float(0.42),
		},
		Enabled: []MetricKey{EstSubsidy, MonthlyAvgPrice},
	}
	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	body := string(data)
	if !strings.Contains(body, `"monthly_avg_price":null`) {
		t.Fatalf("absent metric not encoded as null: %s", body)
	}
	if !strings.Contains(body, `"est_subsidy":0.42`) {
		t.Fatalf("present metric missing: %s", body)
	}
}

func TestRound2(t *testing.T) {
	if Round2(nil) != nil {
		t.Fatal("Round2(nil) should stay nil")
	}
	if got := *Round2(Float(1.23456)); got != 1.23 {
		t.Fatalf("Round2 = %v, want 1.23", got)
	}
	if got := *Round2(Float(0)); got != 0 {
		t.Fatalf("Round2(0) = %v, want 0", got)
	}
}
