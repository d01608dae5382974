package pipeline

import (
	"math"
	"testing"
	"time"

	"github.com/theirongolddev/tburn/internal/config"
	"github.com/theirongolddev/tburn/internal/model"
)

func approx(t *testing.T, name string, got *float64, want float64) {
	t.Helper()
	if got == nil {
		t.Fatalf("%s = nil, want %.4f", name, want)
	}
	if math.Abs(*got-want) > 1e-9 {
		t.Fatalf("%s = %.4f, want %.4f", name, *got, want)
	}
}

func TestCompute_MonthlyCostWithSubsidy(t *testing.T) {
	loc := mustLoc(t)
	now := at(loc, 20, 12)
	// Unit price 1.075 everywhere gives est_subsidy = (1.075 - 0.875) * 1.0 = 0.2.
	subsidy := config.SubsidyParams{ReferencePrice: 0.7, VATMultiplier: 1.25, Coverage: 1.0}
	var recs []model.Record
	for day := 1; day <= 10; day++ {
		recs = append(recs, model.NewRecord(at(loc, day, 9), model.Float(5), model.Float(1.075), model.Float(10)))
	}

	got := Compute(Inputs{Now: now, Location: loc, Records: recs, Subsidy: subsidy})

	approx(t, "est_subsidy", got[model.EstSubsidy], 0.2)
	approx(t, "monthly_cost_with_subsidy", got[model.MonthlyCostWithSubsidy], 90)
	approx(t, "customer_avg_price", got[model.CustomerAvgPrice], 2)
	approx(t, "monthly_avg_price", got[model.MonthlyAvgPrice], 1.075)
	if got[model.DailyCostWithSubsidy] != nil {
		t.Fatalf("daily_cost_with_subsidy = %v, want nil with no records today", *got[model.DailyCostWithSubsidy])
	}
}

func TestCompute_SubsidyAbsentWithoutPrices(t *testing.T) {
	loc := mustLoc(t)
	now := at(loc, 20, 12)
	recs := []model.Record{
		model.NewRecord(at(loc, 20, 8), model.Float(1), nil, model.Float(2)),
		model.NewRecord(at(loc, 20, 9), model.Float(2), nil, model.Float(3)),
	}

	got := Compute(Inputs{
		Now:        now,
		Location:   loc,
		Records:    recs,
		LivePrices: map[time.Time]float64{HourKey(now): 1.5},
		Subsidy:    config.DefaultSubsidy,
	})

	for _, key := range []model.MetricKey{
		model.EstSubsidy,
		model.MonthlyAvgPrice,
		model.DailyCostWithSubsidy,
		model.MonthlyCostWithSubsidy,
		model.EstCurrentPriceWithSubsidy,
	} {
		if v := got[key]; v != nil {
			t.Fatalf("%s = %v, want nil", key, *v)
		}
	}
	approx(t, "customer_avg_price", got[model.CustomerAvgPrice], 5.0/3.0)
}

func TestCompute_DailyCostUsesToday(t *testing.T) {
	loc := mustLoc(t)
	now := at(loc, 20, 12)
	recs := []model.Record{
		model.NewRecord(at(loc, 19, 23), model.Float(4), model.Float(1), model.Float(4)),
		model.NewRecord(at(loc, 20, 0), model.Float(2), model.Float(1), model.Float(2)),
		model.NewRecord(at(loc, 20, 1), model.Float(1), model.Float(1), model.Float(1)),
	}
	subsidy := config.SubsidyParams{ReferencePrice: 0.5, VATMultiplier: 1, Coverage: 1}

	got := Compute(Inputs{Now: now, Location: loc, Records: recs, Subsidy: subsidy})

	approx(t, "est_subsidy", got[model.EstSubsidy], 0.5)
	approx(t, "daily_cost_with_subsidy", got[model.DailyCostWithSubsidy], 3-0.5*3)
	approx(t, "monthly_cost_with_subsidy", got[model.MonthlyCostWithSubsidy], 7-0.5*7)
}

func TestCompute_CurrentAndTotalPrice(t *testing.T) {
	loc := mustLoc(t)
	now := at(loc, 20, 12).Add(25 * time.Minute)
	recs := []model.Record{
		model.NewRecord(at(loc, 20, 8), model.Float(1), model.Float(1.375), model.Float(1.375)),
	}
	subsidy := config.SubsidyParams{ReferencePrice: 0.7, VATMultiplier: 1.25, Coverage: 1}
	live := map[time.Time]float64{HourKey(now): 2.0}
	grid := map[time.Time]float64{HourKey(now): 0.4}

	got := Compute(Inputs{Now: now, Location: loc, Records: recs, LivePrices: live, GridPrices: grid, Subsidy: subsidy})
	approx(t, "est_subsidy", got[model.EstSubsidy], 0.5)
	approx(t, "est_current_price_with_subsidy", got[model.EstCurrentPriceWithSubsidy], 1.5)
	approx(t, "grid_price", got[model.GridPrice], 0.4)
	approx(t, "total_price_with_subsidy", got[model.TotalPriceWithSubsidy], 1.9)

	got = Compute(Inputs{Now: now, Location: loc, Records: recs, LivePrices: live, Subsidy: subsidy})
	if got[model.GridPrice] != nil || got[model.TotalPriceWithSubsidy] != nil {
		t.Fatal("grid-dependent metrics present without a grid price")
	}
}

func TestCompute_PeakConsumption(t *testing.T) {
	loc := mustLoc(t)
	p := NewPeakTracker(loc)
	p.Observe(model.NewRecord(at(loc, 1, 1), model.Float(3), nil, nil))
	p.Observe(model.NewRecord(at(loc, 2, 1), model.Float(6), nil, nil))

	got := Compute(Inputs{Now: at(loc, 3, 0), Location: loc, Peak: p, Subsidy: config.DefaultSubsidy})
	approx(t, "peak_consumption", got[model.PeakConsumption], 4.5)

	got = Compute(Inputs{Now: at(loc, 3, 0), Location: loc, Peak: NewPeakTracker(loc), Subsidy: config.DefaultSubsidy})
	if got[model.PeakConsumption] != nil {
		t.Fatal("peak_consumption present with an empty tracker")
	}
}
