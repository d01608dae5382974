package config

import (
	"math"
	"testing"
)

func floatPtr(v float64) *float64 { return &v }

func TestSubsidyParams_Defaults(t *testing.T) {
	p := SubsidyConfig{}.Params()
	if p != DefaultSubsidy {
		t.Fatalf("Params() = %+v, want %+v", p, DefaultSubsidy)
	}
	if got := p.Threshold(); math.Abs(got-0.875) > 1e-9 {
		t.Fatalf("Threshold() = %.4f, want 0.875", got)
	}
}

func TestSubsidyParams_Estimate(t *testing.T) {
	p := DefaultSubsidy
	got := p.Estimate(1.875)
	if math.Abs(got-0.9) > 1e-9 {
		t.Fatalf("Estimate(1.875) = %.4f, want 0.9", got)
	}
	if got := p.Estimate(0.5); got >= 0 {
		t.Fatalf("Estimate(0.5) = %.4f, want negative below threshold", got)
	}
}

func TestSubsidyConfig_Overrides(t *testing.T) {
	c := SubsidyConfig{
		ReferencePrice: floatPtr(0.75),
		Coverage:       floatPtr(0.8),
	}
	p := c.Params()
	if p.ReferencePrice != 0.75 {
		t.Fatalf("ReferencePrice = %.2f, want 0.75", p.ReferencePrice)
	}
	if p.VATMultiplier != DefaultSubsidy.VATMultiplier {
		t.Fatalf("VATMultiplier = %.2f, want default %.2f", p.VATMultiplier, DefaultSubsidy.VATMultiplier)
	}
	if p.Coverage != 0.8 {
		t.Fatalf("Coverage = %.2f, want 0.8", p.Coverage)
	}
}

func TestSubsidyParams_Validate(t *testing.T) {
	tests := []struct {
		name    string
		p       SubsidyParams
		wantErr bool
	}{
		{"defaults", DefaultSubsidy, false},
		{"negative reference", SubsidyParams{ReferencePrice: -1, VATMultiplier: 1.25, Coverage: 0.9}, true},
		{"vat below one", SubsidyParams{ReferencePrice: 0.7, VATMultiplier: 0.5, Coverage: 0.9}, true},
		{"coverage above one", SubsidyParams{ReferencePrice: 0.7, VATMultiplier: 1.25, Coverage: 1.5}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
