package config

import "fmt"

// SubsidyParams are the electricity subsidy terms. The state covers
// Coverage of the part of the monthly average spot price that exceeds
// ReferencePrice*VATMultiplier.
type SubsidyParams struct {
	ReferencePrice float64
	VATMultiplier  float64
	Coverage       float64
}

// DefaultSubsidy holds the terms used when nothing is configured.
var DefaultSubsidy = SubsidyParams{
	ReferencePrice: 0.7,
	VATMultiplier:  1.25,
	Coverage:       0.9,
}

// SubsidyConfig allows overriding individual subsidy terms.
type SubsidyConfig struct {
	ReferencePrice *float64 `toml:"reference_price,omitempty"`
	VATMultiplier  *float64 `toml:"vat_multiplier,omitempty"`
	Coverage       *float64 `toml:"coverage,omitempty"`
}

// Params resolves the configured terms on top of DefaultSubsidy.
func (c SubsidyConfig) Params() SubsidyParams {
	p := DefaultSubsidy
	if c.ReferencePrice != nil {
		p.ReferencePrice = *c.ReferencePrice
	}
	if c.VATMultiplier != nil {
		p.VATMultiplier = *c.VATMultiplier
	}
	if c.Coverage != nil {
		p.Coverage = *c.Coverage
	}
	return p
}

// Threshold is the VAT-inclusive price above which the subsidy applies.
func (p SubsidyParams) Threshold() float64 {
	return p.ReferencePrice * p.VATMultiplier
}

// Estimate returns the per-kWh subsidy for a monthly mean price.
// The result is not clamped and goes negative below the threshold.
func (p SubsidyParams) Estimate(meanPrice float64) float64 {
	return (meanPrice - p.Threshold()) * p.Coverage
}

// Validate rejects terms that cannot describe a subsidy.
func (p SubsidyParams) Validate() error {
	if p.ReferencePrice < 0 {
		return fmt.Errorf("config: subsidy reference_price must not be negative, got %.2f", p.ReferencePrice)
	}
	if p.VATMultiplier < 1 {
		return fmt.Errorf("config: subsidy vat_multiplier must be at least 1, got %.2f", p.VATMultiplier)
	}
	if p.Coverage < 0 || p.Coverage > 1 {
		return fmt.Errorf("config: subsidy coverage must be within [0, 1], got %.2f", p.Coverage)
	}
	return nil
}
