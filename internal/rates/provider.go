package rates

import (
	"os"
	"strconv"
)

// ScaleProvider supplies the current scale factors. Implementations may read
// a live source on every call; the model itself stays a pure function of the
// values they return.
type ScaleProvider interface {
	Scales() Scales
}

// StaticScaleProvider always returns the same fixed scales. It is the
// fallback when no live configuration source is available.
type StaticScaleProvider struct {
	Fixed Scales
}

// Scales returns the fixed scales.
func (p StaticScaleProvider) Scales() Scales { return p.Fixed }

// EnvScaleProvider reads the scale factors from environment variables on
// every call, so operators can retune rates without a restart. A missing or
// invalid variable falls back to the matching default.
type EnvScaleProvider struct {
	Defaults Scales
}

// Scales reads the current scale factors from the environment.
func (p EnvScaleProvider) Scales() Scales {
	return Scales{
		TaxIn:        envScale("BANK_TAX_IN_SCALE", p.Defaults.TaxIn),
		TaxOut:       envScale("BANK_TAX_OUT_SCALE", p.Defaults.TaxOut),
		Interest:     envScale("BANK_INTEREST_SCALE", p.Defaults.Interest),
		LoanInterest: envScale("BANK_LOAN_INTEREST_SCALE", p.Defaults.LoanInterest),
		Overdraft:    envScale("BANK_OVERDRAFT_SCALE", p.Defaults.Overdraft),
	}
}

func envScale(key string, defaultVal float64) float64 {
	raw, exists := os.LookupEnv(key)
	if !exists {
		return defaultVal
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || value < 0 {
		return defaultVal
	}
	return value
}
