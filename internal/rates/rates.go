package rates

import "math"

// Baseline rates before operator scaling.
const (
	baseTaxIn        = 0.010
	baseTaxOut       = 0.015
	baseInterest     = 0.005
	interestSpread   = 0.15
	baseLoanInterest = 0.010
	loanSpread       = 0.18
	minLoanInterest  = 0.004
	baseRenownLoss   = -10.0
)

// Scales are the operator-configurable multipliers applied to the baseline
// rates. Each is a non-negative float defaulting to 1.0.
type Scales struct {
	TaxIn        float64
	TaxOut       float64
	Interest     float64
	LoanInterest float64
	Overdraft    float64
}

// DefaultScales returns the neutral baseline multipliers.
func DefaultScales() Scales {
	return Scales{TaxIn: 1, TaxOut: 1, Interest: 1, LoanInterest: 1, Overdraft: 1}
}

// Snapshot holds the five live rates derived from the volatility signal and
// the current scales. It is recomputed from fresh inputs on every read and
// never cached or persisted.
type Snapshot struct {
	TaxInRate        float64 `json:"tax_in_rate"`
	TaxOutRate       float64 `json:"tax_out_rate"`
	InterestRate     float64 `json:"interest_rate"`
	LoanInterestRate float64 `json:"loan_interest_rate"`
	RenownPenalty    float64 `json:"renown_penalty"`
}

// Compute derives a rate Snapshot from a freshly sampled volatility value
// (nominally in [0,1]) and the current scale factors. More volatility means
// higher loan costs but higher account interests.
func Compute(volatility float64, s Scales) Snapshot {
	v2 := volatility * volatility
	return Snapshot{
		TaxInRate:        math.Min(baseTaxIn*s.TaxIn, 1.0),
		TaxOutRate:       math.Min(baseTaxOut*s.TaxOut, 1.0),
		InterestRate:     (v2*interestSpread + baseInterest) * s.Interest,
		LoanInterestRate: math.Max(minLoanInterest, (v2*loanSpread+baseLoanInterest)*s.LoanInterest),
		RenownPenalty:    baseRenownLoss * s.Overdraft,
	}
}
