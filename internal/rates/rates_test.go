package rates

import (
	"math"
	"testing"
)

func TestCompute(t *testing.T) {
	tests := []struct {
		name       string
		volatility float64
		scales     Scales
		want       Snapshot
	}{
		{
			name:       "calm world, neutral scales",
			volatility: 0,
			scales:     DefaultScales(),
			want: Snapshot{
				TaxInRate:        0.010,
				TaxOutRate:       0.015,
				InterestRate:     0.005,
				LoanInterestRate: 0.010,
				RenownPenalty:    -10,
			},
		},
		{
			name:       "half the world at war",
			volatility: 0.5,
			scales:     DefaultScales(),
			want: Snapshot{
				TaxInRate:        0.010,
				TaxOutRate:       0.015,
				InterestRate:     0.25*0.15 + 0.005,
				LoanInterestRate: 0.25*0.18 + 0.010,
				RenownPenalty:    -10,
			},
		},
		{
			name:       "tax rates clamp at 100 percent",
			volatility: 0,
			scales:     Scales{TaxIn: 500, TaxOut: 500, Interest: 1, LoanInterest: 1, Overdraft: 1},
			want: Snapshot{
				TaxInRate:        1.0,
				TaxOutRate:       1.0,
				InterestRate:     0.005,
				LoanInterestRate: 0.010,
				RenownPenalty:    -10,
			},
		},
		{
			name:       "loan rate never drops below floor",
			volatility: 0,
			scales:     Scales{TaxIn: 1, TaxOut: 1, Interest: 1, LoanInterest: 0, Overdraft: 1},
			want: Snapshot{
				TaxInRate:        0.010,
				TaxOutRate:       0.015,
				InterestRate:     0.005,
				LoanInterestRate: 0.004,
				RenownPenalty:    -10,
			},
		},
		{
			name:       "overdraft scale drives the penalty",
			volatility: 0,
			scales:     Scales{TaxIn: 1, TaxOut: 1, Interest: 1, LoanInterest: 1, Overdraft: 2.5},
			want: Snapshot{
				TaxInRate:        0.010,
				TaxOutRate:       0.015,
				InterestRate:     0.005,
				LoanInterestRate: 0.010,
				RenownPenalty:    -25,
			},
		},
		{
			name:       "zeroed scales disable everything but the loan floor",
			volatility: 1,
			scales:     Scales{},
			want: Snapshot{
				TaxInRate:        0,
				TaxOutRate:       0,
				InterestRate:     0,
				LoanInterestRate: 0.004,
				RenownPenalty:    0,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compute(tt.volatility, tt.scales)
			if !closeTo(got.TaxInRate, tt.want.TaxInRate) {
				t.Errorf("TaxInRate = %v, want %v", got.TaxInRate, tt.want.TaxInRate)
			}
			if !closeTo(got.TaxOutRate, tt.want.TaxOutRate) {
				t.Errorf("TaxOutRate = %v, want %v", got.TaxOutRate, tt.want.TaxOutRate)
			}
			if !closeTo(got.InterestRate, tt.want.InterestRate) {
				t.Errorf("InterestRate = %v, want %v", got.InterestRate, tt.want.InterestRate)
			}
			if !closeTo(got.LoanInterestRate, tt.want.LoanInterestRate) {
				t.Errorf("LoanInterestRate = %v, want %v", got.LoanInterestRate, tt.want.LoanInterestRate)
			}
			if !closeTo(got.RenownPenalty, tt.want.RenownPenalty) {
				t.Errorf("RenownPenalty = %v, want %v", got.RenownPenalty, tt.want.RenownPenalty)
			}
		})
	}
}

func TestEnvScaleProvider(t *testing.T) {
	provider := EnvScaleProvider{Defaults: DefaultScales()}

	t.Setenv("BANK_TAX_IN_SCALE", "2.5")
	t.Setenv("BANK_INTEREST_SCALE", "0")
	t.Setenv("BANK_LOAN_INTEREST_SCALE", "not-a-number")
	t.Setenv("BANK_OVERDRAFT_SCALE", "-1")

	got := provider.Scales()
	if got.TaxIn != 2.5 {
		t.Errorf("TaxIn = %v, want 2.5", got.TaxIn)
	}
	if got.TaxOut != 1 {
		t.Errorf("TaxOut = %v, want default 1", got.TaxOut)
	}
	if got.Interest != 0 {
		t.Errorf("Interest = %v, want 0", got.Interest)
	}
	if got.LoanInterest != 1 {
		t.Errorf("LoanInterest = %v, want default 1 on parse failure", got.LoanInterest)
	}
	if got.Overdraft != 1 {
		t.Errorf("Overdraft = %v, want default 1 on negative value", got.Overdraft)
	}
}

func closeTo(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
