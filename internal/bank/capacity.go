package bank

import "math"

// maxActiveLoans caps concurrent borrowings per account.
const maxActiveLoans = 4

// Capacity is the borrowing envelope for one borrower, derived from their
// standing score and current loan load. It is recomputed on demand and
// never persisted.
type Capacity struct {
	MinAmount   int64 `json:"min_amount"`
	MaxAmount   int64 `json:"max_amount"`
	MinDelay    int   `json:"min_delay"`
	MaxDelay    int   `json:"max_delay"`
	MinDuration int   `json:"min_duration"`
	MaxDuration int   `json:"max_duration"`
}

// CapacityFor computes the borrowing bounds. The amount ceiling grows with
// the standing score, shrinks as outstanding principal grows, and drops to
// zero once the concurrent loan cap is reached. MaxAmount can be <= 0,
// which means no further borrowing; callers must check
// MaxAmount >= MinAmount before offering a loan.
func CapacityFor(standing float64, loanCount int, outstanding int64, seasonLength int) Capacity {
	absoluteMax := int64(math.Max(1, math.Floor(standing*standing*0.04+standing*50)))

	var maxAmount int64
	if loanCount < maxActiveLoans {
		maxAmount = absoluteMax - outstanding
	}

	season := float64(seasonLength)
	maxDelay := math.Max(5, math.Min(1.5*season, standing/season*0.2))
	maxDuration := math.Max(10, math.Min(3*season, standing/season*0.4))

	return Capacity{
		MinAmount:   1,
		MaxAmount:   maxAmount,
		MinDelay:    1,
		MaxDelay:    int(maxDelay),
		MinDuration: 1,
		MaxDuration: int(maxDuration),
	}
}

// Allows reports whether the proposed terms fit inside the envelope.
func (c Capacity) Allows(amount int64, delay, duration int) bool {
	return amount >= c.MinAmount && amount <= c.MaxAmount &&
		delay >= c.MinDelay && delay <= c.MaxDelay &&
		duration >= c.MinDuration && duration <= c.MaxDuration
}
