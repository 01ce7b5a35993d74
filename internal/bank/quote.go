package bank

import "math"

// Default loan terms offered when the borrower does not pick their own.
const (
	DefaultDelayDays    = 15
	DefaultDurationDays = 31
)

// Quote is a non-committing simulation of a proposed loan: its origination
// cost, total to repay and daily payment at the current loan interest rate.
// Quotes are never persisted; committing one is a separate, explicit step.
type Quote struct {
	OwnerID      string `json:"owner_id"`
	Amount       int64  `json:"amount"`
	Delay        int    `json:"delay"`
	Duration     int    `json:"duration"`
	Cost         int64  `json:"cost"`
	Total        int64  `json:"total"`
	DailyPayment int64  `json:"daily_payment"`
}

// Simulate prices a proposed loan at the given loan interest rate.
// The cost covers the whole delay plus duration window; the daily payment
// is the total spread over the duration, rounded toward zero.
func Simulate(ownerID string, amount int64, delay, duration int, loanInterestRate float64) Quote {
	cost := int64(math.Ceil(float64(amount) * loanInterestRate * float64(delay+duration)))
	total := amount + cost
	return Quote{
		OwnerID:      ownerID,
		Amount:       amount,
		Delay:        delay,
		Duration:     duration,
		Cost:         cost,
		Total:        total,
		DailyPayment: -(total / int64(duration)),
	}
}

// Amortizes reports whether the quoted daily payment actually repays the
// loan. Very small totals can round to a zero payment; such a quote must
// not be committed.
func (q Quote) Amortizes() bool { return q.DailyPayment < 0 }

// Commit originates a Loan from the quote. The caller is responsible for
// crediting the borrower's purse with the principal.
func (q Quote) Commit(today int) *Loan {
	return &Loan{
		OwnerID:      q.OwnerID,
		Principal:    q.Amount,
		Cost:         q.Cost,
		Remaining:    q.Total,
		DailyPayment: q.DailyPayment,
		OriginDay:    today,
		DelayDays:    q.Delay,
		DurationDays: q.Duration,
	}
}

// ScheduleEntry is one projected repayment step of a quote.
type ScheduleEntry struct {
	Day       int   `json:"day"`
	Payment   int64 `json:"payment"`
	Remaining int64 `json:"remaining"`
}

// Schedule projects the day-by-day repayment of the quote as if it were
// committed today, without committing it.
func (q Quote) Schedule(today int) []ScheduleEntry {
	if !q.Amortizes() {
		return nil
	}
	loan := q.Commit(today)
	entries := make([]ScheduleEntry, 0, q.Duration)
	for day := loan.PaymentsStartDay(); loan.Remaining > 0; day++ {
		payment, remaining := loan.CalculatePayment(day)
		loan.Remaining = remaining
		entries = append(entries, ScheduleEntry{Day: day, Payment: payment, Remaining: remaining})
	}
	return entries
}
