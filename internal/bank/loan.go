package bank

// Loan is an originated borrowing with a daily amortization schedule.
// Payments begin after a delay and run until the remaining value reaches
// zero, at which point the settlement pass drops the loan.
type Loan struct {
	OwnerID      string `json:"owner_id"`
	Principal    int64  `json:"principal"`
	Cost         int64  `json:"cost"`
	Remaining    int64  `json:"remaining"`
	DailyPayment int64  `json:"daily_payment"` // non-positive
	OriginDay    int    `json:"origin_day"`
	DelayDays    int    `json:"delay_days"`
	DurationDays int    `json:"duration_days"`
}

// Total is the full amount to repay, principal plus origination cost.
func (l *Loan) Total() int64 { return l.Principal + l.Cost }

// PaymentsStartDay is the first day a payment is collected.
func (l *Loan) PaymentsStartDay() int { return l.OriginDay + l.DelayDays }

// PaymentsEndDay is the estimated last day of scheduled payments.
func (l *Loan) PaymentsEndDay() int { return l.PaymentsStartDay() + l.DurationDays }

// CalculatePayment returns today's payment (always <= 0) and the remaining
// value after it. During the grace period the payment is zero. A payment
// never exceeds what is left to repay. The method does not mutate the loan;
// the settlement pass writes the new remaining back.
func (l *Loan) CalculatePayment(today int) (payment, remaining int64) {
	if today < l.PaymentsStartDay() {
		return 0, l.Remaining
	}
	payment = l.DailyPayment
	if -l.Remaining > payment {
		payment = -l.Remaining
	}
	return payment, l.Remaining + payment
}
