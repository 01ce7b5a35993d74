package bank

import (
	"math"

	"github.com/ironbank/ironbank/internal/rates"
)

// Account is the persistent balance entity of one depositor. The balance
// may go negative (overdraft). Loans are kept in origination order and the
// settlement pass iterates them in that order.
//
// The account never calls outward: transfer and settlement methods take the
// external purse balance and fresh rates as inputs and report the requested
// host effects in their outcome records.
type Account struct {
	OwnerID           string  `json:"owner_id"`
	AccountNumber     string  `json:"account_number"`
	Balance           int64   `json:"balance"`
	ReinvestmentRatio float64 `json:"reinvestment_ratio"`
	BankReserve       int64   `json:"bank_reserve"`
	Loans             []*Loan `json:"loans"`
}

// NewAccount creates an empty account for the owner.
func NewAccount(ownerID string, reinvestmentRatio float64) *Account {
	return &Account{OwnerID: ownerID, ReinvestmentRatio: reinvestmentRatio}
}

// TransferOutcome reports the result of a deposit or withdrawal. When the
// operation's predicate was false the transfer is a no-op: Applied is false
// and the balances are the unchanged pre-call values.
type TransferOutcome struct {
	Applied      bool  `json:"applied"`
	Balance      int64 `json:"balance"`
	PurseBalance int64 `json:"purse_balance"`
	Tax          int64 `json:"tax"`
}

// SettlementOutcome reports one daily settlement pass.
type SettlementOutcome struct {
	PurseShare    int64   `json:"purse_share"`
	AccountShare  int64   `json:"account_share"`
	TotalPayments int64   `json:"total_payments"`
	Overdrawn     bool    `json:"overdrawn"`
	RenownPenalty float64 `json:"renown_penalty"`
	Repaid        []*Loan `json:"repaid,omitempty"`
}

// CanDeposit reports whether the owner can move amount from their purse
// into the account.
func (a *Account) CanDeposit(amount, purseBalance int64) bool {
	return amount > 0 && amount <= purseBalance
}

// CanWithdraw reports whether the owner can move amount from the account
// back to their purse. The last term guards against overflowing the purse.
func (a *Account) CanWithdraw(amount, purseBalance int64) bool {
	return amount > 0 && amount <= a.Balance && math.MaxInt64-amount-purseBalance >= 0
}

// Deposit moves amount from the purse into the account, minus the deposit
// tax which accrues to the bank reserve. A refused deposit is a no-op.
func (a *Account) Deposit(amount, purseBalance int64, rs rates.Snapshot) TransferOutcome {
	if !a.CanDeposit(amount, purseBalance) {
		return TransferOutcome{Balance: a.Balance, PurseBalance: purseBalance}
	}

	tax := ceilShare(amount, rs.TaxInRate)
	a.Balance += amount - tax
	a.BankReserve += tax

	return TransferOutcome{
		Applied:      true,
		Balance:      a.Balance,
		PurseBalance: purseBalance - amount,
		Tax:          tax,
	}
}

// Withdraw moves amount from the account back to the purse, minus the
// withdrawal tax which accrues to the bank reserve. A refused withdrawal is
// a no-op.
func (a *Account) Withdraw(amount, purseBalance int64, rs rates.Snapshot) TransferOutcome {
	if !a.CanWithdraw(amount, purseBalance) {
		return TransferOutcome{Balance: a.Balance, PurseBalance: purseBalance}
	}

	tax := ceilShare(amount, rs.TaxOutRate)
	a.Balance -= amount
	a.BankReserve += tax

	return TransferOutcome{
		Applied:      true,
		Balance:      a.Balance,
		PurseBalance: purseBalance + amount - tax,
		Tax:          tax,
	}
}

// EstimateInterests computes today's interest split without applying it.
// The depositor's payout rounds down and the retained share rounds up, so a
// rounding remainder never leaves the bank.
func (a *Account) EstimateInterests(rs rates.Snapshot) (purseShare, accountShare int64) {
	gross := math.Floor(float64(a.Balance) * rs.InterestRate)
	purseShare = int64(math.Floor((1 - a.ReinvestmentRatio) * gross * (1 - rs.TaxOutRate)))
	accountShare = int64(math.Ceil(a.ReinvestmentRatio * gross))
	return purseShare, accountShare
}

// OutstandingPrincipal sums the principal of all active loans.
func (a *Account) OutstandingPrincipal() int64 {
	var total int64
	for _, loan := range a.Loans {
		total += loan.Principal
	}
	return total
}

// DailyLoanPayments sums the scheduled daily payments of all active loans.
func (a *Account) DailyLoanPayments() int64 {
	var total int64
	for _, loan := range a.Loans {
		total += loan.DailyPayment
	}
	return total
}

// AddLoan appends an originated loan. Origination order is settlement order.
func (a *Account) AddLoan(l *Loan) {
	a.Loans = append(a.Loans, l)
}

// ApplyDailyTransactions runs the daily settlement pass: interest split,
// one payment per loan in origination order, a single overdraft check, then
// a stable prune of repaid loans. It must be invoked exactly once per owner
// per simulated day. The caller applies the purse share, renown penalty and
// notifications to the host.
func (a *Account) ApplyDailyTransactions(today int, rs rates.Snapshot) SettlementOutcome {
	gross := int64(math.Floor(float64(a.Balance) * rs.InterestRate))
	purseShare, accountShare := a.EstimateInterests(rs)
	a.Balance += accountShare
	if remainder := gross - purseShare - accountShare; remainder > 0 {
		a.BankReserve += remainder
	}

	var totalPayments int64
	for _, loan := range a.Loans {
		payment, remaining := loan.CalculatePayment(today)
		a.Balance += payment
		loan.Remaining = remaining
		totalPayments += payment
	}

	// One penalty per settlement pass, never per loan.
	overdrawn := a.Balance < 0
	var penalty float64
	if overdrawn && rs.RenownPenalty < 0 {
		penalty = rs.RenownPenalty
	}

	var repaid []*Loan
	kept := a.Loans[:0]
	for _, loan := range a.Loans {
		if loan.Remaining <= 0 {
			// Lump fee credit: the repaid loan's cost is the bank's revenue.
			a.BankReserve += loan.Cost
			repaid = append(repaid, loan)
			continue
		}
		kept = append(kept, loan)
	}
	a.Loans = kept

	return SettlementOutcome{
		PurseShare:    purseShare,
		AccountShare:  accountShare,
		TotalPayments: totalPayments,
		Overdrawn:     overdrawn,
		RenownPenalty: penalty,
		Repaid:        repaid,
	}
}

// Clone returns a deep copy, used for day-by-day forecasting without
// touching live state.
func (a *Account) Clone() *Account {
	clone := *a
	clone.Loans = make([]*Loan, len(a.Loans))
	for i, loan := range a.Loans {
		copied := *loan
		clone.Loans[i] = &copied
	}
	return &clone
}

func ceilShare(amount int64, rate float64) int64 {
	return int64(math.Ceil(float64(amount) * rate))
}
