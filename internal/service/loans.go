package service

import (
	"context"
	"fmt"

	"github.com/ironbank/ironbank/internal/bank"
	"github.com/ironbank/ironbank/internal/metrics"
	"github.com/ironbank/ironbank/internal/models"
)

// LoanOffer is a priced quote with its projected schedule and the envelope
// it was checked against.
type LoanOffer struct {
	Quote    bank.Quote           `json:"quote"`
	Schedule []bank.ScheduleEntry `json:"schedule"`
	Capacity bank.Capacity        `json:"capacity"`
	Eligible bool                 `json:"eligible"`
}

// OriginationOutcome reports a loan request. A request outside the
// borrower's capacity is a refusal, not an error.
type OriginationOutcome struct {
	Applied bool       `json:"applied"`
	Loan    *bank.Loan `json:"loan,omitempty"`
}

// LoanCapacity computes the owner's current borrowing envelope
func (s *Service) LoanCapacity(ctx context.Context, ownerID string) (bank.Capacity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capacity(ownerID)
}

// capacity recomputes the borrowing envelope from fresh host state.
// Callers hold mu.
func (s *Service) capacity(ownerID string) (bank.Capacity, error) {
	owner, err := s.gateway.OwnerState(ownerID)
	if err != nil {
		return bank.Capacity{}, fmt.Errorf("failed to fetch owner state: %w", err)
	}
	account, err := s.ensureAccount(ownerID)
	if err != nil {
		return bank.Capacity{}, err
	}
	return bank.CapacityFor(owner.Standing, len(account.Loans), account.OutstandingPrincipal(), s.config.SeasonLength), nil
}

// QuoteLoan simulates a loan at the current loan interest rate without
// committing anything.
func (s *Service) QuoteLoan(ctx context.Context, ownerID string, req models.LoanRequest) (LoanOffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delay, duration := loanTerms(req)
	world, snapshot, err := s.sample()
	if err != nil {
		return LoanOffer{}, err
	}
	capacity, err := s.capacity(ownerID)
	if err != nil {
		return LoanOffer{}, err
	}

	quote := bank.Simulate(ownerID, req.Amount, delay, duration, snapshot.LoanInterestRate)
	return LoanOffer{
		Quote:    quote,
		Schedule: quote.Schedule(world.Day),
		Capacity: capacity,
		Eligible: capacity.Allows(quote.Amount, quote.Delay, quote.Duration) && quote.Amortizes(),
	}, nil
}

// TakeLoan commits a quote at today's rate: the loan joins the account and
// the principal is credited to the owner's purse.
func (s *Service) TakeLoan(ctx context.Context, ownerID string, req models.LoanRequest) (OriginationOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delay, duration := loanTerms(req)
	world, snapshot, err := s.sample()
	if err != nil {
		return OriginationOutcome{}, err
	}
	capacity, err := s.capacity(ownerID)
	if err != nil {
		return OriginationOutcome{}, err
	}

	quote := bank.Simulate(ownerID, req.Amount, delay, duration, snapshot.LoanInterestRate)
	if !capacity.Allows(quote.Amount, quote.Delay, quote.Duration) || !quote.Amortizes() {
		s.log.Warnf("Loan of %d over %d days refused for %s", req.Amount, duration, ownerID)
		return OriginationOutcome{}, nil
	}

	account, err := s.ensureAccount(ownerID)
	if err != nil {
		return OriginationOutcome{}, err
	}

	// The loan joins the account only after the principal was actually paid
	// out; a failed payout must not leave the borrower owing money.
	loan := quote.Commit(world.Day)
	staged := account.Clone()
	staged.AddLoan(loan)
	if err := s.gateway.CreditPurse(ownerID, loan.Principal); err != nil {
		return OriginationOutcome{}, fmt.Errorf("failed to credit principal: %w", err)
	}
	s.registry.Put(staged)

	s.notify(ownerID, fmt.Sprintf("Iron Bank: we lent you %d, to be repaid over %d days.", loan.Principal, loan.DurationDays), loan.Principal)
	s.record(ownerID, loan.Principal, models.TransactionTypeLoanPrincipal, world.Day,
		fmt.Sprintf("loan of %d, cost %d, daily payment %d", loan.Principal, loan.Cost, loan.DailyPayment))
	if err := s.store.SaveAccount(staged); err != nil {
		return OriginationOutcome{}, err
	}

	metrics.LoansOriginated.Inc()
	s.log.Infof("Loan of %d originated for %s, total to repay %d", loan.Principal, ownerID, loan.Total())
	return OriginationOutcome{Applied: true, Loan: loan}, nil
}

// loanTerms applies the bank's default terms where the request leaves them out
func loanTerms(req models.LoanRequest) (delay, duration int) {
	delay, duration = req.Delay, req.Duration
	if delay == 0 {
		delay = bank.DefaultDelayDays
	}
	if duration == 0 {
		duration = bank.DefaultDurationDays
	}
	return delay, duration
}
