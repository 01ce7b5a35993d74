package service

import (
	"context"
	"fmt"

	"github.com/ironbank/ironbank/internal/bank"
	"github.com/ironbank/ironbank/internal/metrics"
	"github.com/ironbank/ironbank/internal/models"
	"github.com/ironbank/ironbank/internal/rates"
)

// RunDailySettlement advances every account by one simulated day: interest
// accrual, loan payments, overdraft penalties and pruning of repaid loans.
// Rates are sampled once per pass; running the pass twice on the same
// simulated day is a no-op.
func (s *Service) RunDailySettlement(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	world, snapshot, err := s.sample()
	if err != nil {
		metrics.SettlementRuns.WithLabelValues("error").Inc()
		return err
	}
	if world.Day == s.lastSettledDay {
		metrics.SettlementRuns.WithLabelValues("skipped").Inc()
		s.log.Infof("Settlement already ran for day %d, skipping", world.Day)
		return nil
	}

	// Owners settled earlier in an interrupted pass for this day are
	// skipped, so a retry resumes the pass instead of replaying it.
	if world.Day != s.settlingDay {
		s.settlingDay = world.Day
		s.settledOwners = make(map[string]struct{}, s.registry.Len())
	}

	s.log.Infof("Settling day %d at volatility %.4f for %d accounts", world.Day, world.Volatility, s.registry.Len())

	for _, account := range s.registry.All() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, done := s.settledOwners[account.OwnerID]; done {
			continue
		}
		if err := s.settleAccount(account, world.Day, snapshot); err != nil {
			s.log.WithError(err).Errorf("Failed to settle account of %s", account.OwnerID)
			continue
		}
		s.settledOwners[account.OwnerID] = struct{}{}
	}

	s.lastSettledDay = world.Day
	metrics.SettlementRuns.WithLabelValues("ok").Inc()
	return nil
}

// settleAccount runs one account's daily pass and dispatches the requested
// host effects. The pass is staged on a copy and committed only after the
// purse share was paid out, so a gateway failure leaves the account one day
// behind instead of out of sync with the purse. Callers hold mu.
func (s *Service) settleAccount(account *bank.Account, today int, snapshot rates.Snapshot) error {
	ownerID := account.OwnerID
	staged := account.Clone()
	outcome := staged.ApplyDailyTransactions(today, snapshot)

	if outcome.PurseShare != 0 {
		if err := s.gateway.CreditPurse(ownerID, outcome.PurseShare); err != nil {
			return fmt.Errorf("failed to credit interest to purse: %w", err)
		}
		metrics.InterestDistributed.WithLabelValues("purse").Add(float64(outcome.PurseShare))
	}
	s.registry.Put(staged)

	if outcome.PurseShare > 0 {
		s.notify(ownerID, fmt.Sprintf("Iron Bank: we sent you %d from interests.", outcome.PurseShare), outcome.PurseShare)
	}
	if outcome.AccountShare > 0 {
		metrics.InterestDistributed.WithLabelValues("account").Add(float64(outcome.AccountShare))
		s.notify(ownerID, fmt.Sprintf("Iron Bank: we credited your account with %d from interests.", outcome.AccountShare), outcome.AccountShare)
		s.record(ownerID, outcome.AccountShare, models.TransactionTypeInterest, today, "interests reinvested")
	}

	if outcome.TotalPayments < 0 {
		s.notify(ownerID, fmt.Sprintf("Iron Bank: we collected %d in loan payments.", -outcome.TotalPayments), outcome.TotalPayments)
		s.record(ownerID, outcome.TotalPayments, models.TransactionTypeLoanPayment, today, "daily loan payments")
	}

	for _, loan := range outcome.Repaid {
		metrics.LoansRepaid.Inc()
		s.notify(ownerID, fmt.Sprintf("Iron Bank: your loan of %d is fully repaid.", loan.Principal), 0)
	}

	if outcome.Overdrawn {
		metrics.Overdrafts.Inc()
		s.notify(ownerID, "Iron Bank: your account is overdrawn, settle your debts.", staged.Balance)
		if outcome.RenownPenalty < 0 {
			if err := s.gateway.ApplyRenown(ownerID, outcome.RenownPenalty); err != nil {
				s.log.WithError(err).Warnf("Failed to apply renown penalty to %s", ownerID)
			} else {
				s.notify(ownerID, fmt.Sprintf("Iron Bank: your clan lost %.0f renown over unpaid debts.", -outcome.RenownPenalty), 0)
			}
			s.sendOverdraftWarning(ownerID, staged.Balance, outcome.RenownPenalty, today)
		}
	}

	s.sendSettlementSummary(ownerID, today, outcome)

	// Past this point the day is committed in memory; a failed save is
	// caught up by the next write instead of replaying the day.
	if err := s.store.SaveAccount(staged); err != nil {
		s.log.WithError(err).Errorf("Failed to persist settled account of %s", ownerID)
	}
	return nil
}

// sendOverdraftWarning emails the owner when their account goes negative.
// Mail failures are logged, never fatal.
func (s *Service) sendOverdraftWarning(ownerID string, balance int64, penalty float64, today int) {
	if s.mailer == nil {
		return
	}
	user, err := s.store.FindUserByOwner(ownerID)
	if err != nil {
		s.log.Debugf("No user registered for %s, skipping overdraft mail", ownerID)
		return
	}
	if err := s.mailer.SendOverdraftWarning(user.Email, user.Username, balance, penalty, today); err != nil {
		s.log.WithError(err).Warnf("Failed to send overdraft warning to %s", user.Email)
	}
}

// sendSettlementSummary emails the daily settlement report when there was
// any movement on the account.
func (s *Service) sendSettlementSummary(ownerID string, today int, outcome bank.SettlementOutcome) {
	if s.mailer == nil {
		return
	}
	if outcome.PurseShare == 0 && outcome.AccountShare == 0 && outcome.TotalPayments == 0 {
		return
	}
	user, err := s.store.FindUserByOwner(ownerID)
	if err != nil {
		return
	}
	if err := s.mailer.SendSettlementSummary(user.Email, user.Username, today,
		outcome.PurseShare, outcome.AccountShare, outcome.TotalPayments); err != nil {
		s.log.WithError(err).Warnf("Failed to send settlement summary to %s", user.Email)
	}
}

// ForecastBalance projects the account balance over the next N days at
// frozen current rates, advancing a copy of the account day by day.
func (s *Service) ForecastBalance(ctx context.Context, ownerID string, days int) (models.BalanceForecast, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if days <= 0 || days > 365 {
		days = 30
	}
	world, snapshot, err := s.sample()
	if err != nil {
		return models.BalanceForecast{}, err
	}
	account, err := s.ensureAccount(ownerID)
	if err != nil {
		return models.BalanceForecast{}, err
	}

	forecast := models.BalanceForecast{
		InitialBalance: account.Balance,
		ForecastedDays: days,
		DailyForecast:  make([]models.DailyBalance, 0, days),
	}

	clone := account.Clone()
	for i := 1; i <= days; i++ {
		day := world.Day + i
		outcome := clone.ApplyDailyTransactions(day, snapshot)
		forecast.DailyForecast = append(forecast.DailyForecast, models.DailyBalance{
			Day:          day,
			Interest:     outcome.AccountShare,
			LoanPayments: outcome.TotalPayments,
			Balance:      clone.Balance,
		})
	}
	return forecast, nil
}
