package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ironbank/ironbank/internal/bank"
	"github.com/ironbank/ironbank/internal/config"
	"github.com/ironbank/ironbank/internal/integrations/campaign"
	"github.com/ironbank/ironbank/internal/metrics"
	"github.com/ironbank/ironbank/internal/models"
	"github.com/ironbank/ironbank/internal/rates"
	"github.com/ironbank/ironbank/internal/utils"
)

// Store is the persistence boundary of the service
type Store interface {
	CreateUser(user *models.User) error
	FindUserByEmail(email string) (*models.User, error)
	FindUserByOwner(ownerID string) (*models.User, error)
	SaveAccount(account *bank.Account) error
	LoadAccounts() ([]*bank.Account, error)
	RecordTransaction(transaction *models.Transaction) error
	ListTransactions(ownerID string, limit int) ([]models.Transaction, error)
}

// Gateway is the campaign-host boundary: the upstream signals the bank
// consumes and the downstream effects it requests.
type Gateway interface {
	WorldState() (campaign.WorldState, error)
	OwnerState(ownerID string) (campaign.OwnerState, error)
	CreditPurse(ownerID string, delta int64) error
	ApplyRenown(ownerID string, delta float64) error
	Notify(ownerID, message string, amount int64) error
}

// Mailer sends out-of-band notifications to account owners
type Mailer interface {
	SendOverdraftWarning(to, username string, balance int64, penalty float64, day int) error
	SendSettlementSummary(to, username string, day int, purseShare, accountShare, totalPayments int64) error
}

// Service handles business logic
type Service struct {
	store    Store
	registry *bank.Registry
	gateway  Gateway
	scales   rates.ScaleProvider
	mailer   Mailer
	config   *config.Config
	log      *logrus.Logger

	// Serializes transfers, origination and settlement; the core assumes a
	// single logical thread per account while the HTTP host is concurrent.
	mu             sync.Mutex
	lastSettledDay int

	// settledOwners records who already settled on settlingDay, so an
	// interrupted pass resumes where it stopped.
	settlingDay   int
	settledOwners map[string]struct{}
}

// NewService initializes a new service
func NewService(store Store, registry *bank.Registry, gateway Gateway, scales rates.ScaleProvider,
	mailer Mailer, cfg *config.Config, log *logrus.Logger) *Service {
	return &Service{
		store:          store,
		registry:       registry,
		gateway:        gateway,
		scales:         scales,
		mailer:         mailer,
		config:         cfg,
		log:            log,
		lastSettledDay: -1,
		settlingDay:    -1,
	}
}

// LoadState restores all persisted accounts into the registry
func (s *Service) LoadState() error {
	accounts, err := s.store.LoadAccounts()
	if err != nil {
		return fmt.Errorf("failed to restore accounts: %w", err)
	}
	for _, account := range accounts {
		s.registry.Put(account)
	}
	s.log.Infof("Restored %d bank accounts", len(accounts))
	return nil
}

// sample returns the current world state and the rates derived from it.
// Volatility and scales are read fresh on every call, never cached.
func (s *Service) sample() (campaign.WorldState, rates.Snapshot, error) {
	world, err := s.gateway.WorldState()
	if err != nil {
		return campaign.WorldState{}, rates.Snapshot{}, fmt.Errorf("failed to sample world state: %w", err)
	}
	return world, rates.Compute(world.Volatility, s.scales.Scales()), nil
}

// Rates returns the current rate snapshot
func (s *Service) Rates(ctx context.Context) (rates.Snapshot, error) {
	_, snapshot, err := s.sample()
	return snapshot, err
}

// GetAccount returns the owner's account, opening one on first access
func (s *Service) GetAccount(ctx context.Context, ownerID string) (*bank.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureAccount(ownerID)
}

// ensureAccount fetches or lazily opens the owner's account. Callers hold mu.
func (s *Service) ensureAccount(ownerID string) (*bank.Account, error) {
	account, created := s.registry.GetOrCreate(ownerID, s.config.ReinvestmentRatio)
	if !created {
		return account, nil
	}

	number, err := utils.GenerateAccountNumber("IB", 16)
	if err != nil {
		return nil, fmt.Errorf("failed to generate account number: %w", err)
	}
	account.AccountNumber = number
	if err := s.store.SaveAccount(account); err != nil {
		return nil, err
	}

	s.log.Infof("Account %s opened for %s", account.AccountNumber, ownerID)
	return account, nil
}

// Deposit moves amount from the owner's purse into their account. A deposit
// whose predicate fails is a no-op outcome, not an error.
func (s *Service) Deposit(ctx context.Context, ownerID string, amount int64) (bank.TransferOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	world, snapshot, err := s.sample()
	if err != nil {
		return bank.TransferOutcome{}, err
	}
	owner, err := s.gateway.OwnerState(ownerID)
	if err != nil {
		return bank.TransferOutcome{}, fmt.Errorf("failed to fetch owner state: %w", err)
	}
	account, err := s.ensureAccount(ownerID)
	if err != nil {
		return bank.TransferOutcome{}, err
	}

	// Staged on a copy and committed only after the purse debit went
	// through, so a gateway failure leaves the account untouched.
	staged := account.Clone()
	outcome := staged.Deposit(amount, owner.PurseBalance, snapshot)
	if !outcome.Applied {
		metrics.Transfers.WithLabelValues("deposit", "refused").Inc()
		s.log.Warnf("Deposit of %d refused for %s", amount, ownerID)
		return outcome, nil
	}

	if err := s.gateway.CreditPurse(ownerID, -amount); err != nil {
		return bank.TransferOutcome{}, fmt.Errorf("failed to debit purse: %w", err)
	}
	s.registry.Put(staged)

	if outcome.Tax > 0 {
		s.notify(ownerID, fmt.Sprintf("Iron Bank: a tax of %d was collected on your deposit.", outcome.Tax), -outcome.Tax)
	}
	s.record(ownerID, amount-outcome.Tax, models.TransactionTypeDeposit, world.Day,
		fmt.Sprintf("deposit of %d, tax %d", amount, outcome.Tax))
	if err := s.store.SaveAccount(staged); err != nil {
		return outcome, err
	}

	metrics.Transfers.WithLabelValues("deposit", "applied").Inc()
	s.log.Infof("Deposit of %d applied for %s, balance %d", amount, ownerID, outcome.Balance)
	return outcome, nil
}

// Withdraw moves amount from the account back to the owner's purse
func (s *Service) Withdraw(ctx context.Context, ownerID string, amount int64) (bank.TransferOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	world, snapshot, err := s.sample()
	if err != nil {
		return bank.TransferOutcome{}, err
	}
	owner, err := s.gateway.OwnerState(ownerID)
	if err != nil {
		return bank.TransferOutcome{}, fmt.Errorf("failed to fetch owner state: %w", err)
	}
	account, err := s.ensureAccount(ownerID)
	if err != nil {
		return bank.TransferOutcome{}, err
	}

	staged := account.Clone()
	outcome := staged.Withdraw(amount, owner.PurseBalance, snapshot)
	if !outcome.Applied {
		metrics.Transfers.WithLabelValues("withdrawal", "refused").Inc()
		s.log.Warnf("Withdrawal of %d refused for %s", amount, ownerID)
		return outcome, nil
	}

	if err := s.gateway.CreditPurse(ownerID, amount-outcome.Tax); err != nil {
		return bank.TransferOutcome{}, fmt.Errorf("failed to credit purse: %w", err)
	}
	s.registry.Put(staged)

	if outcome.Tax > 0 {
		s.notify(ownerID, fmt.Sprintf("Iron Bank: a tax of %d was collected on your withdrawal.", outcome.Tax), -outcome.Tax)
	}
	s.record(ownerID, -amount, models.TransactionTypeWithdrawal, world.Day,
		fmt.Sprintf("withdrawal of %d, tax %d", amount, outcome.Tax))
	if err := s.store.SaveAccount(staged); err != nil {
		return outcome, err
	}

	metrics.Transfers.WithLabelValues("withdrawal", "applied").Inc()
	s.log.Infof("Withdrawal of %d applied for %s, balance %d", amount, ownerID, outcome.Balance)
	return outcome, nil
}

// EstimateInterests previews today's interest split without applying it
func (s *Service) EstimateInterests(ctx context.Context, ownerID string) (purseShare, accountShare int64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, snapshot, err := s.sample()
	if err != nil {
		return 0, 0, err
	}
	account, err := s.ensureAccount(ownerID)
	if err != nil {
		return 0, 0, err
	}
	purseShare, accountShare = account.EstimateInterests(snapshot)
	return purseShare, accountShare, nil
}

// Loans returns the owner's active loans and their current debt load
func (s *Service) Loans(ctx context.Context, ownerID string) ([]*bank.Loan, models.LoanBurden, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, err := s.ensureAccount(ownerID)
	if err != nil {
		return nil, models.LoanBurden{}, err
	}

	burden := models.LoanBurden{
		DailyPayments: account.DailyLoanPayments(),
		Outstanding:   account.OutstandingPrincipal(),
	}
	if account.Balance > 0 {
		burden.BurdenRatio = float64(-burden.DailyPayments) / float64(account.Balance)
	}
	return account.Loans, burden, nil
}

// ListTransactions returns the owner's recent ledger entries
func (s *Service) ListTransactions(ctx context.Context, ownerID string, limit int) ([]models.Transaction, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.store.ListTransactions(ownerID, limit)
}

// notify dispatches an in-game notification, logging failures instead of
// failing the operation that triggered it.
func (s *Service) notify(ownerID, message string, amount int64) {
	if err := s.gateway.Notify(ownerID, message, amount); err != nil {
		s.log.WithError(err).Warnf("Failed to notify %s", ownerID)
	}
}

// record appends a ledger entry, logging failures instead of failing the
// financial operation itself.
func (s *Service) record(ownerID string, amount int64, transactionType string, day int, description string) {
	transaction := &models.Transaction{
		OwnerID:     ownerID,
		Amount:      amount,
		Type:        transactionType,
		Day:         day,
		Description: description,
	}
	if err := s.store.RecordTransaction(transaction); err != nil {
		s.log.WithError(err).Warnf("Failed to record %s transaction for %s", transactionType, ownerID)
	}
}
