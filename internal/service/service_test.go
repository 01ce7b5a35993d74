package service

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/ironbank/ironbank/internal/bank"
	"github.com/ironbank/ironbank/internal/config"
	"github.com/ironbank/ironbank/internal/integrations/campaign"
	"github.com/ironbank/ironbank/internal/models"
	"github.com/ironbank/ironbank/internal/rates"
)

type fakeStore struct {
	users        map[string]*models.User
	saves        int
	transactions []models.Transaction
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: make(map[string]*models.User)}
}

func (s *fakeStore) CreateUser(user *models.User) error {
	s.users[user.OwnerID] = user
	return nil
}

func (s *fakeStore) FindUserByEmail(email string) (*models.User, error) {
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, errors.New("user not found")
}

func (s *fakeStore) FindUserByOwner(ownerID string) (*models.User, error) {
	u, ok := s.users[ownerID]
	if !ok {
		return nil, errors.New("user not found")
	}
	return u, nil
}

func (s *fakeStore) SaveAccount(account *bank.Account) error {
	s.saves++
	return nil
}

func (s *fakeStore) LoadAccounts() ([]*bank.Account, error) { return nil, nil }

func (s *fakeStore) RecordTransaction(transaction *models.Transaction) error {
	s.transactions = append(s.transactions, *transaction)
	return nil
}

func (s *fakeStore) ListTransactions(ownerID string, limit int) ([]models.Transaction, error) {
	var out []models.Transaction
	for _, tx := range s.transactions {
		if tx.OwnerID == ownerID && len(out) < limit {
			out = append(out, tx)
		}
	}
	return out, nil
}

type fakeGateway struct {
	day        int
	volatility float64
	purse      int64
	standing   float64

	credits  []int64
	renown   []float64
	messages []string
}

func (g *fakeGateway) WorldState() (campaign.WorldState, error) {
	return campaign.WorldState{Day: g.day, Volatility: g.volatility}, nil
}

func (g *fakeGateway) OwnerState(ownerID string) (campaign.OwnerState, error) {
	return campaign.OwnerState{Name: "Test Owner", PurseBalance: g.purse, Standing: g.standing}, nil
}

func (g *fakeGateway) CreditPurse(ownerID string, delta int64) error {
	g.purse += delta
	g.credits = append(g.credits, delta)
	return nil
}

func (g *fakeGateway) ApplyRenown(ownerID string, delta float64) error {
	g.renown = append(g.renown, delta)
	return nil
}

func (g *fakeGateway) Notify(ownerID, message string, amount int64) error {
	g.messages = append(g.messages, message)
	return nil
}

func newTestService(store Store, gateway Gateway) *Service {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	cfg := &config.Config{
		JWTSecret:         "test-secret",
		SeasonLength:      21,
		ReinvestmentRatio: 0.2,
	}
	scales := rates.StaticScaleProvider{Fixed: rates.DefaultScales()}
	return NewService(store, bank.NewRegistry(), gateway, scales, nil, cfg, logger)
}

func TestDeposit(t *testing.T) {
	store := newFakeStore()
	gateway := &fakeGateway{day: 100, purse: 5000}
	svc := newTestService(store, gateway)

	outcome, err := svc.Deposit(context.Background(), "hero_1", 1000)
	if err != nil {
		t.Fatalf("Deposit() error = %v", err)
	}
	if !outcome.Applied {
		t.Fatal("Deposit() was refused")
	}
	if outcome.Balance != 990 || outcome.Tax != 10 {
		t.Errorf("Deposit() balance = %d, tax = %d, want 990, 10", outcome.Balance, outcome.Tax)
	}
	if gateway.purse != 4000 {
		t.Errorf("purse = %d after deposit, want 4000", gateway.purse)
	}
	if len(store.transactions) != 1 || store.transactions[0].Type != models.TransactionTypeDeposit {
		t.Errorf("transactions = %+v, want one deposit entry", store.transactions)
	}
	if store.transactions[0].Amount != 990 {
		t.Errorf("recorded amount = %d, want net 990", store.transactions[0].Amount)
	}
}

func TestDepositRefusedLeavesEverythingUntouched(t *testing.T) {
	store := newFakeStore()
	gateway := &fakeGateway{day: 100, purse: 500}
	svc := newTestService(store, gateway)

	outcome, err := svc.Deposit(context.Background(), "hero_1", 1000)
	if err != nil {
		t.Fatalf("Deposit() error = %v", err)
	}
	if outcome.Applied {
		t.Fatal("Deposit() beyond the purse balance was applied")
	}
	if gateway.purse != 500 {
		t.Errorf("purse = %d after refused deposit, want 500", gateway.purse)
	}
	if len(gateway.credits) != 0 {
		t.Errorf("purse credits = %v after refused deposit, want none", gateway.credits)
	}
	if len(store.transactions) != 0 {
		t.Errorf("transactions = %+v after refused deposit, want none", store.transactions)
	}
}

func TestWithdraw(t *testing.T) {
	store := newFakeStore()
	gateway := &fakeGateway{day: 100, purse: 5000}
	svc := newTestService(store, gateway)

	if _, err := svc.Deposit(context.Background(), "hero_1", 1000); err != nil {
		t.Fatalf("Deposit() error = %v", err)
	}

	outcome, err := svc.Withdraw(context.Background(), "hero_1", 200)
	if err != nil {
		t.Fatalf("Withdraw() error = %v", err)
	}
	if !outcome.Applied {
		t.Fatal("Withdraw() was refused")
	}
	if outcome.Balance != 790 || outcome.Tax != 3 {
		t.Errorf("Withdraw() balance = %d, tax = %d, want 790, 3", outcome.Balance, outcome.Tax)
	}
	// 5000 - 1000 deposited + 197 back after the withdrawal tax.
	if gateway.purse != 4197 {
		t.Errorf("purse = %d after withdrawal, want 4197", gateway.purse)
	}
}

func TestTakeLoan(t *testing.T) {
	store := newFakeStore()
	gateway := &fakeGateway{day: 100, purse: 0, standing: 2000}
	svc := newTestService(store, gateway)

	outcome, err := svc.TakeLoan(context.Background(), "hero_1", models.LoanRequest{Amount: 100})
	if err != nil {
		t.Fatalf("TakeLoan() error = %v", err)
	}
	if !outcome.Applied {
		t.Fatal("TakeLoan() within capacity was refused")
	}
	if outcome.Loan.Principal != 100 || outcome.Loan.Cost != 46 || outcome.Loan.DailyPayment != -4 {
		t.Errorf("loan = %+v, want principal 100, cost 46, payment -4", outcome.Loan)
	}
	if gateway.purse != 100 {
		t.Errorf("purse = %d after origination, want 100", gateway.purse)
	}

	account, err := svc.GetAccount(context.Background(), "hero_1")
	if err != nil {
		t.Fatalf("GetAccount() error = %v", err)
	}
	if len(account.Loans) != 1 {
		t.Fatalf("account has %d loans, want 1", len(account.Loans))
	}
}

func TestTakeLoanRefusedBeyondCapacity(t *testing.T) {
	store := newFakeStore()
	gateway := &fakeGateway{day: 100, standing: 10}
	svc := newTestService(store, gateway)

	// Standing 10 caps borrowing at 504; ask for far more.
	outcome, err := svc.TakeLoan(context.Background(), "hero_1", models.LoanRequest{Amount: 1_000_000})
	if err != nil {
		t.Fatalf("TakeLoan() error = %v", err)
	}
	if outcome.Applied {
		t.Fatal("TakeLoan() beyond capacity was applied")
	}
	if len(gateway.credits) != 0 {
		t.Errorf("purse credits = %v after refused loan, want none", gateway.credits)
	}
}

func TestQuoteLoanDoesNotCommit(t *testing.T) {
	store := newFakeStore()
	gateway := &fakeGateway{day: 100, standing: 2000}
	svc := newTestService(store, gateway)

	offer, err := svc.QuoteLoan(context.Background(), "hero_1", models.LoanRequest{Amount: 100})
	if err != nil {
		t.Fatalf("QuoteLoan() error = %v", err)
	}
	if !offer.Eligible {
		t.Error("quote within capacity reported ineligible")
	}
	if offer.Quote.Total != 146 {
		t.Errorf("quote total = %d, want 146", offer.Quote.Total)
	}
	if len(offer.Schedule) == 0 {
		t.Error("quote has no projected schedule")
	}

	account, err := svc.GetAccount(context.Background(), "hero_1")
	if err != nil {
		t.Fatalf("GetAccount() error = %v", err)
	}
	if len(account.Loans) != 0 {
		t.Errorf("quote committed %d loans", len(account.Loans))
	}
}

func TestRunDailySettlement(t *testing.T) {
	store := newFakeStore()
	gateway := &fakeGateway{day: 200, purse: 5000}
	svc := newTestService(store, gateway)

	if _, err := svc.Deposit(context.Background(), "hero_1", 1000); err != nil {
		t.Fatalf("Deposit() error = %v", err)
	}
	gateway.credits = nil

	if err := svc.RunDailySettlement(context.Background()); err != nil {
		t.Fatalf("RunDailySettlement() error = %v", err)
	}

	// Balance 990 at 0.5% interest: gross 4, purse floor(0.8*4*0.985)=3,
	// account ceil(0.2*4)=1.
	account, err := svc.GetAccount(context.Background(), "hero_1")
	if err != nil {
		t.Fatalf("GetAccount() error = %v", err)
	}
	if account.Balance != 991 {
		t.Errorf("balance = %d after settlement, want 991", account.Balance)
	}
	if len(gateway.credits) != 1 || gateway.credits[0] != 3 {
		t.Errorf("purse credits = %v, want [3]", gateway.credits)
	}

	// The same simulated day settles only once.
	if err := svc.RunDailySettlement(context.Background()); err != nil {
		t.Fatalf("second RunDailySettlement() error = %v", err)
	}
	if account.Balance != 991 {
		t.Errorf("balance = %d after repeated settlement, want 991", account.Balance)
	}
	if len(gateway.credits) != 1 {
		t.Errorf("purse credits = %v after repeated settlement, want [3]", gateway.credits)
	}

	// A new day settles again.
	gateway.day = 201
	if err := svc.RunDailySettlement(context.Background()); err != nil {
		t.Fatalf("next-day RunDailySettlement() error = %v", err)
	}
	if len(gateway.credits) != 2 {
		t.Errorf("purse credits = %v after next-day settlement, want two entries", gateway.credits)
	}
}

func TestForecastBalanceLeavesAccountUntouched(t *testing.T) {
	store := newFakeStore()
	gateway := &fakeGateway{day: 200, purse: 5000}
	svc := newTestService(store, gateway)

	if _, err := svc.Deposit(context.Background(), "hero_1", 1000); err != nil {
		t.Fatalf("Deposit() error = %v", err)
	}

	forecast, err := svc.ForecastBalance(context.Background(), "hero_1", 10)
	if err != nil {
		t.Fatalf("ForecastBalance() error = %v", err)
	}
	if forecast.InitialBalance != 990 || forecast.ForecastedDays != 10 {
		t.Errorf("forecast = %+v, want initial 990 over 10 days", forecast)
	}
	if len(forecast.DailyForecast) != 10 {
		t.Fatalf("forecast has %d days, want 10", len(forecast.DailyForecast))
	}
	if last := forecast.DailyForecast[9].Balance; last <= 990 {
		t.Errorf("forecasted balance = %d after 10 days of interest, want growth", last)
	}

	account, err := svc.GetAccount(context.Background(), "hero_1")
	if err != nil {
		t.Fatalf("GetAccount() error = %v", err)
	}
	if account.Balance != 990 {
		t.Errorf("balance = %d after forecast, want untouched 990", account.Balance)
	}
}

// failingGateway refuses purse mutations on demand while keeping the rest
// of the fake behavior.
type failingGateway struct {
	*fakeGateway
	failCredits bool
}

func (g *failingGateway) CreditPurse(ownerID string, delta int64) error {
	if g.failCredits {
		return errors.New("campaign host unavailable")
	}
	return g.fakeGateway.CreditPurse(ownerID, delta)
}

// cancelOnSaveStore cancels the given context on the first save after being
// armed, interrupting a settlement pass mid-loop.
type cancelOnSaveStore struct {
	*fakeStore
	cancel context.CancelFunc
	armed  bool
}

func (s *cancelOnSaveStore) SaveAccount(account *bank.Account) error {
	if s.armed {
		s.armed = false
		s.cancel()
	}
	return s.fakeStore.SaveAccount(account)
}

func TestDepositGatewayFailureLeavesAccountUntouched(t *testing.T) {
	store := newFakeStore()
	inner := &fakeGateway{day: 100, purse: 5000}
	gateway := &failingGateway{fakeGateway: inner, failCredits: true}
	svc := newTestService(store, gateway)

	if _, err := svc.Deposit(context.Background(), "hero_1", 1000); err == nil {
		t.Fatal("Deposit() with an unreachable host returned no error")
	}

	account, err := svc.GetAccount(context.Background(), "hero_1")
	if err != nil {
		t.Fatalf("GetAccount() error = %v", err)
	}
	if account.Balance != 0 || account.BankReserve != 0 {
		t.Errorf("balance = %d, reserve = %d after failed purse debit, want 0, 0", account.Balance, account.BankReserve)
	}
	if inner.purse != 5000 {
		t.Errorf("purse = %d after failed deposit, want 5000", inner.purse)
	}
	if len(store.transactions) != 0 {
		t.Errorf("transactions = %+v after failed deposit, want none", store.transactions)
	}
}

func TestWithdrawGatewayFailureLeavesAccountUntouched(t *testing.T) {
	store := newFakeStore()
	inner := &fakeGateway{day: 100, purse: 5000}
	gateway := &failingGateway{fakeGateway: inner}
	svc := newTestService(store, gateway)

	if _, err := svc.Deposit(context.Background(), "hero_1", 1000); err != nil {
		t.Fatalf("Deposit() error = %v", err)
	}

	gateway.failCredits = true
	if _, err := svc.Withdraw(context.Background(), "hero_1", 200); err == nil {
		t.Fatal("Withdraw() with an unreachable host returned no error")
	}

	account, err := svc.GetAccount(context.Background(), "hero_1")
	if err != nil {
		t.Fatalf("GetAccount() error = %v", err)
	}
	if account.Balance != 990 {
		t.Errorf("balance = %d after failed purse credit, want untouched 990", account.Balance)
	}
	if inner.purse != 4000 {
		t.Errorf("purse = %d after failed withdrawal, want 4000", inner.purse)
	}
}

func TestTakeLoanGatewayFailureAddsNoLoan(t *testing.T) {
	store := newFakeStore()
	inner := &fakeGateway{day: 100, standing: 2000}
	gateway := &failingGateway{fakeGateway: inner, failCredits: true}
	svc := newTestService(store, gateway)

	if _, err := svc.TakeLoan(context.Background(), "hero_1", models.LoanRequest{Amount: 100}); err == nil {
		t.Fatal("TakeLoan() with an unreachable host returned no error")
	}

	account, err := svc.GetAccount(context.Background(), "hero_1")
	if err != nil {
		t.Fatalf("GetAccount() error = %v", err)
	}
	if len(account.Loans) != 0 {
		t.Errorf("account has %d loans after failed payout, want none", len(account.Loans))
	}
	if inner.purse != 0 {
		t.Errorf("purse = %d after failed payout, want 0", inner.purse)
	}
}

func TestSettlementGatewayFailureKeepsAccountRetriable(t *testing.T) {
	store := newFakeStore()
	inner := &fakeGateway{day: 300, purse: 5000}
	gateway := &failingGateway{fakeGateway: inner}
	svc := newTestService(store, gateway)

	if _, err := svc.Deposit(context.Background(), "hero_1", 1000); err != nil {
		t.Fatalf("Deposit() error = %v", err)
	}
	inner.credits = nil

	// The interest payout fails: the account must keep its pre-settlement
	// state instead of accruing a day the purse never saw.
	gateway.failCredits = true
	if err := svc.RunDailySettlement(context.Background()); err != nil {
		t.Fatalf("RunDailySettlement() error = %v", err)
	}

	account, err := svc.GetAccount(context.Background(), "hero_1")
	if err != nil {
		t.Fatalf("GetAccount() error = %v", err)
	}
	if account.Balance != 990 {
		t.Errorf("balance = %d after failed payout, want untouched 990", account.Balance)
	}
	if len(inner.credits) != 0 {
		t.Errorf("purse credits = %v after failed payout, want none", inner.credits)
	}

	// The next day settles normally once the host is back.
	gateway.failCredits = false
	inner.day = 301
	if err := svc.RunDailySettlement(context.Background()); err != nil {
		t.Fatalf("next-day RunDailySettlement() error = %v", err)
	}
	account, err = svc.GetAccount(context.Background(), "hero_1")
	if err != nil {
		t.Fatalf("GetAccount() error = %v", err)
	}
	if account.Balance != 991 {
		t.Errorf("balance = %d after recovery, want 991", account.Balance)
	}
	if len(inner.credits) != 1 || inner.credits[0] != 3 {
		t.Errorf("purse credits = %v after recovery, want [3]", inner.credits)
	}
}

func TestSettlementResumesAfterInterruption(t *testing.T) {
	base := newFakeStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store := &cancelOnSaveStore{fakeStore: base, cancel: cancel}
	gateway := &fakeGateway{day: 200, purse: 5000}
	svc := newTestService(store, gateway)

	if _, err := svc.Deposit(context.Background(), "hero_1", 1000); err != nil {
		t.Fatalf("Deposit() error = %v", err)
	}
	if _, err := svc.Deposit(context.Background(), "hero_2", 1000); err != nil {
		t.Fatalf("Deposit() error = %v", err)
	}
	gateway.credits = nil

	// The pass is cut off after the first account settles.
	store.armed = true
	if err := svc.RunDailySettlement(ctx); err == nil {
		t.Fatal("interrupted RunDailySettlement() returned no error")
	}

	first, err := svc.GetAccount(context.Background(), "hero_1")
	if err != nil {
		t.Fatalf("GetAccount() error = %v", err)
	}
	second, err := svc.GetAccount(context.Background(), "hero_2")
	if err != nil {
		t.Fatalf("GetAccount() error = %v", err)
	}
	if first.Balance != 991 || second.Balance != 990 {
		t.Fatalf("balances = %d, %d after interruption, want 991, 990", first.Balance, second.Balance)
	}

	// Retrying the same day settles only the remaining account; the one
	// that already settled must not accrue the day twice.
	if err := svc.RunDailySettlement(context.Background()); err != nil {
		t.Fatalf("resumed RunDailySettlement() error = %v", err)
	}

	first, err = svc.GetAccount(context.Background(), "hero_1")
	if err != nil {
		t.Fatalf("GetAccount() error = %v", err)
	}
	second, err = svc.GetAccount(context.Background(), "hero_2")
	if err != nil {
		t.Fatalf("GetAccount() error = %v", err)
	}
	if first.Balance != 991 {
		t.Errorf("balance = %d after resumed pass, want 991 settled once", first.Balance)
	}
	if second.Balance != 991 {
		t.Errorf("balance = %d after resumed pass, want 991", second.Balance)
	}
	if len(gateway.credits) != 2 {
		t.Errorf("purse credits = %v across both passes, want one per account", gateway.credits)
	}

	// The completed day stays settled.
	if err := svc.RunDailySettlement(context.Background()); err != nil {
		t.Fatalf("repeated RunDailySettlement() error = %v", err)
	}
	if len(gateway.credits) != 2 {
		t.Errorf("purse credits = %v after repeated pass, want no new entries", gateway.credits)
	}
}

func TestRegisterAndLogin(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeGateway{day: 1})

	user, err := svc.Register("arya", "arya@braavos.example", "valar-morghulis", "hero_9")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if user.PasswordHash == "valar-morghulis" {
		t.Error("password stored in the clear")
	}

	token, err := svc.Login("arya@braavos.example", "valar-morghulis")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if token == "" {
		t.Error("Login() returned an empty token")
	}

	if _, err := svc.Login("arya@braavos.example", "wrong"); err == nil {
		t.Error("Login() with a wrong password succeeded")
	}
}
