package repository

import (
	"database/sql"
	"fmt"

	"github.com/ironbank/ironbank/internal/bank"
	"github.com/ironbank/ironbank/internal/models"
	"github.com/ironbank/ironbank/internal/utils"
)

// Repository provides database operations
type Repository struct {
	db         *sql.DB
	hmacSecret string
}

// NewRepository initializes a new repository
func NewRepository(db *sql.DB, hmacSecret string) *Repository {
	return &Repository{db: db, hmacSecret: hmacSecret}
}

// CreateUser creates a new user in the database
func (r *Repository) CreateUser(user *models.User) error {
	query := `
		INSERT INTO bank.users (username, email, password_hash, owner_id, created_at)
		VALUES ($1, $2, $3, $4, CURRENT_TIMESTAMP)
		RETURNING id, created_at`
	err := r.db.QueryRow(query, user.Username, user.Email, user.PasswordHash, user.OwnerID).
		Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// FindUserByEmail retrieves a user by email
func (r *Repository) FindUserByEmail(email string) (*models.User, error) {
	user := &models.User{}
	query := `
		SELECT id, username, email, password_hash, owner_id, created_at
		FROM bank.users
		WHERE email = $1`
	err := r.db.QueryRow(query, email).
		Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.OwnerID, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// FindUserByOwner retrieves a user by the campaign owner they bank as
func (r *Repository) FindUserByOwner(ownerID string) (*models.User, error) {
	user := &models.User{}
	query := `
		SELECT id, username, email, password_hash, owner_id, created_at
		FROM bank.users
		WHERE owner_id = $1`
	err := r.db.QueryRow(query, ownerID).
		Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.OwnerID, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// SaveAccount upserts an account and rewrites its loans in origination
// order, inside one transaction.
func (r *Repository) SaveAccount(account *bank.Account) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	hmacTag := utils.GenerateHMAC(account.OwnerID, account.AccountNumber, r.hmacSecret)
	query := `
		INSERT INTO bank.accounts (owner_id, account_number, balance, reinvestment_ratio, bank_reserve, hmac, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT (owner_id) DO UPDATE SET
			balance = EXCLUDED.balance,
			reinvestment_ratio = EXCLUDED.reinvestment_ratio,
			bank_reserve = EXCLUDED.bank_reserve,
			hmac = EXCLUDED.hmac,
			updated_at = CURRENT_TIMESTAMP`
	if _, err := tx.Exec(query, account.OwnerID, account.AccountNumber, account.Balance,
		account.ReinvestmentRatio, account.BankReserve, hmacTag); err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM bank.loans WHERE owner_id = $1`, account.OwnerID); err != nil {
		return fmt.Errorf("failed to clear loans: %w", err)
	}

	loanQuery := `
		INSERT INTO bank.loans (owner_id, position, principal, cost, remaining, daily_payment, origin_day, delay_days, duration_days, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, CURRENT_TIMESTAMP)`
	for position, loan := range account.Loans {
		if _, err := tx.Exec(loanQuery, loan.OwnerID, position, loan.Principal, loan.Cost,
			loan.Remaining, loan.DailyPayment, loan.OriginDay, loan.DelayDays, loan.DurationDays); err != nil {
			return fmt.Errorf("failed to save loan %d: %w", position, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit account: %w", err)
	}
	return nil
}

// LoadAccounts restores every account with its loans ordered by position
func (r *Repository) LoadAccounts() ([]*bank.Account, error) {
	rows, err := r.db.Query(`
		SELECT owner_id, account_number, balance, reinvestment_ratio, bank_reserve, hmac
		FROM bank.accounts
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to load accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*bank.Account
	for rows.Next() {
		account := &bank.Account{}
		var hmacTag string
		if err := rows.Scan(&account.OwnerID, &account.AccountNumber, &account.Balance,
			&account.ReinvestmentRatio, &account.BankReserve, &hmacTag); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		if !utils.VerifyHMAC(account.OwnerID, account.AccountNumber, r.hmacSecret, hmacTag) {
			return nil, fmt.Errorf("integrity check failed for account of %s", account.OwnerID)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %w", err)
	}

	for _, account := range accounts {
		loans, err := r.loadLoans(account.OwnerID)
		if err != nil {
			return nil, err
		}
		account.Loans = loans
	}
	return accounts, nil
}

func (r *Repository) loadLoans(ownerID string) ([]*bank.Loan, error) {
	rows, err := r.db.Query(`
		SELECT owner_id, principal, cost, remaining, daily_payment, origin_day, delay_days, duration_days
		FROM bank.loans
		WHERE owner_id = $1
		ORDER BY position`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load loans: %w", err)
	}
	defer rows.Close()

	var loans []*bank.Loan
	for rows.Next() {
		loan := &bank.Loan{}
		if err := rows.Scan(&loan.OwnerID, &loan.Principal, &loan.Cost, &loan.Remaining,
			&loan.DailyPayment, &loan.OriginDay, &loan.DelayDays, &loan.DurationDays); err != nil {
			return nil, fmt.Errorf("failed to scan loan: %w", err)
		}
		loans = append(loans, loan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate loans: %w", err)
	}
	return loans, nil
}

// RecordTransaction appends one ledger entry
func (r *Repository) RecordTransaction(transaction *models.Transaction) error {
	query := `
		INSERT INTO bank.transactions (owner_id, amount, type, day, description, created_at)
		VALUES ($1, $2, $3, $4, $5, CURRENT_TIMESTAMP)
		RETURNING id, created_at`
	err := r.db.QueryRow(query, transaction.OwnerID, transaction.Amount, transaction.Type,
		transaction.Day, transaction.Description).
		Scan(&transaction.ID, &transaction.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record transaction: %w", err)
	}
	return nil
}

// ListTransactions returns the most recent ledger entries for one owner
func (r *Repository) ListTransactions(ownerID string, limit int) ([]models.Transaction, error) {
	rows, err := r.db.Query(`
		SELECT id, owner_id, amount, type, day, description, created_at
		FROM bank.transactions
		WHERE owner_id = $1
		ORDER BY id DESC
		LIMIT $2`, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var transactions []models.Transaction
	for rows.Next() {
		var transaction models.Transaction
		if err := rows.Scan(&transaction.ID, &transaction.OwnerID, &transaction.Amount,
			&transaction.Type, &transaction.Day, &transaction.Description, &transaction.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, transaction)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}
	return transactions, nil
}
