package models

// Transaction types recorded in the ledger
const (
	TransactionTypeDeposit       = "deposit"
	TransactionTypeWithdrawal    = "withdrawal"
	TransactionTypeInterest      = "interest"
	TransactionTypeLoanPrincipal = "loan_principal"
	TransactionTypeLoanPayment   = "loan_payment"
)

// Transaction represents one ledger entry recorded against an account
type Transaction struct {
	ID          int64  `json:"id"`
	OwnerID     string `json:"owner_id"`
	Amount      int64  `json:"amount"` // signed, negative for money leaving the account
	Type        string `json:"type"`
	Day         int    `json:"day"` // simulated day the entry belongs to
	Description string `json:"description"`
	CreatedAt   string `json:"created_at"`
}
