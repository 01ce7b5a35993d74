package models

// RegisterRequest is the payload for user registration
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	OwnerID  string `json:"owner_id"`
}

// LoginRequest is the payload for authentication
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TransferRequest is the payload for deposits and withdrawals
type TransferRequest struct {
	Amount int64 `json:"amount"`
}

// LoanRequest is the payload for quoting or taking a loan; zero delay or
// duration means the bank's default terms
type LoanRequest struct {
	Amount   int64 `json:"amount"`
	Delay    int   `json:"delay"`
	Duration int   `json:"duration"`
}
