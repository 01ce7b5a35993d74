package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/ironbank/ironbank/internal/bank"
	"github.com/ironbank/ironbank/internal/config"
	"github.com/ironbank/ironbank/internal/middleware"
	"github.com/ironbank/ironbank/internal/models"
	"github.com/ironbank/ironbank/internal/service"
)

// Handler exposes the bank over HTTP
type Handler struct {
	svc *service.Service
	log *logrus.Logger
}

// NewHandler initializes a new handler
func NewHandler(svc *service.Service, log *logrus.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// RegisterRoutes wires the public and protected routes
func (h *Handler) RegisterRoutes(r *mux.Router, cfg *config.Config) {
	// Public routes
	r.HandleFunc("/register", h.Register).Methods("POST")
	r.HandleFunc("/login", h.Login).Methods("POST")
	r.HandleFunc("/health", h.Health).Methods("GET")

	// Protected routes
	authRouter := r.PathPrefix("/bank").Subrouter()
	authRouter.Use(middleware.AuthMiddleware(cfg))
	authRouter.HandleFunc("/account", h.GetAccount).Methods("GET")
	authRouter.HandleFunc("/deposit", h.Deposit).Methods("POST")
	authRouter.HandleFunc("/withdraw", h.Withdraw).Methods("POST")
	authRouter.HandleFunc("/rates", h.Rates).Methods("GET")
	authRouter.HandleFunc("/interests", h.EstimateInterests).Methods("GET")
	authRouter.HandleFunc("/forecast", h.Forecast).Methods("GET")
	authRouter.HandleFunc("/transactions", h.ListTransactions).Methods("GET")
	authRouter.HandleFunc("/loans", h.Loans).Methods("GET")
	authRouter.HandleFunc("/loans/capacity", h.LoanCapacity).Methods("GET")
	authRouter.HandleFunc("/loans/quote", h.QuoteLoan).Methods("POST")
	authRouter.HandleFunc("/loans", h.TakeLoan).Methods("POST")
	authRouter.HandleFunc("/settlement/run", h.RunSettlement).Methods("POST")
}

// Health reports service liveness
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Register handles user registration
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user, err := h.svc.Register(req.Username, req.Email, req.Password, req.OwnerID)
	if err != nil {
		h.log.WithError(err).Error("Registration failed")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// Login handles user authentication
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	token, err := h.svc.Login(req.Email, req.Password)
	if err != nil {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// GetAccount returns the caller's bank account
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := ownerFromContext(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	account, err := h.svc.GetAccount(r.Context(), ownerID)
	if err != nil {
		h.log.WithError(err).Error("Failed to get account")
		http.Error(w, "Failed to get account", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// Deposit handles a purse-to-account transfer
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	h.transfer(w, r, h.svc.Deposit)
}

// Withdraw handles an account-to-purse transfer
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.transfer(w, r, h.svc.Withdraw)
}

// transfer runs a deposit or withdrawal. A refused transfer is reported as
// 422 with the unchanged balances; the caller surfaces the failure message.
func (h *Handler) transfer(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, ownerID string, amount int64) (bank.TransferOutcome, error)) {
	ownerID, ok := ownerFromContext(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req models.TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	outcome, err := op(r.Context(), ownerID, req.Amount)
	if err != nil {
		h.log.WithError(err).Error("Transfer failed")
		http.Error(w, "Transfer failed", http.StatusInternalServerError)
		return
	}
	if !outcome.Applied {
		writeJSON(w, http.StatusUnprocessableEntity, outcome)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

// Rates returns the current rate snapshot
func (h *Handler) Rates(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.svc.Rates(r.Context())
	if err != nil {
		h.log.WithError(err).Error("Failed to compute rates")
		http.Error(w, "Failed to compute rates", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// EstimateInterests previews today's interest split
func (h *Handler) EstimateInterests(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := ownerFromContext(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	purseShare, accountShare, err := h.svc.EstimateInterests(r.Context(), ownerID)
	if err != nil {
		h.log.WithError(err).Error("Failed to estimate interests")
		http.Error(w, "Failed to estimate interests", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{
		"purse_share":   purseShare,
		"account_share": accountShare,
	})
}

// Forecast projects the account balance over the coming days
func (h *Handler) Forecast(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := ownerFromContext(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	days, _ := strconv.Atoi(r.URL.Query().Get("days"))
	forecast, err := h.svc.ForecastBalance(r.Context(), ownerID, days)
	if err != nil {
		h.log.WithError(err).Error("Failed to forecast balance")
		http.Error(w, "Failed to forecast balance", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, forecast)
}

// ListTransactions returns the caller's recent ledger entries
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := ownerFromContext(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	transactions, err := h.svc.ListTransactions(r.Context(), ownerID, limit)
	if err != nil {
		h.log.WithError(err).Error("Failed to list transactions")
		http.Error(w, "Failed to list transactions", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, transactions)
}

// Loans returns the caller's active loans and debt load
func (h *Handler) Loans(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := ownerFromContext(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	loans, burden, err := h.svc.Loans(r.Context(), ownerID)
	if err != nil {
		h.log.WithError(err).Error("Failed to list loans")
		http.Error(w, "Failed to list loans", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"loans":  loans,
		"burden": burden,
	})
}

// LoanCapacity returns the caller's borrowing envelope
func (h *Handler) LoanCapacity(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := ownerFromContext(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	capacity, err := h.svc.LoanCapacity(r.Context(), ownerID)
	if err != nil {
		h.log.WithError(err).Error("Failed to compute capacity")
		http.Error(w, "Failed to compute capacity", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, capacity)
}

// QuoteLoan simulates a loan without committing it
func (h *Handler) QuoteLoan(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := ownerFromContext(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req models.LoanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	offer, err := h.svc.QuoteLoan(r.Context(), ownerID, req)
	if err != nil {
		h.log.WithError(err).Error("Failed to quote loan")
		http.Error(w, "Failed to quote loan", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, offer)
}

// TakeLoan commits a loan at the current rate
func (h *Handler) TakeLoan(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := ownerFromContext(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req models.LoanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	outcome, err := h.svc.TakeLoan(r.Context(), ownerID, req)
	if err != nil {
		h.log.WithError(err).Error("Failed to take loan")
		http.Error(w, "Failed to take loan", http.StatusInternalServerError)
		return
	}
	if !outcome.Applied {
		writeJSON(w, http.StatusUnprocessableEntity, outcome)
		return
	}
	writeJSON(w, http.StatusCreated, outcome)
}

// RunSettlement triggers the daily settlement pass manually
func (h *Handler) RunSettlement(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.RunDailySettlement(r.Context()); err != nil {
		h.log.WithError(err).Error("Settlement failed")
		http.Error(w, "Settlement failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "settled"})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func ownerFromContext(r *http.Request) (string, bool) {
	ownerID, ok := r.Context().Value(middleware.OwnerIDKey).(string)
	return ownerID, ok && ownerID != ""
}
