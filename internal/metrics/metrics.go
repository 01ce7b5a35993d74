package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Transfers counts deposit and withdrawal attempts by outcome
	Transfers = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ironbank_transfers_total",
			Help: "Deposit and withdrawal attempts",
		},
		[]string{"operation", "status"},
	)

	// LoansOriginated counts committed loans
	LoansOriginated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ironbank_loans_originated_total",
			Help: "Loans committed from quotes",
		},
	)

	// LoansRepaid counts loans pruned after full repayment
	LoansRepaid = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ironbank_loans_repaid_total",
			Help: "Loans fully repaid and removed",
		},
	)

	// SettlementRuns counts daily settlement passes by status
	SettlementRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ironbank_settlement_runs_total",
			Help: "Daily settlement passes",
		},
		[]string{"status"},
	)

	// Overdrafts counts accounts found overdrawn during settlement
	Overdrafts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ironbank_overdrafts_total",
			Help: "Accounts overdrawn at settlement time",
		},
	)

	// InterestDistributed accumulates interest credited to purses and accounts
	InterestDistributed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ironbank_interest_distributed_total",
			Help: "Interest amounts credited, by destination",
		},
		[]string{"destination"},
	)
)
