package models

// BalanceForecast represents the projected account balance for N days
type BalanceForecast struct {
	InitialBalance int64          `json:"initial_balance"`
	ForecastedDays int            `json:"forecasted_days"`
	DailyForecast  []DailyBalance `json:"daily_forecast"`
}

// DailyBalance represents the projected balance for a specific day
type DailyBalance struct {
	Day          int   `json:"day"`
	Interest     int64 `json:"interest"`      // share reinvested into the account
	LoanPayments int64 `json:"loan_payments"` // non-positive
	Balance      int64 `json:"balance"`
}

// LoanBurden represents the account's current debt load
type LoanBurden struct {
	DailyPayments int64   `json:"daily_payments"` // non-positive
	Outstanding   int64   `json:"outstanding"`
	BurdenRatio   float64 `json:"burden_ratio"` // |DailyPayments| / Balance
}
