package models

import "github.com/shopspring/decimal"

// Expense is spending recorded against a category. It is only persisted
// after the spending rules allowed it and the payment provider created an
// intent for it, so PaymentIntentID is never empty.
type Expense struct {
	ID              string
	EventID         string
	CategoryID      string
	CreatedBy       string
	Amount          decimal.Decimal
	PaymentIntentID string
	CreatedAt       int64
}

// Contribution is a single deposit into an event's pool. Contributions are
// append-only; a user depositing twice has two rows.
type Contribution struct {
	ID              string
	EventID         string
	UserID          string
	Amount          decimal.Decimal
	PaymentIntentID string
	CreatedAt       int64
}
