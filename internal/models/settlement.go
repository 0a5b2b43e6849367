package models

import "github.com/shopspring/decimal"

// Settlement is the per-participant outcome of dividing an event's spend.
type Settlement struct {
	EventID  string
	Balances []Balance
}

// Balance is one participant's net position. Negative means the
// participant owes that amount.
type Balance struct {
	UserID     string
	NetBalance decimal.Decimal
}

// Pool summarises deposits into an event.
type Pool struct {
	EventID string
	Total   decimal.Decimal

	// Contributors has one entry per deposit, in deposit order.
	Contributors []Contribution
}

// CategoryTotal is the summed expense amount for one category.
type CategoryTotal struct {
	Category string
	Amount   decimal.Decimal
}
