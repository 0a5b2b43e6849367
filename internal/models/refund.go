package models

import "github.com/shopspring/decimal"

// Refund is credit owed to a user that becomes spendable at ReleaseAt.
// The row is deleted when it matures into the user's wallet.
type Refund struct {
	ID        string
	UserID    string
	Amount    decimal.Decimal
	ReleaseAt int64
	CreatedAt int64
}

// Wallet holds a user's matured balance.
type Wallet struct {
	UserID    string
	Balance   decimal.Decimal
	UpdatedAt int64
}
