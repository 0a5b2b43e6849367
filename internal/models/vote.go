package models

import "github.com/shopspring/decimal"

// Vote is one participant's approval (or rejection) of a target user
// within an event. A voter has at most one vote per target; casting again
// replaces the previous choice.
type Vote struct {
	EventID      string
	TargetUserID string
	VoterUserID  string
	Approve      bool
	CastAt       int64
}

// SpendingRule constrains who may spend in an event and how much.
// An event has at most one rule.
type SpendingRule struct {
	EventID string

	// MaxAmount is the largest expense allowed without approval.
	// Invalid means no limit.
	MaxAmount decimal.NullDecimal

	// AdminOnly restricts spending to the event admin.
	AdminOnly bool

	// ApprovalRequired makes every expense need quorum approval of the
	// spender; it also turns an over-limit expense from a denial into an
	// approval check.
	ApprovalRequired bool

	UpdatedAt int64
}
