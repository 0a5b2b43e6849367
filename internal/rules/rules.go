// Package rules evaluates an event's spending rule against a proposed expense.
//
// Checks run in a fixed order and stop at the first denial:
//
//  1. admin_only: only the event admin may spend.
//  2. max_amount: an amount above the limit is denied outright unless the
//     rule also requires approval, in which case it falls through to 3.
//  3. approval_required: the spender needs quorum approval from the event.
//
// A denial is a normal result, not an error. Errors are reserved for
// failures reading vote state.
package rules

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mmynk/cooper/internal/models"
)

// Denial reasons.
const (
	ReasonAdminOnly        = "only admin can spend"
	ReasonOverLimit        = "amount exceeds spending limit"
	ReasonApprovalRequired = "50% approval required"
)

// Decision is the outcome of a rule evaluation.
type Decision struct {
	Allowed bool
	Reason  string
}

// Allow is the decision for an expense that passed every check.
var Allow = Decision{Allowed: true, Reason: "allowed"}

// Deny builds a denial with reason.
func Deny(reason string) Decision {
	return Decision{Reason: reason}
}

// Approver answers whether a user holds quorum approval in an event.
type Approver interface {
	IsApproved(ctx context.Context, eventID, userID string) (bool, error)
}

// Engine applies spending rules.
type Engine struct {
	approver Approver
}

// NewEngine creates a rule engine consulting approver for approval checks.
func NewEngine(approver Approver) *Engine {
	return &Engine{approver: approver}
}

// Evaluate decides whether userID may spend amount in event under rule.
// A nil rule allows everything.
func (e *Engine) Evaluate(ctx context.Context, event *models.Event, userID string, amount decimal.Decimal, rule *models.SpendingRule) (Decision, error) {
	if rule == nil {
		return Allow, nil
	}

	if rule.AdminOnly && !event.IsAdmin(userID) {
		return Deny(ReasonAdminOnly), nil
	}

	if rule.MaxAmount.Valid && amount.GreaterThan(rule.MaxAmount.Decimal) && !rule.ApprovalRequired {
		return Deny(ReasonOverLimit), nil
	}

	if rule.ApprovalRequired {
		ok, err := e.approver.IsApproved(ctx, event.ID, userID)
		if err != nil {
			return Decision{}, fmt.Errorf("failed to check approval: %w", err)
		}
		if !ok {
			return Deny(ReasonApprovalRequired), nil
		}
	}

	return Allow, nil
}

// EvaluateJoin decides whether userID may join a category of event. Joining
// always needs the joiner's own quorum approval.
func (e *Engine) EvaluateJoin(ctx context.Context, eventID, userID string) (Decision, error) {
	ok, err := e.approver.IsApproved(ctx, eventID, userID)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to check approval: %w", err)
	}
	if !ok {
		return Deny(ReasonApprovalRequired), nil
	}
	return Allow, nil
}
