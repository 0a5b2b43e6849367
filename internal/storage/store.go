// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/mmynk/cooper/internal/models"
)

var (
	// ErrNotFound is returned (wrapped) when a requested record is absent.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned (wrapped) when a uniqueness constraint would be violated.
	ErrConflict = errors.New("already exists")
)

// UserStore persists user accounts.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// EventStore persists events, their participants and categories.
type EventStore interface {
	// CreateEvent persists the event and enrolls its admin as the first
	// participant in one transaction. ID and CreatedAt are populated.
	CreateEvent(ctx context.Context, event *models.Event) error
	GetEvent(ctx context.Context, eventID string) (*models.Event, error)
	// ListEventsByUser returns the events userID participates in.
	ListEventsByUser(ctx context.Context, userID string) ([]*models.Event, error)

	// AddParticipant returns ErrConflict if the user is already a participant.
	AddParticipant(ctx context.Context, eventID, userID string) error
	IsParticipant(ctx context.Context, eventID, userID string) (bool, error)
	ListParticipants(ctx context.Context, eventID string) ([]models.Participant, error)
	CountParticipants(ctx context.Context, eventID string) (int, error)

	CreateCategory(ctx context.Context, category *models.Category) error
	GetCategory(ctx context.Context, categoryID string) (*models.Category, error)
	ListCategories(ctx context.Context, eventID string) ([]*models.Category, error)
	// AddCategoryMember returns ErrConflict if the user already joined.
	AddCategoryMember(ctx context.Context, categoryID, userID string) error
}

// ExpenseStore persists expenses and pool contributions.
type ExpenseStore interface {
	// CreateExpense persists the expense together with its milestone in one
	// transaction. Both IDs are populated; the milestone's ExpenseID and
	// IntentID are taken from the expense.
	CreateExpense(ctx context.Context, expense *models.Expense, milestone *models.Milestone) error
	GetExpense(ctx context.Context, expenseID string) (*models.Expense, error)
	ListExpenses(ctx context.Context, eventID string) ([]*models.Expense, error)

	CreateContribution(ctx context.Context, contribution *models.Contribution) error
	// ListContributions returns deposits in the order they were made.
	ListContributions(ctx context.Context, eventID string) ([]models.Contribution, error)
}

// VoteStore persists approval votes.
type VoteStore interface {
	// PutVote records the vote, replacing any previous vote by the same
	// voter for the same target in the same event.
	PutVote(ctx context.Context, vote *models.Vote) error
	// CountApprovals counts approving votes for target cast by current
	// participants of the event.
	CountApprovals(ctx context.Context, eventID, targetUserID string) (int, error)
}

// RuleStore persists the single spending rule of an event.
type RuleStore interface {
	PutRule(ctx context.Context, rule *models.SpendingRule) error
	// GetRule returns ErrNotFound when the event has no rule.
	GetRule(ctx context.Context, eventID string) (*models.SpendingRule, error)
}

// MilestoneStore persists milestones and arbitrates release attempts.
type MilestoneStore interface {
	GetMilestone(ctx context.Context, milestoneID string) (*models.Milestone, error)
	GetMilestoneByExpense(ctx context.Context, expenseID string) (*models.Milestone, error)
	MarkBillUploaded(ctx context.Context, milestoneID string) error
	MarkApproved(ctx context.Context, milestoneID string) error

	// ClaimRelease atomically claims a releasable milestone for one release
	// attempt. It returns false when the milestone is not releasable or a
	// claim newer than staleBefore (Unix seconds) is held by another attempt.
	ClaimRelease(ctx context.Context, milestoneID string, now, staleBefore int64) (bool, error)
	// CompleteRelease sets released and clears the claim.
	CompleteRelease(ctx context.Context, milestoneID string, now int64) error
	// AbandonRelease clears the claim so a later attempt can retry.
	AbandonRelease(ctx context.Context, milestoneID string) error
	// ListReleasable returns unreleased milestones with both prerequisites set.
	ListReleasable(ctx context.Context, limit int) ([]*models.Milestone, error)
}

// RefundStore persists time-locked refunds and wallet balances.
type RefundStore interface {
	CreateRefund(ctx context.Context, refund *models.Refund) error
	ListRefundsByUser(ctx context.Context, userID string) ([]*models.Refund, error)
	// ListMaturedRefunds returns refunds with ReleaseAt <= now.
	ListMaturedRefunds(ctx context.Context, now int64) ([]*models.Refund, error)
	// MatureRefund deletes the refund and credits its amount to the owner's
	// wallet in one transaction. It returns false, without crediting, when
	// the refund is gone or not yet mature.
	MatureRefund(ctx context.Context, refundID string, now int64) (bool, error)
	// GetWallet returns a zero balance for users that never received credit.
	GetWallet(ctx context.Context, userID string) (*models.Wallet, error)
}

// Store defines the full persistence surface used by Cooper.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL, etc.)
// without changing the service layer.
type Store interface {
	UserStore
	EventStore
	ExpenseStore
	VoteStore
	RuleStore
	MilestoneStore
	RefundStore

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}
