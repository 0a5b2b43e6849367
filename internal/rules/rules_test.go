package rules

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/cooper/internal/models"
)

type fakeApprover struct {
	approved map[string]bool
	calls    int
	err      error
}

func (f *fakeApprover) IsApproved(_ context.Context, _ string, userID string) (bool, error) {
	f.calls++
	return f.approved[userID], f.err
}

func limit(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func TestEvaluate(t *testing.T) {
	event := &models.Event{ID: "ev1", AdminUserID: "admin"}

	tests := []struct {
		name     string
		userID   string
		amount   string
		rule     *models.SpendingRule
		approved map[string]bool
		want     Decision
	}{
		{
			name:   "no rule allows",
			userID: "bob",
			amount: "1000",
			rule:   nil,
			want:   Allow,
		},
		{
			name:     "admin only denies non-admin even within limit and approved",
			userID:   "bob",
			amount:   "10",
			rule:     &models.SpendingRule{AdminOnly: true, MaxAmount: limit("100"), ApprovalRequired: true},
			approved: map[string]bool{"bob": true},
			want:     Deny(ReasonAdminOnly),
		},
		{
			name:   "admin only allows admin",
			userID: "admin",
			amount: "10",
			rule:   &models.SpendingRule{AdminOnly: true},
			want:   Allow,
		},
		{
			name:     "over limit without approval rule is denied even when approved",
			userID:   "bob",
			amount:   "150",
			rule:     &models.SpendingRule{MaxAmount: limit("100")},
			approved: map[string]bool{"bob": true},
			want:     Deny(ReasonOverLimit),
		},
		{
			name:   "at limit is allowed",
			userID: "bob",
			amount: "100",
			rule:   &models.SpendingRule{MaxAmount: limit("100")},
			want:   Allow,
		},
		{
			name:   "zero limit is a real limit",
			userID: "bob",
			amount: "0.01",
			rule:   &models.SpendingRule{MaxAmount: limit("0")},
			want:   Deny(ReasonOverLimit),
		},
		{
			name:     "over limit with approval rule and quorum is allowed",
			userID:   "bob",
			amount:   "150",
			rule:     &models.SpendingRule{MaxAmount: limit("100"), ApprovalRequired: true},
			approved: map[string]bool{"bob": true},
			want:     Allow,
		},
		{
			name:   "over limit with approval rule and no quorum is denied",
			userID: "bob",
			amount: "150",
			rule:   &models.SpendingRule{MaxAmount: limit("100"), ApprovalRequired: true},
			want:   Deny(ReasonApprovalRequired),
		},
		{
			name:   "approval required within limit still needs quorum",
			userID: "bob",
			amount: "5",
			rule:   &models.SpendingRule{MaxAmount: limit("100"), ApprovalRequired: true},
			want:   Deny(ReasonApprovalRequired),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := NewEngine(&fakeApprover{approved: tt.approved})
			got, err := engine.Evaluate(context.Background(), event, tt.userID, decimal.RequireFromString(tt.amount), tt.rule)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateShortCircuits(t *testing.T) {
	event := &models.Event{ID: "ev1", AdminUserID: "admin"}
	approver := &fakeApprover{}
	engine := NewEngine(approver)

	_, err := engine.Evaluate(context.Background(), event, "bob", decimal.NewFromInt(1),
		&models.SpendingRule{AdminOnly: true, ApprovalRequired: true})
	require.NoError(t, err)
	assert.Zero(t, approver.calls, "approval must not be consulted after an admin-only denial")

	_, err = engine.Evaluate(context.Background(), event, "bob", decimal.NewFromInt(500),
		&models.SpendingRule{MaxAmount: limit("100")})
	require.NoError(t, err)
	assert.Zero(t, approver.calls, "approval must not be consulted when approval is not required")
}

func TestEvaluateApproverError(t *testing.T) {
	boom := errors.New("store down")
	engine := NewEngine(&fakeApprover{err: boom})

	_, err := engine.Evaluate(context.Background(), &models.Event{ID: "ev1"}, "bob", decimal.NewFromInt(1),
		&models.SpendingRule{ApprovalRequired: true})
	require.ErrorIs(t, err, boom)
}

func TestEvaluateJoin(t *testing.T) {
	engine := NewEngine(&fakeApprover{approved: map[string]bool{"bob": true}})

	got, err := engine.EvaluateJoin(context.Background(), "ev1", "bob")
	require.NoError(t, err)
	assert.True(t, got.Allowed)

	got, err = engine.EvaluateJoin(context.Background(), "ev1", "carol")
	require.NoError(t, err)
	assert.Equal(t, Deny(ReasonApprovalRequired), got)
}
