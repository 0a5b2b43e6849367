// Package voting decides whether an event's participants approve a user.
package voting

import (
	"context"
	"fmt"
)

// Counter is the read access the engine needs.
type Counter interface {
	CountApprovals(ctx context.Context, eventID, targetUserID string) (int, error)
	CountParticipants(ctx context.Context, eventID string) (int, error)
}

// Tally is the vote state behind an approval decision.
type Tally struct {
	Approvals    int
	Participants int
	Approved     bool
}

// Quorum reports whether approvals reach half of participants.
// An event without participants never approves anyone.
func Quorum(approvals, participants int) bool {
	if participants <= 0 {
		return false
	}
	return approvals*2 >= participants
}

// Engine computes approval from stored votes.
type Engine struct {
	counter Counter
}

// NewEngine creates a voting engine reading from counter.
func NewEngine(counter Counter) *Engine {
	return &Engine{counter: counter}
}

// Tally counts the votes for target in event.
func (e *Engine) Tally(ctx context.Context, eventID, targetUserID string) (Tally, error) {
	participants, err := e.counter.CountParticipants(ctx, eventID)
	if err != nil {
		return Tally{}, fmt.Errorf("failed to count participants: %w", err)
	}
	if participants == 0 {
		return Tally{}, nil
	}

	approvals, err := e.counter.CountApprovals(ctx, eventID, targetUserID)
	if err != nil {
		return Tally{}, fmt.Errorf("failed to count approvals: %w", err)
	}

	return Tally{
		Approvals:    approvals,
		Participants: participants,
		Approved:     Quorum(approvals, participants),
	}, nil
}

// IsApproved reports whether at least half of the event's participants
// approve target.
func (e *Engine) IsApproved(ctx context.Context, eventID, targetUserID string) (bool, error) {
	t, err := e.Tally(ctx, eventID, targetUserID)
	if err != nil {
		return false, err
	}
	return t.Approved, nil
}
