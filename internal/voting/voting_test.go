package voting

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type fakeCounter struct {
	approvals    int
	participants int
	err          error
}

func (f *fakeCounter) CountApprovals(context.Context, string, string) (int, error) {
	return f.approvals, f.err
}

func (f *fakeCounter) CountParticipants(context.Context, string) (int, error) {
	return f.participants, f.err
}

func TestQuorum(t *testing.T) {
	tests := []struct {
		name         string
		approvals    int
		participants int
		want         bool
	}{
		{"no participants", 0, 0, false},
		{"no participants with votes", 5, 0, false},
		{"exactly half", 2, 4, true},
		{"just under half", 1, 4, false},
		{"odd count rounds up", 2, 3, true},
		{"odd count below", 1, 3, false},
		{"single participant self approval", 1, 1, true},
		{"unanimous", 6, 6, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Quorum(tt.approvals, tt.participants))
		})
	}
}

func TestQuorumProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		participants := rapid.IntRange(0, 500).Draw(t, "participants")
		approvals := rapid.IntRange(0, 500).Draw(t, "approvals")

		got := Quorum(approvals, participants)
		if participants == 0 {
			if got {
				t.Fatalf("approved with zero participants (approvals=%d)", approvals)
			}
			return
		}
		if want := approvals*2 >= participants; got != want {
			t.Fatalf("Quorum(%d, %d) = %v, want %v", approvals, participants, got, want)
		}
	})
}

func TestEngine(t *testing.T) {
	ctx := context.Background()

	t.Run("zero participants is not approved", func(t *testing.T) {
		e := NewEngine(&fakeCounter{approvals: 3, participants: 0})
		ok, err := e.IsApproved(ctx, "event", "user")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("tally reports counts", func(t *testing.T) {
		e := NewEngine(&fakeCounter{approvals: 2, participants: 4})
		tally, err := e.Tally(ctx, "event", "user")
		require.NoError(t, err)
		assert.Equal(t, Tally{Approvals: 2, Participants: 4, Approved: true}, tally)
	})

	t.Run("store errors propagate", func(t *testing.T) {
		boom := errors.New("boom")
		e := NewEngine(&fakeCounter{err: boom})
		_, err := e.IsApproved(ctx, "event", "user")
		require.ErrorIs(t, err, boom)
	})
}
