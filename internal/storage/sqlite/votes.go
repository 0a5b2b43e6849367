package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/mmynk/cooper/internal/models"
)

// PutVote records a vote. A later vote by the same voter for the same
// target replaces the earlier one.
func (s *SQLiteStore) PutVote(ctx context.Context, vote *models.Vote) error {
	if vote.CastAt == 0 {
		vote.CastAt = time.Now().Unix()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO votes (event_id, target_user_id, voter_user_id, approve, cast_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (event_id, target_user_id, voter_user_id)
		 DO UPDATE SET approve = excluded.approve, cast_at = excluded.cast_at`,
		vote.EventID, vote.TargetUserID, vote.VoterUserID, boolToInt(vote.Approve), vote.CastAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record vote: %w", err)
	}
	return nil
}

// CountApprovals counts approving votes for a target. Votes from users who
// are no longer participants do not count.
func (s *SQLiteStore) CountApprovals(ctx context.Context, eventID, targetUserID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*)
		 FROM votes v
		 JOIN participants p ON p.event_id = v.event_id AND p.user_id = v.voter_user_id
		 WHERE v.event_id = ? AND v.target_user_id = ? AND v.approve = 1`,
		eventID, targetUserID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count approvals: %w", err)
	}
	return n, nil
}
