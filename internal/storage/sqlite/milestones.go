package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mmynk/cooper/internal/models"
)

const milestoneColumns = `id, expense_id, intent_id, bill_uploaded, approved, released, claimed_at, released_at, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMilestone(row rowScanner) (*models.Milestone, error) {
	m := &models.Milestone{}
	err := row.Scan(&m.ID, &m.ExpenseID, &m.IntentID, &m.BillUploaded, &m.Approved,
		&m.Released, &m.ClaimedAt, &m.ReleasedAt, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// GetMilestone retrieves a milestone by ID.
func (s *SQLiteStore) GetMilestone(ctx context.Context, milestoneID string) (*models.Milestone, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+milestoneColumns+` FROM milestones WHERE id = ?`, milestoneID)
	m, err := scanMilestone(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("milestone", milestoneID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get milestone: %w", err)
	}
	return m, nil
}

// GetMilestoneByExpense retrieves the milestone attached to an expense.
func (s *SQLiteStore) GetMilestoneByExpense(ctx context.Context, expenseID string) (*models.Milestone, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+milestoneColumns+` FROM milestones WHERE expense_id = ?`, expenseID)
	m, err := scanMilestone(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("milestone for expense", expenseID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get milestone by expense: %w", err)
	}
	return m, nil
}

// MarkBillUploaded sets the bill_uploaded flag. Setting it twice is a no-op.
func (s *SQLiteStore) MarkBillUploaded(ctx context.Context, milestoneID string) error {
	return s.setMilestoneFlag(ctx, milestoneID, "bill_uploaded")
}

// MarkApproved sets the approved flag. Setting it twice is a no-op.
func (s *SQLiteStore) MarkApproved(ctx context.Context, milestoneID string) error {
	return s.setMilestoneFlag(ctx, milestoneID, "approved")
}

// setMilestoneFlag flips one prerequisite flag on. column is never user input.
func (s *SQLiteStore) setMilestoneFlag(ctx context.Context, milestoneID, column string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE milestones SET `+column+` = 1 WHERE id = ?`,
		milestoneID,
	)
	if err != nil {
		return fmt.Errorf("failed to set milestone %s: %w", column, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check milestone update: %w", err)
	}
	if n == 0 {
		return notFound("milestone", milestoneID)
	}
	return nil
}

// ClaimRelease takes the release claim if the milestone is releasable and
// no fresh claim exists. The conditional UPDATE is the check-and-set: of two
// concurrent callers only one sees a changed row.
func (s *SQLiteStore) ClaimRelease(ctx context.Context, milestoneID string, now, staleBefore int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE milestones SET claimed_at = ?
		 WHERE id = ? AND bill_uploaded = 1 AND approved = 1 AND released = 0
		   AND (claimed_at = 0 OR claimed_at < ?)`,
		now, milestoneID, staleBefore,
	)
	if err != nil {
		return false, fmt.Errorf("failed to claim milestone release: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check milestone claim: %w", err)
	}
	return n == 1, nil
}

// CompleteRelease marks the milestone released after provider confirmation.
func (s *SQLiteStore) CompleteRelease(ctx context.Context, milestoneID string, now int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE milestones SET released = 1, released_at = ?, claimed_at = 0
		 WHERE id = ? AND released = 0`,
		now, milestoneID,
	)
	if err != nil {
		return fmt.Errorf("failed to complete milestone release: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check milestone release: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("milestone %s was not pending release", milestoneID)
	}
	return nil
}

// AbandonRelease drops the claim after a failed provider call.
func (s *SQLiteStore) AbandonRelease(ctx context.Context, milestoneID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE milestones SET claimed_at = 0 WHERE id = ? AND released = 0`,
		milestoneID,
	)
	if err != nil {
		return fmt.Errorf("failed to abandon milestone release: %w", err)
	}
	return nil
}

// ListReleasable retrieves milestones waiting only for the provider release.
func (s *SQLiteStore) ListReleasable(ctx context.Context, limit int) ([]*models.Milestone, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+milestoneColumns+` FROM milestones
		 WHERE released = 0 AND bill_uploaded = 1 AND approved = 1
		 ORDER BY created_at, id
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list releasable milestones: %w", err)
	}
	defer rows.Close()

	var milestones []*models.Milestone
	for rows.Next() {
		m, err := scanMilestone(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan milestone: %w", err)
		}
		milestones = append(milestones, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate milestones: %w", err)
	}
	return milestones, nil
}
