package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mmynk/cooper/internal/models"
)

// PutRule creates or replaces the spending rule of an event.
func (s *SQLiteStore) PutRule(ctx context.Context, rule *models.SpendingRule) error {
	rule.UpdatedAt = time.Now().Unix()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO spending_rules (event_id, max_amount, admin_only, approval_required, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (event_id) DO UPDATE SET
		     max_amount = excluded.max_amount,
		     admin_only = excluded.admin_only,
		     approval_required = excluded.approval_required,
		     updated_at = excluded.updated_at`,
		rule.EventID, rule.MaxAmount, boolToInt(rule.AdminOnly), boolToInt(rule.ApprovalRequired), rule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save spending rule: %w", err)
	}
	return nil
}

// GetRule retrieves the spending rule of an event.
func (s *SQLiteStore) GetRule(ctx context.Context, eventID string) (*models.SpendingRule, error) {
	rule := &models.SpendingRule{}
	err := s.db.QueryRowContext(ctx,
		`SELECT event_id, max_amount, admin_only, approval_required, updated_at
		 FROM spending_rules WHERE event_id = ?`,
		eventID,
	).Scan(&rule.EventID, &rule.MaxAmount, &rule.AdminOnly, &rule.ApprovalRequired, &rule.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("spending rule for event", eventID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get spending rule: %w", err)
	}
	return rule, nil
}
