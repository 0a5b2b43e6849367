package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmynk/cooper/internal/models"
)

// CreateRefund schedules a time-locked refund.
func (s *SQLiteStore) CreateRefund(ctx context.Context, refund *models.Refund) error {
	if refund.ID == "" {
		refund.ID = uuid.New().String()
	}
	if refund.CreatedAt == 0 {
		refund.CreatedAt = time.Now().Unix()
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO refunds (id, user_id, amount, release_at, created_at) VALUES (?, ?, ?, ?, ?)",
		refund.ID, refund.UserID, refund.Amount, refund.ReleaseAt, refund.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert refund: %w", err)
	}
	return nil
}

// ListRefundsByUser retrieves a user's pending refunds, soonest first.
func (s *SQLiteStore) ListRefundsByUser(ctx context.Context, userID string) ([]*models.Refund, error) {
	return s.queryRefunds(ctx,
		"SELECT id, user_id, amount, release_at, created_at FROM refunds WHERE user_id = ? ORDER BY release_at, id",
		userID,
	)
}

// ListMaturedRefunds retrieves refunds whose release time has passed.
func (s *SQLiteStore) ListMaturedRefunds(ctx context.Context, now int64) ([]*models.Refund, error) {
	return s.queryRefunds(ctx,
		"SELECT id, user_id, amount, release_at, created_at FROM refunds WHERE release_at <= ? ORDER BY release_at, id",
		now,
	)
}

func (s *SQLiteStore) queryRefunds(ctx context.Context, query string, args ...any) ([]*models.Refund, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list refunds: %w", err)
	}
	defer rows.Close()

	var refunds []*models.Refund
	for rows.Next() {
		r := &models.Refund{}
		if err := rows.Scan(&r.ID, &r.UserID, &r.Amount, &r.ReleaseAt, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan refund: %w", err)
		}
		refunds = append(refunds, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate refunds: %w", err)
	}
	return refunds, nil
}

// MatureRefund moves a matured refund into its owner's wallet. Delete and
// credit share one immediate transaction, and the wallet is only credited
// when this call's DELETE removed the row.
func (s *SQLiteStore) MatureRefund(ctx context.Context, refundID string, now int64) (bool, error) {
	credited := false
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var userID string
		var amount decimal.Decimal
		err := tx.QueryRowContext(ctx,
			"SELECT user_id, amount FROM refunds WHERE id = ? AND release_at <= ?",
			refundID, now,
		).Scan(&userID, &amount)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read refund: %w", err)
		}

		res, err := tx.ExecContext(ctx, "DELETE FROM refunds WHERE id = ?", refundID)
		if err != nil {
			return fmt.Errorf("failed to delete refund: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check refund delete: %w", err)
		}
		if n != 1 {
			return nil
		}

		balance, err := walletBalance(ctx, tx, userID)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO wallets (user_id, balance, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT (user_id) DO UPDATE SET balance = excluded.balance, updated_at = excluded.updated_at`,
			userID, balance.Add(amount), now,
		)
		if err != nil {
			return fmt.Errorf("failed to credit wallet: %w", err)
		}

		credited = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return credited, nil
}

// GetWallet retrieves a user's wallet, defaulting to a zero balance.
func (s *SQLiteStore) GetWallet(ctx context.Context, userID string) (*models.Wallet, error) {
	w := &models.Wallet{UserID: userID, Balance: decimal.Zero}
	err := s.db.QueryRowContext(ctx,
		"SELECT balance, updated_at FROM wallets WHERE user_id = ?",
		userID,
	).Scan(&w.Balance, &w.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return w, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return w, nil
}

func walletBalance(ctx context.Context, tx *sql.Tx, userID string) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := tx.QueryRowContext(ctx, "SELECT balance FROM wallets WHERE user_id = ?", userID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to read wallet: %w", err)
	}
	return balance, nil
}
