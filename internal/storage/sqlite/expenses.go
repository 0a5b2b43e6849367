package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/cooper/internal/models"
)

// CreateExpense persists an expense and the milestone that gates its funds.
func (s *SQLiteStore) CreateExpense(ctx context.Context, expense *models.Expense, milestone *models.Milestone) error {
	if expense.ID == "" {
		expense.ID = uuid.New().String()
	}
	if expense.CreatedAt == 0 {
		expense.CreatedAt = time.Now().Unix()
	}
	if milestone.ID == "" {
		milestone.ID = uuid.New().String()
	}
	milestone.ExpenseID = expense.ID
	milestone.IntentID = expense.PaymentIntentID
	milestone.CreatedAt = expense.CreatedAt

	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO expenses (id, event_id, category_id, created_by, amount, payment_intent_id, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			expense.ID, expense.EventID, expense.CategoryID, expense.CreatedBy,
			expense.Amount, expense.PaymentIntentID, expense.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert expense: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO milestones (id, expense_id, intent_id, bill_uploaded, approved, released, created_at)
			 VALUES (?, ?, ?, ?, ?, 0, ?)`,
			milestone.ID, milestone.ExpenseID, milestone.IntentID,
			boolToInt(milestone.BillUploaded), boolToInt(milestone.Approved), milestone.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert milestone: %w", err)
		}
		return nil
	})
}

const expenseColumns = `id, event_id, category_id, created_by, amount, payment_intent_id, created_at`

func scanExpense(row rowScanner) (*models.Expense, error) {
	e := &models.Expense{}
	if err := row.Scan(&e.ID, &e.EventID, &e.CategoryID, &e.CreatedBy,
		&e.Amount, &e.PaymentIntentID, &e.CreatedAt); err != nil {
		return nil, err
	}
	return e, nil
}

// GetExpense retrieves an expense by ID.
func (s *SQLiteStore) GetExpense(ctx context.Context, expenseID string) (*models.Expense, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id = ?`, expenseID)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("expense", expenseID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}
	return e, nil
}

// ListExpenses retrieves all expenses of an event in creation order.
func (s *SQLiteStore) ListExpenses(ctx context.Context, eventID string) ([]*models.Expense, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE event_id = ? ORDER BY created_at, rowid`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []*models.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expenses: %w", err)
	}
	return expenses, nil
}

// CreateContribution appends a deposit to an event's pool.
func (s *SQLiteStore) CreateContribution(ctx context.Context, c *models.Contribution) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CreatedAt == 0 {
		c.CreatedAt = time.Now().Unix()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO contributions (id, event_id, user_id, amount, payment_intent_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.EventID, c.UserID, c.Amount, c.PaymentIntentID, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert contribution: %w", err)
	}
	return nil
}

// ListContributions retrieves an event's deposits in insertion order.
func (s *SQLiteStore) ListContributions(ctx context.Context, eventID string) ([]models.Contribution, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, event_id, user_id, amount, payment_intent_id, created_at
		 FROM contributions WHERE event_id = ? ORDER BY rowid`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list contributions: %w", err)
	}
	defer rows.Close()

	var contributions []models.Contribution
	for rows.Next() {
		var c models.Contribution
		if err := rows.Scan(&c.ID, &c.EventID, &c.UserID, &c.Amount, &c.PaymentIntentID, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan contribution: %w", err)
		}
		contributions = append(contributions, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate contributions: %w", err)
	}
	return contributions, nil
}
