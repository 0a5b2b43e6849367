package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/cooper/internal/models"
	"github.com/mmynk/cooper/internal/storage"
)

// CreateEvent persists a new event and enrolls the admin as its first participant.
func (s *SQLiteStore) CreateEvent(ctx context.Context, event *models.Event) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.CreatedAt == 0 {
		event.CreatedAt = time.Now().Unix()
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO events (id, title, admin_user_id, created_at) VALUES (?, ?, ?, ?)",
			event.ID, event.Title, event.AdminUserID, event.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert event: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			"INSERT INTO participants (event_id, user_id, joined_at) VALUES (?, ?, ?)",
			event.ID, event.AdminUserID, event.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert admin participant: %w", err)
		}
		return nil
	})
}

// GetEvent retrieves an event by ID.
func (s *SQLiteStore) GetEvent(ctx context.Context, eventID string) (*models.Event, error) {
	event := &models.Event{}
	err := s.db.QueryRowContext(ctx,
		"SELECT id, title, admin_user_id, created_at FROM events WHERE id = ?",
		eventID,
	).Scan(&event.ID, &event.Title, &event.AdminUserID, &event.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("event", eventID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return event, nil
}

// ListEventsByUser retrieves the events a user participates in, newest first.
func (s *SQLiteStore) ListEventsByUser(ctx context.Context, userID string) ([]*models.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT e.id, e.title, e.admin_user_id, e.created_at
		 FROM events e
		 JOIN participants p ON p.event_id = e.id
		 WHERE p.user_id = ?
		 ORDER BY e.created_at DESC, e.id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list events by user: %w", err)
	}
	defer rows.Close()

	var events []*models.Event
	for rows.Next() {
		event := &models.Event{}
		if err := rows.Scan(&event.ID, &event.Title, &event.AdminUserID, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}
	return events, nil
}

// AddParticipant enrolls a user in an event.
func (s *SQLiteStore) AddParticipant(ctx context.Context, eventID, userID string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO participants (event_id, user_id, joined_at) VALUES (?, ?, ?)",
		eventID, userID, time.Now().Unix(),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("participant %s in event %s: %w", userID, eventID, storage.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to insert participant: %w", err)
	}
	return nil
}

// IsParticipant reports whether the user belongs to the event.
func (s *SQLiteStore) IsParticipant(ctx context.Context, eventID, userID string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM participants WHERE event_id = ? AND user_id = ?",
		eventID, userID,
	).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check participant: %w", err)
	}
	return true, nil
}

// ListParticipants retrieves an event's participants in join order.
func (s *SQLiteStore) ListParticipants(ctx context.Context, eventID string) ([]models.Participant, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT event_id, user_id, joined_at FROM participants WHERE event_id = ? ORDER BY joined_at, rowid",
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get participants: %w", err)
	}
	defer rows.Close()

	var participants []models.Participant
	for rows.Next() {
		var p models.Participant
		if err := rows.Scan(&p.EventID, &p.UserID, &p.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		participants = append(participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate participants: %w", err)
	}
	return participants, nil
}

// CountParticipants returns the number of participants in an event.
func (s *SQLiteStore) CountParticipants(ctx context.Context, eventID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM participants WHERE event_id = ?",
		eventID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count participants: %w", err)
	}
	return n, nil
}

// CreateCategory persists a new category.
func (s *SQLiteStore) CreateCategory(ctx context.Context, category *models.Category) error {
	if category.ID == "" {
		category.ID = uuid.New().String()
	}
	if category.CreatedAt == 0 {
		category.CreatedAt = time.Now().Unix()
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO categories (id, event_id, name, created_at) VALUES (?, ?, ?, ?)",
		category.ID, category.EventID, category.Name, category.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert category: %w", err)
	}
	return nil
}

// GetCategory retrieves a category by ID.
func (s *SQLiteStore) GetCategory(ctx context.Context, categoryID string) (*models.Category, error) {
	c := &models.Category{}
	err := s.db.QueryRowContext(ctx,
		"SELECT id, event_id, name, created_at FROM categories WHERE id = ?",
		categoryID,
	).Scan(&c.ID, &c.EventID, &c.Name, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("category", categoryID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return c, nil
}

// ListCategories retrieves all categories of an event ordered by name.
func (s *SQLiteStore) ListCategories(ctx context.Context, eventID string) ([]*models.Category, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, event_id, name, created_at FROM categories WHERE event_id = ? ORDER BY name, id",
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var categories []*models.Category
	for rows.Next() {
		c := &models.Category{}
		if err := rows.Scan(&c.ID, &c.EventID, &c.Name, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate categories: %w", err)
	}
	return categories, nil
}

// AddCategoryMember records a user joining a category.
func (s *SQLiteStore) AddCategoryMember(ctx context.Context, categoryID, userID string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO category_members (category_id, user_id, joined_at) VALUES (?, ?, ?)",
		categoryID, userID, time.Now().Unix(),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("member %s of category %s: %w", userID, categoryID, storage.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to insert category member: %w", err)
	}
	return nil
}
