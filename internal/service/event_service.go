package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/cooper/internal/auth"
	"github.com/mmynk/cooper/internal/metrics"
	"github.com/mmynk/cooper/internal/models"
	"github.com/mmynk/cooper/internal/rules"
	"github.com/mmynk/cooper/internal/storage"
	"github.com/mmynk/cooper/internal/voting"
)

// EventDetail is an event together with its participants.
type EventDetail struct {
	Event        *models.Event
	Participants []models.Participant
}

// RuleInput is a requested spending rule. A nil MaxAmount means no limit.
type RuleInput struct {
	MaxAmount        *decimal.Decimal
	AdminOnly        bool
	ApprovalRequired bool
}

// EventService manages events, membership, categories, votes and rules.
type EventService struct {
	store   storage.Store
	voting  *voting.Engine
	rules   *rules.Engine
	metrics *metrics.Metrics
}

// NewEventService creates an event service.
func NewEventService(store storage.Store, votes *voting.Engine, ruleEngine *rules.Engine, m *metrics.Metrics) *EventService {
	return &EventService{store: store, voting: votes, rules: ruleEngine, metrics: m}
}

// requireParticipant loads the event and checks that userID belongs to it.
func requireParticipant(ctx context.Context, store storage.EventStore, eventID, userID string) (*models.Event, error) {
	event, err := store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	ok, err := store.IsParticipant(ctx, eventID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check participant: %w", err)
	}
	if !ok {
		return nil, ErrNotParticipant
	}
	return event, nil
}

// requireAdmin loads the event and checks that userID administers it.
func requireAdmin(ctx context.Context, store storage.EventStore, eventID, userID string) (*models.Event, error) {
	event, err := store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !event.IsAdmin(userID) {
		return nil, forbidden("only the event admin can do this")
	}
	return event, nil
}

// CreateEvent creates an event administered, and first joined, by actor.
func (s *EventService) CreateEvent(ctx context.Context, actor, title string) (*models.Event, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, invalidArgument("title is required")
	}

	event := &models.Event{Title: title, AdminUserID: actor}
	if err := s.store.CreateEvent(ctx, event); err != nil {
		return nil, err
	}
	slog.Info("Event created", "event_id", event.ID, "admin_user_id", actor)
	return event, nil
}

// GetEvent returns the event and its participants. Any signed-in user may
// look an event up so they can decide to join it.
func (s *EventService) GetEvent(ctx context.Context, eventID string) (*EventDetail, error) {
	event, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	participants, err := s.store.ListParticipants(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return &EventDetail{Event: event, Participants: participants}, nil
}

// ListMyEvents returns the events actor participates in.
func (s *EventService) ListMyEvents(ctx context.Context, actor string) ([]*models.Event, error) {
	return s.store.ListEventsByUser(ctx, actor)
}

// Join adds actor to the event.
func (s *EventService) Join(ctx context.Context, actor, eventID string) error {
	if _, err := s.store.GetEvent(ctx, eventID); err != nil {
		return err
	}
	if err := s.store.AddParticipant(ctx, eventID, actor); err != nil {
		return err
	}
	slog.Info("Participant joined", "event_id", eventID, "user_id", actor)
	return nil
}

// AddParticipant lets the event admin enroll a registered user by email.
func (s *EventService) AddParticipant(ctx context.Context, actor, eventID, email string) (*models.User, error) {
	if _, err := requireAdmin(ctx, s.store, eventID, actor); err != nil {
		return nil, err
	}

	user, err := s.store.GetUserByEmail(ctx, auth.NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if err := s.store.AddParticipant(ctx, eventID, user.ID); err != nil {
		return nil, err
	}
	slog.Info("Participant added", "event_id", eventID, "user_id", user.ID, "added_by", actor)
	return user, nil
}

// CreateCategory adds a category to the event. Any participant may do so.
func (s *EventService) CreateCategory(ctx context.Context, actor, eventID, name string) (*models.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalidArgument("category name is required")
	}
	if _, err := requireParticipant(ctx, s.store, eventID, actor); err != nil {
		return nil, err
	}

	category := &models.Category{EventID: eventID, Name: name}
	if err := s.store.CreateCategory(ctx, category); err != nil {
		return nil, err
	}
	return category, nil
}

// ListCategories returns the event's categories.
func (s *EventService) ListCategories(ctx context.Context, actor, eventID string) ([]*models.Category, error) {
	if _, err := requireParticipant(ctx, s.store, eventID, actor); err != nil {
		return nil, err
	}
	return s.store.ListCategories(ctx, eventID)
}

// JoinCategory makes actor a member of a category. The event's
// participants must have approved actor.
func (s *EventService) JoinCategory(ctx context.Context, actor, categoryID string) (*models.Category, error) {
	category, err := s.store.GetCategory(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	if _, err := requireParticipant(ctx, s.store, category.EventID, actor); err != nil {
		return nil, err
	}

	decision, err := s.rules.EvaluateJoin(ctx, category.EventID, actor)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		s.metrics.RuleDenied(decision.Reason)
		return nil, &RuleViolation{Reason: decision.Reason}
	}

	if err := s.store.AddCategoryMember(ctx, categoryID, actor); err != nil {
		return nil, err
	}
	slog.Info("Category joined", "category_id", categoryID, "user_id", actor)
	return category, nil
}

// CastVote records actor's approval or rejection of target. Voting again
// replaces the earlier vote.
func (s *EventService) CastVote(ctx context.Context, actor, eventID, targetUserID string, approve bool) (voting.Tally, error) {
	if err := requireID("target_user_id", targetUserID); err != nil {
		return voting.Tally{}, err
	}
	if _, err := requireParticipant(ctx, s.store, eventID, actor); err != nil {
		return voting.Tally{}, err
	}
	ok, err := s.store.IsParticipant(ctx, eventID, targetUserID)
	if err != nil {
		return voting.Tally{}, fmt.Errorf("failed to check participant: %w", err)
	}
	if !ok {
		return voting.Tally{}, invalidArgument("target user is not a participant")
	}

	vote := &models.Vote{
		EventID:      eventID,
		TargetUserID: targetUserID,
		VoterUserID:  actor,
		Approve:      approve,
		CastAt:       time.Now().Unix(),
	}
	if err := s.store.PutVote(ctx, vote); err != nil {
		return voting.Tally{}, err
	}
	slog.Info("Vote recorded", "event_id", eventID, "target_user_id", targetUserID, "voter_user_id", actor, "approve", approve)
	return s.voting.Tally(ctx, eventID, targetUserID)
}

// Approval reports the vote tally for target.
func (s *EventService) Approval(ctx context.Context, actor, eventID, targetUserID string) (voting.Tally, error) {
	if _, err := requireParticipant(ctx, s.store, eventID, actor); err != nil {
		return voting.Tally{}, err
	}
	return s.voting.Tally(ctx, eventID, targetUserID)
}

// PutRule replaces the event's spending rule. Only the admin may do this.
func (s *EventService) PutRule(ctx context.Context, actor, eventID string, in RuleInput) (*models.SpendingRule, error) {
	if _, err := requireAdmin(ctx, s.store, eventID, actor); err != nil {
		return nil, err
	}

	rule := &models.SpendingRule{
		EventID:          eventID,
		AdminOnly:        in.AdminOnly,
		ApprovalRequired: in.ApprovalRequired,
	}
	if in.MaxAmount != nil {
		if err := requireNonNegative("max_amount", *in.MaxAmount); err != nil {
			return nil, err
		}
		rule.MaxAmount = decimal.NewNullDecimal(*in.MaxAmount)
	}

	if err := s.store.PutRule(ctx, rule); err != nil {
		return nil, err
	}
	slog.Info("Spending rule updated", "event_id", eventID,
		"admin_only", rule.AdminOnly, "approval_required", rule.ApprovalRequired, "has_limit", rule.MaxAmount.Valid)
	return rule, nil
}

// GetRule returns the event's spending rule, or nil when none is set.
func (s *EventService) GetRule(ctx context.Context, actor, eventID string) (*models.SpendingRule, error) {
	if _, err := requireParticipant(ctx, s.store, eventID, actor); err != nil {
		return nil, err
	}
	rule, err := s.store.GetRule(ctx, eventID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return rule, err
}
