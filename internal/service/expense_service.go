package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/mmynk/cooper/internal/calculator"
	"github.com/mmynk/cooper/internal/metrics"
	"github.com/mmynk/cooper/internal/models"
	"github.com/mmynk/cooper/internal/payment"
	"github.com/mmynk/cooper/internal/rules"
	"github.com/mmynk/cooper/internal/storage"
)

// ExpenseReceipt is the result of a recorded expense.
type ExpenseReceipt struct {
	Expense   *models.Expense
	Milestone *models.Milestone
	Intent    *payment.Intent
}

// DepositReceipt is the result of a recorded pool deposit.
type DepositReceipt struct {
	Contribution *models.Contribution
	Intent       *payment.Intent
}

// ExpenseService records spending and deposits and derives totals from them.
type ExpenseService struct {
	store    storage.Store
	rules    *rules.Engine
	payments payment.Provider
	metrics  *metrics.Metrics
}

// NewExpenseService creates an expense service.
func NewExpenseService(store storage.Store, ruleEngine *rules.Engine, payments payment.Provider, m *metrics.Metrics) *ExpenseService {
	return &ExpenseService{store: store, rules: ruleEngine, payments: payments, metrics: m}
}

// CreateExpense records spending by actor. The event's spending rule is
// checked first, then a payment intent is created, and only then are the
// expense and its milestone stored. A denial returns *RuleViolation and a
// provider failure returns the *payment.Error; neither persists anything.
func (s *ExpenseService) CreateExpense(ctx context.Context, actor, eventID, categoryID string, amount decimal.Decimal) (*ExpenseReceipt, error) {
	if err := requireID("category_id", categoryID); err != nil {
		return nil, err
	}
	if err := requireNonNegative("amount", amount); err != nil {
		return nil, err
	}

	event, err := requireParticipant(ctx, s.store, eventID, actor)
	if err != nil {
		return nil, err
	}

	category, err := s.store.GetCategory(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	if category.EventID != eventID {
		return nil, invalidArgument("category does not belong to this event")
	}

	rule, err := s.loadRule(ctx, eventID)
	if err != nil {
		return nil, err
	}
	decision, err := s.rules.Evaluate(ctx, event, actor, amount, rule)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		slog.Info("Expense denied", "event_id", eventID, "user_id", actor, "amount", amount.String(), "reason", decision.Reason)
		s.metrics.RuleDenied(decision.Reason)
		return nil, &RuleViolation{Reason: decision.Reason}
	}

	intent, err := s.payments.CreateIntent(ctx, amount)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	expense := &models.Expense{
		EventID:         eventID,
		CategoryID:      categoryID,
		CreatedBy:       actor,
		Amount:          amount,
		PaymentIntentID: intent.ID,
	}
	milestone := &models.Milestone{}
	if err := s.store.CreateExpense(ctx, expense, milestone); err != nil {
		slog.Error("Payment intent created but expense not stored", "intent_id", intent.ID, "event_id", eventID, "error", err)
		return nil, err
	}

	s.metrics.ExpenseCreated()
	slog.Info("Expense created", "expense_id", expense.ID, "event_id", eventID, "amount", amount.String(), "intent_id", intent.ID)
	return &ExpenseReceipt{Expense: expense, Milestone: milestone, Intent: intent}, nil
}

func (s *ExpenseService) loadRule(ctx context.Context, eventID string) (*models.SpendingRule, error) {
	rule, err := s.store.GetRule(ctx, eventID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load spending rule: %w", err)
	}
	return rule, nil
}

// ListExpenses returns the event's expenses in creation order.
func (s *ExpenseService) ListExpenses(ctx context.Context, actor, eventID string) ([]*models.Expense, error) {
	if _, err := requireParticipant(ctx, s.store, eventID, actor); err != nil {
		return nil, err
	}
	return s.store.ListExpenses(ctx, eventID)
}

// Chart returns expense totals per category.
func (s *ExpenseService) Chart(ctx context.Context, actor, eventID string) ([]models.CategoryTotal, error) {
	if _, err := requireParticipant(ctx, s.store, eventID, actor); err != nil {
		return nil, err
	}

	expenses, err := s.store.ListExpenses(ctx, eventID)
	if err != nil {
		return nil, err
	}
	categories, err := s.store.ListCategories(ctx, eventID)
	if err != nil {
		return nil, err
	}

	names := make(map[string]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}
	return calculator.TotalsByCategory(expenses, names), nil
}

// Deposit adds actor's money to the event pool. Like expenses, the payment
// intent is created before anything is stored.
func (s *ExpenseService) Deposit(ctx context.Context, actor, eventID string, amount decimal.Decimal) (*DepositReceipt, error) {
	if !amount.IsPositive() {
		return nil, invalidArgument("amount must be positive")
	}
	if _, err := requireParticipant(ctx, s.store, eventID, actor); err != nil {
		return nil, err
	}

	intent, err := s.payments.CreateIntent(ctx, amount)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	contribution := &models.Contribution{
		EventID:         eventID,
		UserID:          actor,
		Amount:          amount,
		PaymentIntentID: intent.ID,
	}
	if err := s.store.CreateContribution(ctx, contribution); err != nil {
		slog.Error("Payment intent created but deposit not stored", "intent_id", intent.ID, "event_id", eventID, "error", err)
		return nil, err
	}

	slog.Info("Deposit recorded", "contribution_id", contribution.ID, "event_id", eventID, "amount", amount.String())
	return &DepositReceipt{Contribution: contribution, Intent: intent}, nil
}

// Pool returns the event's deposit total and one entry per deposit.
func (s *ExpenseService) Pool(ctx context.Context, actor, eventID string) (models.Pool, error) {
	if _, err := requireParticipant(ctx, s.store, eventID, actor); err != nil {
		return models.Pool{}, err
	}
	contributions, err := s.store.ListContributions(ctx, eventID)
	if err != nil {
		return models.Pool{}, err
	}
	return calculator.Pool(eventID, contributions), nil
}

// Settlement divides the event's spend equally among its participants.
func (s *ExpenseService) Settlement(ctx context.Context, actor, eventID string) (models.Settlement, error) {
	if _, err := requireParticipant(ctx, s.store, eventID, actor); err != nil {
		return models.Settlement{}, err
	}

	expenses, err := s.store.ListExpenses(ctx, eventID)
	if err != nil {
		return models.Settlement{}, err
	}
	participants, err := s.store.ListParticipants(ctx, eventID)
	if err != nil {
		return models.Settlement{}, err
	}

	ids := make([]string, 0, len(participants))
	for _, p := range participants {
		ids = append(ids, p.UserID)
	}
	return calculator.Settle(eventID, expenses, ids), nil
}

// PaymentStatus reports the provider's view of an intent.
func (s *ExpenseService) PaymentStatus(ctx context.Context, intentID string) (*payment.Intent, error) {
	if err := requireID("intent_id", intentID); err != nil {
		return nil, err
	}
	intent, err := s.payments.GetIntent(ctx, intentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment intent: %w", err)
	}
	return intent, nil
}
