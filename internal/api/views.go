package api

import (
	"github.com/shopspring/decimal"

	"github.com/mmynk/cooper/internal/models"
	"github.com/mmynk/cooper/internal/payment"
	"github.com/mmynk/cooper/internal/voting"
)

// JSON shapes returned by the API. Money is rendered as a decimal string.

type userView struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	CreatedAt   int64  `json:"created_at"`
}

func newUserView(u *models.User) userView {
	return userView{ID: u.ID, Email: u.Email, DisplayName: u.DisplayName, CreatedAt: u.CreatedAt}
}

type sessionView struct {
	User  userView `json:"user"`
	Token string   `json:"token"`
}

type participantView struct {
	UserID   string `json:"user_id"`
	JoinedAt int64  `json:"joined_at"`
}

type eventView struct {
	ID           string            `json:"id"`
	Title        string            `json:"title"`
	AdminUserID  string            `json:"admin_user_id"`
	CreatedAt    int64             `json:"created_at"`
	Participants []participantView `json:"participants,omitempty"`
}

func newEventView(e *models.Event, participants []models.Participant) eventView {
	v := eventView{ID: e.ID, Title: e.Title, AdminUserID: e.AdminUserID, CreatedAt: e.CreatedAt}
	for _, p := range participants {
		v.Participants = append(v.Participants, participantView{UserID: p.UserID, JoinedAt: p.JoinedAt})
	}
	return v
}

type categoryView struct {
	ID        string `json:"id"`
	EventID   string `json:"event_id"`
	Name      string `json:"name"`
	CreatedAt int64  `json:"created_at"`
}

func newCategoryView(c *models.Category) categoryView {
	return categoryView{ID: c.ID, EventID: c.EventID, Name: c.Name, CreatedAt: c.CreatedAt}
}

type intentView struct {
	IntentID         string `json:"intent_id"`
	PaymentURL       string `json:"payment_url,omitempty"`
	Status           string `json:"status"`
	SettlementStatus string `json:"settlement_status,omitempty"`
}

func newIntentView(i *payment.Intent) intentView {
	return intentView{IntentID: i.ID, PaymentURL: i.PaymentURL, Status: i.Status, SettlementStatus: i.SettlementStatus}
}

type expenseView struct {
	ID              string          `json:"id"`
	EventID         string          `json:"event_id"`
	CategoryID      string          `json:"category_id"`
	CreatedBy       string          `json:"created_by"`
	Amount          decimal.Decimal `json:"amount"`
	PaymentIntentID string          `json:"payment_intent_id"`
	CreatedAt       int64           `json:"created_at"`
}

func newExpenseView(e *models.Expense) expenseView {
	return expenseView{
		ID:              e.ID,
		EventID:         e.EventID,
		CategoryID:      e.CategoryID,
		CreatedBy:       e.CreatedBy,
		Amount:          e.Amount,
		PaymentIntentID: e.PaymentIntentID,
		CreatedAt:       e.CreatedAt,
	}
}

type expenseCreatedView struct {
	Expense     expenseView `json:"expense"`
	MilestoneID string      `json:"milestone_id"`
	intentView
}

type contributionView struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	Amount          decimal.Decimal `json:"amount"`
	PaymentIntentID string          `json:"payment_intent_id"`
	CreatedAt       int64           `json:"created_at"`
}

func newContributionView(c *models.Contribution) contributionView {
	return contributionView{ID: c.ID, UserID: c.UserID, Amount: c.Amount, PaymentIntentID: c.PaymentIntentID, CreatedAt: c.CreatedAt}
}

type depositView struct {
	Contribution contributionView `json:"contribution"`
	intentView
}

type poolView struct {
	EventID      string             `json:"event_id"`
	TotalPool    decimal.Decimal    `json:"total_pool"`
	Contributors []contributionView `json:"contributors"`
}

func newPoolView(p models.Pool) poolView {
	v := poolView{EventID: p.EventID, TotalPool: p.Total, Contributors: []contributionView{}}
	for i := range p.Contributors {
		v.Contributors = append(v.Contributors, newContributionView(&p.Contributors[i]))
	}
	return v
}

// NetBalance is always rendered with two decimals.
type balanceView struct {
	UserID     string `json:"user_id"`
	NetBalance string `json:"net_balance"`
}

type settlementView struct {
	EventID  string        `json:"event_id"`
	Balances []balanceView `json:"balances"`
}

func newSettlementView(s models.Settlement) settlementView {
	v := settlementView{EventID: s.EventID, Balances: []balanceView{}}
	for _, b := range s.Balances {
		v.Balances = append(v.Balances, balanceView{UserID: b.UserID, NetBalance: b.NetBalance.StringFixed(2)})
	}
	return v
}

type chartEntryView struct {
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
}

type tallyView struct {
	EventID      string `json:"event_id"`
	UserID       string `json:"user_id"`
	Approvals    int    `json:"approvals"`
	Participants int    `json:"participants"`
	Approved     bool   `json:"approved"`
}

func newTallyView(eventID, userID string, t voting.Tally) tallyView {
	return tallyView{EventID: eventID, UserID: userID, Approvals: t.Approvals, Participants: t.Participants, Approved: t.Approved}
}

type ruleView struct {
	EventID          string           `json:"event_id"`
	MaxAmount        *decimal.Decimal `json:"max_amount"`
	AdminOnly        bool             `json:"admin_only"`
	ApprovalRequired bool             `json:"approval_required"`
	UpdatedAt        int64            `json:"updated_at"`
}

func newRuleView(r *models.SpendingRule) ruleView {
	v := ruleView{EventID: r.EventID, AdminOnly: r.AdminOnly, ApprovalRequired: r.ApprovalRequired, UpdatedAt: r.UpdatedAt}
	if r.MaxAmount.Valid {
		limit := r.MaxAmount.Decimal
		v.MaxAmount = &limit
	}
	return v
}

type milestoneView struct {
	ID           string `json:"id"`
	ExpenseID    string `json:"expense_id"`
	IntentID     string `json:"intent_id"`
	BillUploaded bool   `json:"bill_uploaded"`
	Approved     bool   `json:"approved"`
	Released     bool   `json:"released"`
	State        string `json:"state"`
	ReleasedAt   int64  `json:"released_at,omitempty"`
}

func newMilestoneView(m *models.Milestone) milestoneView {
	return milestoneView{
		ID:           m.ID,
		ExpenseID:    m.ExpenseID,
		IntentID:     m.IntentID,
		BillUploaded: m.BillUploaded,
		Approved:     m.Approved,
		Released:     m.Released,
		State:        string(m.State()),
		ReleasedAt:   m.ReleasedAt,
	}
}

type refundView struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Amount    decimal.Decimal `json:"amount"`
	ReleaseAt int64           `json:"release_at"`
}

func newRefundView(r *models.Refund) refundView {
	return refundView{ID: r.ID, UserID: r.UserID, Amount: r.Amount, ReleaseAt: r.ReleaseAt}
}

type walletView struct {
	UserID  string          `json:"user_id"`
	Balance decimal.Decimal `json:"balance"`
	Pending []refundView    `json:"pending_refunds"`
}
