package api

import (
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/mmynk/cooper/internal/middleware"
	"github.com/mmynk/cooper/internal/service"
)

func actor(r *http.Request) string {
	return middleware.GetUserID(r.Context())
}

// Auth

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	slog.Info("Register request received", "email", req.Email)

	session, err := s.cfg.Auth.Register(r.Context(), req.Email, req.DisplayName, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionView{User: newUserView(session.User), Token: session.Token})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	slog.Info("Login request received", "email", req.Email)

	session, err := s.cfg.Auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionView{User: newUserView(session.User), Token: session.Token})
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	user, err := s.cfg.Auth.CurrentUser(r.Context(), actor(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserView(user))
}

// Events

type createEventRequest struct {
	Title string `json:"title"`
}

func (s *Server) createEvent(w http.ResponseWriter, r *http.Request) {
	var req createEventRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	slog.Info("CreateEvent request received", "title", req.Title, "user_id", actor(r))

	event, err := s.cfg.Events.CreateEvent(r.Context(), actor(r), req.Title)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newEventView(event, nil))
}

func (s *Server) getEvent(w http.ResponseWriter, r *http.Request) {
	detail, err := s.cfg.Events.GetEvent(r.Context(), r.PathValue("eventID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newEventView(detail.Event, detail.Participants))
}

func (s *Server) listMyEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.cfg.Events.ListMyEvents(r.Context(), actor(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	views := make([]eventView, 0, len(events))
	for _, e := range events {
		views = append(views, newEventView(e, nil))
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": views})
}

func (s *Server) joinEvent(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("eventID")
	if err := s.cfg.Events.Join(r.Context(), actor(r), eventID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "joined", "event_id": eventID})
}

type addParticipantRequest struct {
	Email string `json:"email"`
}

func (s *Server) addParticipant(w http.ResponseWriter, r *http.Request) {
	var req addParticipantRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	user, err := s.cfg.Events.AddParticipant(r.Context(), actor(r), r.PathValue("eventID"), req.Email)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newUserView(user))
}

// Categories

type createCategoryRequest struct {
	Name string `json:"name"`
}

func (s *Server) createCategory(w http.ResponseWriter, r *http.Request) {
	var req createCategoryRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	category, err := s.cfg.Events.CreateCategory(r.Context(), actor(r), r.PathValue("eventID"), req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newCategoryView(category))
}

func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.cfg.Events.ListCategories(r.Context(), actor(r), r.PathValue("eventID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	views := make([]categoryView, 0, len(categories))
	for _, c := range categories {
		views = append(views, newCategoryView(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": views})
}

func (s *Server) joinCategory(w http.ResponseWriter, r *http.Request) {
	category, err := s.cfg.Events.JoinCategory(r.Context(), actor(r), r.PathValue("categoryID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "joined", "category_id": category.ID})
}

// Expenses and pool

type createExpenseRequest struct {
	CategoryID string           `json:"category_id"`
	Amount     *decimal.Decimal `json:"amount"`
}

func (s *Server) createExpense(w http.ResponseWriter, r *http.Request) {
	var req createExpenseRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Amount == nil {
		writeError(w, r, requiredField("amount"))
		return
	}
	eventID := r.PathValue("eventID")
	slog.Info("CreateExpense request received",
		"event_id", eventID,
		"category_id", req.CategoryID,
		"amount", req.Amount.String(),
		"user_id", actor(r),
	)

	receipt, err := s.cfg.Expenses.CreateExpense(r.Context(), actor(r), eventID, req.CategoryID, *req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, expenseCreatedView{
		Expense:     newExpenseView(receipt.Expense),
		MilestoneID: receipt.Milestone.ID,
		intentView:  newIntentView(receipt.Intent),
	})
}

func (s *Server) listExpenses(w http.ResponseWriter, r *http.Request) {
	expenses, err := s.cfg.Expenses.ListExpenses(r.Context(), actor(r), r.PathValue("eventID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	views := make([]expenseView, 0, len(expenses))
	for _, e := range expenses {
		views = append(views, newExpenseView(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{"expenses": views})
}

func (s *Server) expenseChart(w http.ResponseWriter, r *http.Request) {
	totals, err := s.cfg.Expenses.Chart(r.Context(), actor(r), r.PathValue("eventID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	views := make([]chartEntryView, 0, len(totals))
	for _, t := range totals {
		views = append(views, chartEntryView{Category: t.Category, Amount: t.Amount})
	}
	writeJSON(w, http.StatusOK, map[string]any{"event_id": r.PathValue("eventID"), "categories": views})
}

type depositRequest struct {
	Amount *decimal.Decimal `json:"amount"`
}

func (s *Server) deposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Amount == nil {
		writeError(w, r, requiredField("amount"))
		return
	}

	receipt, err := s.cfg.Expenses.Deposit(r.Context(), actor(r), r.PathValue("eventID"), *req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, depositView{
		Contribution: newContributionView(receipt.Contribution),
		intentView:   newIntentView(receipt.Intent),
	})
}

func (s *Server) getPool(w http.ResponseWriter, r *http.Request) {
	pool, err := s.cfg.Expenses.Pool(r.Context(), actor(r), r.PathValue("eventID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPoolView(pool))
}

func (s *Server) getSettlement(w http.ResponseWriter, r *http.Request) {
	settlement, err := s.cfg.Expenses.Settlement(r.Context(), actor(r), r.PathValue("eventID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSettlementView(settlement))
}

func (s *Server) paymentStatus(w http.ResponseWriter, r *http.Request) {
	intent, err := s.cfg.Expenses.PaymentStatus(r.Context(), r.PathValue("intentID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newIntentView(intent))
}

// Votes and rules

type voteRequest struct {
	TargetUserID string `json:"target_user_id"`
	Approve      *bool  `json:"approve"`
}

func (s *Server) castVote(w http.ResponseWriter, r *http.Request) {
	var req voteRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Approve == nil {
		writeError(w, r, requiredField("approve"))
		return
	}
	eventID := r.PathValue("eventID")
	slog.Info("Vote request received", "event_id", eventID, "target_user_id", req.TargetUserID, "user_id", actor(r))

	tally, err := s.cfg.Events.CastVote(r.Context(), actor(r), eventID, req.TargetUserID, *req.Approve)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newTallyView(eventID, req.TargetUserID, tally))
}

func (s *Server) getApproval(w http.ResponseWriter, r *http.Request) {
	eventID, userID := r.PathValue("eventID"), r.PathValue("userID")
	tally, err := s.cfg.Events.Approval(r.Context(), actor(r), eventID, userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newTallyView(eventID, userID, tally))
}

type ruleRequest struct {
	MaxAmount        *decimal.Decimal `json:"max_amount"`
	AdminOnly        bool             `json:"admin_only"`
	ApprovalRequired bool             `json:"approval_required"`
}

func (s *Server) putRule(w http.ResponseWriter, r *http.Request) {
	var req ruleRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	rule, err := s.cfg.Events.PutRule(r.Context(), actor(r), r.PathValue("eventID"), service.RuleInput{
		MaxAmount:        req.MaxAmount,
		AdminOnly:        req.AdminOnly,
		ApprovalRequired: req.ApprovalRequired,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newRuleView(rule))
}

func (s *Server) getRule(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("eventID")
	rule, err := s.cfg.Events.GetRule(r.Context(), actor(r), eventID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rule == nil {
		writeJSON(w, http.StatusOK, map[string]any{"event_id": eventID, "rule": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"event_id": eventID, "rule": newRuleView(rule)})
}

// Milestones

func (s *Server) getMilestone(w http.ResponseWriter, r *http.Request) {
	m, err := s.cfg.Milestones.Get(r.Context(), actor(r), r.PathValue("milestoneID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newMilestoneView(m))
}

func (s *Server) uploadBill(w http.ResponseWriter, r *http.Request) {
	m, err := s.cfg.Milestones.UploadBill(r.Context(), actor(r), r.PathValue("milestoneID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newMilestoneView(m))
}

func (s *Server) approveMilestone(w http.ResponseWriter, r *http.Request) {
	m, err := s.cfg.Milestones.Approve(r.Context(), actor(r), r.PathValue("milestoneID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newMilestoneView(m))
}

func (s *Server) releaseMilestone(w http.ResponseWriter, r *http.Request) {
	milestoneID := r.PathValue("milestoneID")
	slog.Info("ReleaseMilestone request received", "milestone_id", milestoneID, "user_id", actor(r))

	m, released, err := s.cfg.Milestones.Release(r.Context(), actor(r), milestoneID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"released_now": released, "milestone": newMilestoneView(m)})
}

// Refunds

type refundRequest struct {
	EventID   string           `json:"event_id"`
	UserID    string           `json:"user_id"`
	Amount    *decimal.Decimal `json:"amount"`
	ReleaseAt int64            `json:"release_at"`
}

func (s *Server) scheduleRefund(w http.ResponseWriter, r *http.Request) {
	var req refundRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Amount == nil {
		writeError(w, r, requiredField("amount"))
		return
	}

	refund, err := s.cfg.Refunds.Schedule(r.Context(), actor(r), req.EventID, req.UserID, *req.Amount, req.ReleaseAt)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newRefundView(refund))
}

func (s *Server) getWallet(w http.ResponseWriter, r *http.Request) {
	view, err := s.cfg.Refunds.Wallet(r.Context(), actor(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	pending := make([]refundView, 0, len(view.Pending))
	for _, p := range view.Pending {
		pending = append(pending, newRefundView(p))
	}
	writeJSON(w, http.StatusOK, walletView{UserID: view.Wallet.UserID, Balance: view.Wallet.Balance, Pending: pending})
}
