package service

import (
	"context"
	"log/slog"

	"github.com/mmynk/cooper/internal/milestone"
	"github.com/mmynk/cooper/internal/models"
	"github.com/mmynk/cooper/internal/storage"
)

// MilestoneService records milestone progress and triggers fund release.
type MilestoneService struct {
	store  storage.Store
	engine *milestone.Engine
}

// NewMilestoneService creates a milestone service.
func NewMilestoneService(store storage.Store, engine *milestone.Engine) *MilestoneService {
	return &MilestoneService{store: store, engine: engine}
}

// load returns the milestone, its expense and the expense's event, after
// checking that actor participates in the event.
func (s *MilestoneService) load(ctx context.Context, actor, milestoneID string) (*models.Milestone, *models.Expense, *models.Event, error) {
	m, err := s.store.GetMilestone(ctx, milestoneID)
	if err != nil {
		return nil, nil, nil, err
	}
	expense, err := s.store.GetExpense(ctx, m.ExpenseID)
	if err != nil {
		return nil, nil, nil, err
	}
	event, err := requireParticipant(ctx, s.store, expense.EventID, actor)
	if err != nil {
		return nil, nil, nil, err
	}
	return m, expense, event, nil
}

// Get returns a milestone.
func (s *MilestoneService) Get(ctx context.Context, actor, milestoneID string) (*models.Milestone, error) {
	m, _, _, err := s.load(ctx, actor, milestoneID)
	return m, err
}

// UploadBill records that the bill for the expense was provided. The
// expense's creator or the event admin may do this.
func (s *MilestoneService) UploadBill(ctx context.Context, actor, milestoneID string) (*models.Milestone, error) {
	_, expense, event, err := s.load(ctx, actor, milestoneID)
	if err != nil {
		return nil, err
	}
	if expense.CreatedBy != actor && !event.IsAdmin(actor) {
		return nil, forbidden("only the spender or the event admin can upload the bill")
	}
	if err := s.store.MarkBillUploaded(ctx, milestoneID); err != nil {
		return nil, err
	}
	return s.afterFlag(ctx, milestoneID)
}

// Approve records the admin's approval of the milestone.
func (s *MilestoneService) Approve(ctx context.Context, actor, milestoneID string) (*models.Milestone, error) {
	_, _, event, err := s.load(ctx, actor, milestoneID)
	if err != nil {
		return nil, err
	}
	if !event.IsAdmin(actor) {
		return nil, forbidden("only the event admin can approve a milestone")
	}
	if err := s.store.MarkApproved(ctx, milestoneID); err != nil {
		return nil, err
	}
	return s.afterFlag(ctx, milestoneID)
}

// afterFlag attempts the release once a flag changed. A failed release is
// logged only: the flag change stands and the sweeper retries.
func (s *MilestoneService) afterFlag(ctx context.Context, milestoneID string) (*models.Milestone, error) {
	if _, err := s.engine.TryRelease(ctx, milestoneID); err != nil {
		slog.Warn("Release after milestone update failed", "milestone_id", milestoneID, "error", err)
	}
	return s.store.GetMilestone(ctx, milestoneID)
}

// Release attempts the release explicitly. Unlike the flag updates it
// returns a provider failure to the caller.
func (s *MilestoneService) Release(ctx context.Context, actor, milestoneID string) (*models.Milestone, bool, error) {
	if _, _, _, err := s.load(ctx, actor, milestoneID); err != nil {
		return nil, false, err
	}
	released, err := s.engine.TryRelease(ctx, milestoneID)
	if err != nil {
		return nil, false, err
	}
	m, err := s.store.GetMilestone(ctx, milestoneID)
	if err != nil {
		return nil, false, err
	}
	return m, released, nil
}
