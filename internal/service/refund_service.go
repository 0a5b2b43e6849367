package service

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/mmynk/cooper/internal/models"
	"github.com/mmynk/cooper/internal/storage"
)

// WalletView is a user's matured balance plus refunds still locked.
type WalletView struct {
	Wallet  *models.Wallet
	Pending []*models.Refund
}

// RefundService schedules refunds and reports wallets.
type RefundService struct {
	store storage.Store
}

// NewRefundService creates a refund service.
func NewRefundService(store storage.Store) *RefundService {
	return &RefundService{store: store}
}

// Schedule books a refund for a participant of eventID, credited to their
// wallet at releaseAt (Unix seconds). Only the event admin may do this.
func (s *RefundService) Schedule(ctx context.Context, actor, eventID, userID string, amount decimal.Decimal, releaseAt int64) (*models.Refund, error) {
	if err := requireID("user_id", userID); err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, invalidArgument("amount must be positive")
	}
	if releaseAt <= 0 {
		return nil, invalidArgument("release_at is required")
	}
	if _, err := requireAdmin(ctx, s.store, eventID, actor); err != nil {
		return nil, err
	}
	ok, err := s.store.IsParticipant(ctx, eventID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, invalidArgument("refund recipient is not a participant")
	}

	refund := &models.Refund{UserID: userID, Amount: amount, ReleaseAt: releaseAt}
	if err := s.store.CreateRefund(ctx, refund); err != nil {
		return nil, err
	}
	slog.Info("Refund scheduled", "refund_id", refund.ID, "event_id", eventID, "user_id", userID, "release_at", releaseAt)
	return refund, nil
}

// Wallet returns actor's wallet and pending refunds.
func (s *RefundService) Wallet(ctx context.Context, actor string) (*WalletView, error) {
	wallet, err := s.store.GetWallet(ctx, actor)
	if err != nil {
		return nil, err
	}
	pending, err := s.store.ListRefundsByUser(ctx, actor)
	if err != nil {
		return nil, err
	}
	return &WalletView{Wallet: wallet, Pending: pending}, nil
}
