// Package refund matures time-locked refunds into user wallets.
package refund

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/mmynk/cooper/internal/metrics"
	"github.com/mmynk/cooper/internal/models"
	"github.com/mmynk/cooper/internal/telemetry"
)

// Store is the persistence the sweeper needs.
type Store interface {
	ListMaturedRefunds(ctx context.Context, now int64) ([]*models.Refund, error)
	MatureRefund(ctx context.Context, refundID string, now int64) (bool, error)
}

// Result summarises one sweep.
type Result struct {
	// Matured counts refunds this sweep credited.
	Matured int
	// Skipped counts refunds another sweep matured first.
	Skipped int
	// Failed counts refunds left in place after an error.
	Failed int
}

// Sweeper credits matured refunds.
type Sweeper struct {
	store   Store
	metrics *metrics.Metrics
}

// NewSweeper creates a refund sweeper. m may be nil.
func NewSweeper(store Store, m *metrics.Metrics) *Sweeper {
	return &Sweeper{store: store, metrics: m}
}

// ProcessRefunds credits every refund whose release time is at or before
// now. Each refund is matured in its own transaction, so a failure leaves
// only that refund for the next sweep. Safe to run concurrently with other
// sweeps: a refund is credited by exactly one of them.
func (s *Sweeper) ProcessRefunds(ctx context.Context, now int64) (res Result, err error) {
	ctx, span := telemetry.Tracer().Start(ctx, "refund.ProcessRefunds")
	defer func() {
		span.SetAttributes(
			attribute.Int("refund.matured", res.Matured),
			attribute.Int("refund.skipped", res.Skipped),
			attribute.Int("refund.failed", res.Failed),
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	due, err := s.store.ListMaturedRefunds(ctx, now)
	if err != nil {
		return Result{}, fmt.Errorf("failed to list matured refunds: %w", err)
	}

	var errs []error
	for _, r := range due {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		credited, err := s.store.MatureRefund(ctx, r.ID, now)
		switch {
		case err != nil:
			slog.Warn("Failed to mature refund", "refund_id", r.ID, "user_id", r.UserID, "error", err)
			res.Failed++
			errs = append(errs, fmt.Errorf("refund %s: %w", r.ID, err))
		case credited:
			res.Matured++
		default:
			res.Skipped++
		}
	}

	s.metrics.RefundsMatured(res.Matured)
	if len(due) > 0 {
		slog.Info("Refund sweep finished", "matured", res.Matured, "skipped", res.Skipped, "failed", res.Failed)
	}
	return res, errors.Join(errs...)
}
