// Package milestone releases an expense's held funds once its bill has been
// uploaded and the release approved.
package milestone

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mmynk/cooper/internal/metrics"
	"github.com/mmynk/cooper/internal/models"
	"github.com/mmynk/cooper/internal/telemetry"
)

// DefaultLease is how long a release claim blocks other attempts. A
// provider call made under a claim is cut off at half the lease.
const DefaultLease = 5 * time.Minute

// Store is the persistence the engine needs.
type Store interface {
	GetMilestone(ctx context.Context, milestoneID string) (*models.Milestone, error)
	ClaimRelease(ctx context.Context, milestoneID string, now, staleBefore int64) (bool, error)
	CompleteRelease(ctx context.Context, milestoneID string, now int64) error
	AbandonRelease(ctx context.Context, milestoneID string) error
	ListReleasable(ctx context.Context, limit int) ([]*models.Milestone, error)
}

// Releaser asks the payment provider to release an intent.
type Releaser interface {
	ReleaseIntent(ctx context.Context, intentID string) error
}

// Option configures an Engine.
type Option func(*Engine)

// WithLease overrides DefaultLease.
func WithLease(lease time.Duration) Option {
	return func(e *Engine) {
		if lease > 0 {
			e.lease = lease
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithMetrics records release outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// Engine drives milestone releases.
type Engine struct {
	store    Store
	releaser Releaser
	lease    time.Duration
	now      func() time.Time
	metrics  *metrics.Metrics
}

// NewEngine creates a release engine.
func NewEngine(store Store, releaser Releaser, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		releaser: releaser,
		lease:    DefaultLease,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// TryRelease releases the milestone's funds if both prerequisites hold and
// it has not been released yet. It returns true only for the call that
// performed the release. A provider failure leaves the milestone unreleased
// and is returned so the caller can retry.
func (e *Engine) TryRelease(ctx context.Context, milestoneID string) (released bool, err error) {
	ctx, span := telemetry.Tracer().Start(ctx, "milestone.TryRelease",
		trace.WithAttributes(attribute.String("milestone.id", milestoneID)))
	defer func() {
		span.SetAttributes(attribute.Bool("milestone.released", released))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	m, err := e.store.GetMilestone(ctx, milestoneID)
	if err != nil {
		return false, err
	}
	if !m.Releasable() {
		return false, nil
	}

	now := e.now().Unix()
	claimed, err := e.store.ClaimRelease(ctx, milestoneID, now, now-int64(e.lease/time.Second))
	if err != nil {
		return false, fmt.Errorf("failed to claim milestone: %w", err)
	}
	if !claimed {
		e.metrics.MilestoneRelease("contended")
		return false, nil
	}

	// The claim must be settled even if the caller goes away mid-release.
	settleCtx := context.WithoutCancel(ctx)

	// The provider call must finish well inside the lease, or a second
	// attempt could retake the claim while this one is still in flight.
	releaseCtx, cancel := context.WithTimeout(ctx, e.lease/2)
	defer cancel()

	if err := e.releaser.ReleaseIntent(releaseCtx, m.IntentID); err != nil {
		if abandonErr := e.store.AbandonRelease(settleCtx, milestoneID); abandonErr != nil {
			slog.Error("Failed to abandon release claim", "milestone_id", milestoneID, "error", abandonErr)
		}
		e.metrics.MilestoneRelease("failed")
		return false, fmt.Errorf("failed to release intent %s: %w", m.IntentID, err)
	}

	if err := e.store.CompleteRelease(settleCtx, milestoneID, e.now().Unix()); err != nil {
		// The provider has released; the claim stays until the lease expires
		// and the retry reuses the same idempotency key.
		slog.Error("Released intent but failed to record it", "milestone_id", milestoneID, "intent_id", m.IntentID, "error", err)
		e.metrics.MilestoneRelease("failed")
		return false, fmt.Errorf("failed to record release: %w", err)
	}

	slog.Info("Milestone released", "milestone_id", milestoneID, "intent_id", m.IntentID)
	e.metrics.MilestoneRelease("released")
	return true, nil
}

// Sweep retries up to limit releasable milestones. It keeps going past
// individual failures and returns them joined.
func (e *Engine) Sweep(ctx context.Context, limit int) (int, error) {
	pending, err := e.store.ListReleasable(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list releasable milestones: %w", err)
	}

	var (
		released int
		errs     []error
	)
	for _, m := range pending {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		ok, err := e.TryRelease(ctx, m.ID)
		if err != nil {
			slog.Warn("Milestone release failed", "milestone_id", m.ID, "error", err)
			errs = append(errs, err)
			continue
		}
		if ok {
			released++
		}
	}
	return released, errors.Join(errs...)
}
