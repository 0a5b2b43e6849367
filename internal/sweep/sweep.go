// Package sweep runs the periodic background work: maturing refunds and
// retrying milestone releases that failed earlier.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mmynk/cooper/internal/refund"
)

const (
	// DefaultInterval is how often Run sweeps when no interval is given.
	DefaultInterval = time.Minute
	// DefaultBatch caps the milestones retried per sweep.
	DefaultBatch = 100
	// TickTimeout bounds a single sweep.
	TickTimeout = 30 * time.Second
)

// RefundProcessor matures refunds due at now.
type RefundProcessor interface {
	ProcessRefunds(ctx context.Context, now int64) (refund.Result, error)
}

// MilestoneSweeper retries up to limit releasable milestones.
type MilestoneSweeper interface {
	Sweep(ctx context.Context, limit int) (int, error)
}

// Report summarises one sweep.
type Report struct {
	Refunds  refund.Result
	Released int
}

// Runner sweeps on a fixed interval.
type Runner struct {
	refunds    RefundProcessor
	milestones MilestoneSweeper
	interval   time.Duration
	batch      int
	now        func() time.Time
}

// NewRunner creates a sweep runner. Non-positive interval or batch fall
// back to the defaults.
func NewRunner(refunds RefundProcessor, milestones MilestoneSweeper, interval time.Duration, batch int) *Runner {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if batch <= 0 {
		batch = DefaultBatch
	}
	return &Runner{
		refunds:    refunds,
		milestones: milestones,
		interval:   interval,
		batch:      batch,
		now:        time.Now,
	}
}

// RunOnce performs a single sweep. Both halves always run; their errors
// are joined.
func (r *Runner) RunOnce(ctx context.Context) (Report, error) {
	var (
		rep  Report
		errs []error
	)

	res, err := r.refunds.ProcessRefunds(ctx, r.now().Unix())
	rep.Refunds = res
	if err != nil {
		errs = append(errs, fmt.Errorf("refunds: %w", err))
	}

	released, err := r.milestones.Sweep(ctx, r.batch)
	rep.Released = released
	if err != nil {
		errs = append(errs, fmt.Errorf("milestones: %w", err))
	}

	return rep, errors.Join(errs...)
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (r *Runner) Run(ctx context.Context) {
	slog.Info("Sweeper started", "interval", r.interval, "batch", r.batch)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			slog.Info("Sweeper stopped")
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Runner) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	tickCtx, cancel := context.WithTimeout(ctx, TickTimeout)
	defer cancel()

	rep, err := r.RunOnce(tickCtx)
	if err != nil {
		slog.Warn("Sweep finished with errors", "matured", rep.Refunds.Matured, "released", rep.Released, "error", err)
		return
	}
	if rep.Refunds.Matured > 0 || rep.Released > 0 {
		slog.Info("Sweep finished", "matured", rep.Refunds.Matured, "released", rep.Released)
	}
}
