// Package workers runs the periodic maintenance of the token store.
package workers

import (
	"context"
	"errors"
	"time"

	"github.com/newsplatform/sessiond/internal/logging"
)

// Janitor is the maintenance surface the worker drives.
type Janitor interface {
	SweepExpired(ctx context.Context) (int, error)
	ReconcileAll(ctx context.Context) (int, error)
}

// CleanupWorker triggers retention sweeps and duplicate reconciliation on
// their own schedules. Both run once immediately on start, so a restart
// never postpones overdue maintenance by a full interval. A failed run is
// logged and the schedule keeps going.
type CleanupWorker struct {
	janitor        Janitor
	sweepEvery     time.Duration
	reconcileEvery time.Duration
	logger         logging.Logger
}

func NewCleanupWorker(j Janitor, sweepEvery, reconcileEvery time.Duration, logger logging.Logger) *CleanupWorker {
	return &CleanupWorker{
		janitor:        j,
		sweepEvery:     sweepEvery,
		reconcileEvery: reconcileEvery,
		logger:         logger.With("component", "cleanup_worker"),
	}
}

// Run blocks until ctx is cancelled.
func (w *CleanupWorker) Run(ctx context.Context) {
	sweep := time.NewTicker(w.sweepEvery)
	defer sweep.Stop()
	reconcile := time.NewTicker(w.reconcileEvery)
	defer reconcile.Stop()

	w.runSweep(ctx)
	w.runReconcile(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info(ctx, "cleanup worker stopping")
			return
		case <-sweep.C:
			w.runSweep(ctx)
		case <-reconcile.C:
			w.runReconcile(ctx)
		}
	}
}

func (w *CleanupWorker) runSweep(ctx context.Context) {
	n, err := w.janitor.SweepExpired(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		w.logger.Error(ctx, "retention sweep failed", "error", err, "deleted_before_failure", n)
		return
	}
	w.logger.Debug(ctx, "retention sweep finished", "deleted", n)
}

func (w *CleanupWorker) runReconcile(ctx context.Context) {
	n, err := w.janitor.ReconcileAll(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		w.logger.Error(ctx, "duplicate reconciliation failed", "error", err, "deleted_before_failure", n)
		return
	}
	w.logger.Debug(ctx, "duplicate reconciliation finished", "deleted", n)
}
