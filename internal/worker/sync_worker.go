package worker

import (
	"context"
	"log/slog"
	"time"

	"bfast/internal/service"
)

// Syncer is the engine surface the worker drives.
type Syncer interface {
	SyncAll(ctx context.Context) (*service.SyncSummary, error)
	RefreshDeliveryStatus(ctx context.Context) (*service.RefreshSummary, error)
}

// SyncWorker triggers a full reconciliation pass on a fixed interval: tenant
// order sync first, then delivery status refresh. No business logic of its
// own.
type SyncWorker struct {
	engine   Syncer
	interval time.Duration
}

func NewSyncWorker(engine Syncer, interval time.Duration) *SyncWorker {
	return &SyncWorker{
		engine:   engine,
		interval: interval,
	}
}

// Start runs one pass immediately, then one per interval until the context
// is cancelled. Pass failures are logged and never stop the ticker; an
// in-flight pass runs to completion on shutdown.
func (w *SyncWorker) Start(ctx context.Context) {
	slog.Info("starting sync worker", "interval", w.interval)

	w.runPass(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("sync worker stopped")
			return
		case <-ticker.C:
			w.runPass(ctx)
		}
	}
}

func (w *SyncWorker) runPass(ctx context.Context) {
	started := time.Now()

	summary, err := w.engine.SyncAll(ctx)
	if err != nil {
		slog.Error("order sync pass failed", "error", err)
	} else {
		slog.Info("order sync pass finished",
			"tenants", summary.Tenants, "synced", summary.Synced, "failed", summary.Failed)
	}

	refresh, err := w.engine.RefreshDeliveryStatus(ctx)
	if err != nil {
		slog.Error("delivery refresh pass failed", "error", err)
	} else {
		slog.Info("delivery refresh pass finished",
			"checked", refresh.Checked, "updated", refresh.Updated, "skipped", refresh.Skipped)
	}

	slog.Info("sync pass complete", "duration", time.Since(started))
}
