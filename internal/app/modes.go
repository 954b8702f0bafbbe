package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/defilabs/poolscan/internal/notify"
	"github.com/defilabs/poolscan/internal/pipeline"
)

// OnceMode runs a single scan, exports the results, and exits.
func (a *App) OnceMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting once mode")

	report, err := deps.Orchestrator.Run(ctx, deps.Request)
	if err != nil {
		return fmt.Errorf("app: scan: %w", err)
	}
	a.export(ctx, deps, report)
	return nil
}

// WatchMode scans immediately and then on every update interval until the
// context is cancelled. A failed scan is logged and the loop continues.
func (a *App) WatchMode(ctx context.Context, deps *Dependencies) error {
	interval := a.cfg.Scan.UpdateInterval.Duration
	a.logger.InfoContext(ctx, "starting watch mode", slog.Duration("interval", interval))

	runOnce := func() {
		report, err := deps.Orchestrator.Run(ctx, deps.Request)
		if err != nil {
			if ctx.Err() == nil {
				a.logger.ErrorContext(ctx, "scan failed", slog.String("error", err.Error()))
			}
			return
		}
		a.export(ctx, deps, report)
	}

	runOnce()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("watch mode stopped")
			return ctx.Err()
		case <-ticker.C:
			runOnce()
		}
	}
}

// export pushes a completed report to every configured sink. Sink failures
// are logged, never fatal: the scan's results were already computed and the
// next run should proceed.
func (a *App) export(ctx context.Context, deps *Dependencies, report *pipeline.Report) {
	if deps.SnapshotStore != nil {
		if err := deps.SnapshotStore.SaveSnapshots(ctx, report.RunID, report.Pools()); err != nil {
			a.logger.ErrorContext(ctx, "snapshot save failed",
				slog.String("run_id", report.RunID),
				slog.String("error", err.Error()),
			)
		}
	}

	if deps.BlobWriter != nil {
		if err := a.archive(ctx, deps, report); err != nil {
			a.logger.ErrorContext(ctx, "run archive failed",
				slog.String("run_id", report.RunID),
				slog.String("error", err.Error()),
			)
		}
	}

	if deps.Notifier != nil {
		title, message := notify.RunSummary(report)
		if err := deps.Notifier.Notify(ctx, title, message); err != nil {
			a.logger.ErrorContext(ctx, "run notification failed",
				slog.String("run_id", report.RunID),
				slog.String("error", err.Error()),
			)
		}
	}
}

// archive uploads the report as JSON under runs/<date>/<run-id>.json.
func (a *App) archive(ctx context.Context, deps *Dependencies, report *pipeline.Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("app: marshal report: %w", err)
	}

	path := fmt.Sprintf("runs/%s/%s.json", report.StartedAt.Format("2006-01-02"), report.RunID)
	if err := deps.BlobWriter.Put(ctx, path, bytes.NewReader(data), "application/json"); err != nil {
		return err
	}

	a.logger.InfoContext(ctx, "run archived",
		slog.String("run_id", report.RunID),
		slog.String("path", path),
	)
	return nil
}
