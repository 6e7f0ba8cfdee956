// Package maintenance runs periodic housekeeping around the pipeline's
// storage areas. Reports observe and log; nothing here ever deletes an
// artifact.
package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/fetcharr/fetcharr/internal/progress"
	"github.com/fetcharr/fetcharr/internal/storage"
)

// StorageReporter logs storage usage and orphaned progress records on
// a cron schedule. Orphans are diagnostic artifacts from crashed jobs;
// they are counted and named, never cleaned up automatically.
type StorageReporter struct {
	layout   *storage.Layout
	tracker  *progress.Tracker
	schedule cron.Schedule
	logger   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewStorageReporter creates a reporter for the given cron expression
// (standard five-field form).
func NewStorageReporter(layout *storage.Layout, tracker *progress.Tracker, cronExpr string, logger *slog.Logger) (*StorageReporter, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(cronExpr)
	if err != nil {
		return nil, fmt.Errorf("parsing storage report schedule %q: %w", cronExpr, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StorageReporter{
		layout:   layout,
		tracker:  tracker,
		schedule: schedule,
		logger:   logger,
	}, nil
}

// Start launches the reporting loop.
func (r *StorageReporter) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}
	ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(1)
	go r.loop(ctx)
}

// Stop halts the loop and waits for it to exit.
func (r *StorageReporter) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	r.cancel = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	r.wg.Wait()
}

func (r *StorageReporter) loop(ctx context.Context) {
	defer r.wg.Done()

	for {
		next := r.schedule.Next(time.Now())
		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			r.Report(ctx)
		}
	}
}

// Report logs one storage snapshot. Safe to call directly, outside the
// schedule.
func (r *StorageReporter) Report(ctx context.Context) {
	usage, err := r.layout.Usage(ctx)
	if err != nil {
		r.logger.Warn("storage usage report failed",
			slog.String("error", err.Error()),
		)
		return
	}

	attrs := []any{
		slog.Int("downloads", usage.DownloadCount),
		slog.Int64("download_bytes", usage.DownloadBytes),
		slog.Int("leftover_subtitles", usage.SubtitleCount),
		slog.Uint64("disk_free_bytes", usage.DiskFreeBytes),
		slog.Float64("disk_used_percent", usage.DiskUsedPercent),
	}

	orphans, err := r.tracker.Orphans()
	if err == nil {
		attrs = append(attrs, slog.Int("progress_records", len(orphans)))
	}

	r.logger.Info("storage report", attrs...)
}
