package ffmpeg

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// ProcessMonitor periodically samples CPU and memory usage of a
// running ffmpeg subprocess and logs it. Purely observational; losing a
// sample (e.g. the process already exited) is not an error.
type ProcessMonitor struct {
	pid      int
	interval time.Duration
	logger   *slog.Logger

	startedAt time.Time
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewProcessMonitor creates a monitor for the given pid.
func NewProcessMonitor(pid int, interval time.Duration, logger *slog.Logger) *ProcessMonitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProcessMonitor{
		pid:       pid,
		interval:  interval,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// Start begins sampling until Stop is called or the context ends.
func (pm *ProcessMonitor) Start(ctx context.Context) {
	ctx, pm.cancel = context.WithCancel(ctx)

	pm.wg.Add(1)
	go func() {
		defer pm.wg.Done()

		ticker := time.NewTicker(pm.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				pm.sample(ctx)
			}
		}
	}()
}

// Stop halts sampling and waits for the loop to exit.
func (pm *ProcessMonitor) Stop() {
	if pm.cancel != nil {
		pm.cancel()
	}
	pm.wg.Wait()
}

func (pm *ProcessMonitor) sample(ctx context.Context) {
	proc, err := process.NewProcessWithContext(ctx, int32(pm.pid))
	if err != nil {
		return
	}

	attrs := []any{
		slog.Int("pid", pm.pid),
		slog.Duration("running_for", time.Since(pm.startedAt).Round(time.Second)),
	}
	if cpuPercent, err := proc.CPUPercentWithContext(ctx); err == nil {
		attrs = append(attrs, slog.Float64("cpu_percent", cpuPercent))
	}
	if memInfo, err := proc.MemoryInfoWithContext(ctx); err == nil {
		attrs = append(attrs, slog.Uint64("rss_bytes", memInfo.RSS))
	}

	pm.logger.Debug("transcode process stats", attrs...)
}
