package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/fetcharr/fetcharr/internal/models"
)

// DefaultLaunchGracePeriod is how long an entry point waits for a
// worker to fail fast before acknowledging the request as started.
const DefaultLaunchGracePeriod = time.Second

// Scheduler dispatches transcode requests onto independent workers.
// Each entry point spawns one goroutine and returns a liveness
// acknowledgment: the worker either failed during startup (descriptor
// resolution) within the grace period, or it is considered started.
// The acknowledgment says nothing about eventual success; callers poll
// the progress tracker or the catalog for real status.
//
// There is no worker pool and no bound on concurrent transcodes; this
// is a deliberate tradeoff for a low-request-volume internal tool.
type Scheduler struct {
	deps   Deps
	grace  time.Duration
	logger *slog.Logger
}

// NewScheduler creates a scheduler. grace <= 0 selects the default
// launch grace period.
func NewScheduler(deps Deps, grace time.Duration) *Scheduler {
	if grace <= 0 {
		grace = DefaultLaunchGracePeriod
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{deps: deps, grace: grace, logger: logger}
}

// StartSingle launches a transcode for one filename. The returned
// operation id identifies the worker in logs.
func (s *Scheduler) StartSingle(ctx context.Context, filename, userID string) (string, error) {
	return s.launch(ctx, "single", func(ctx context.Context) ([]models.MediaDescriptor, string, error) {
		desc, err := s.deps.Catalog.FetchDescriptor(ctx, userID, filename)
		if err != nil {
			return nil, "", err
		}
		return []models.MediaDescriptor{*desc}, "", nil
	}, userID)
}

// StartOneOfQueue launches a transcode for one named item out of a
// queue snapshot. On success only that item's queue entry is removed.
func (s *Scheduler) StartOneOfQueue(ctx context.Context, queueID, itemID, userID string) (string, error) {
	return s.launch(ctx, "one_of_queue", func(ctx context.Context) ([]models.MediaDescriptor, string, error) {
		queue, err := s.deps.Catalog.FetchQueue(ctx, userID, queueID)
		if err != nil {
			return nil, "", err
		}
		for i := range queue {
			if queue[i].ItemID == itemID {
				return queue[i : i+1], queueID, nil
			}
		}
		return nil, "", models.E(models.KindNotFound, "pipeline.StartOneOfQueue",
			fmt.Errorf("item %s is not in queue %s", itemID, queueID))
	}, userID)
}

// StartQueue launches transcodes for a whole queue snapshot. Items run
// sequentially inside one worker, in snapshot order, so queue removals
// are well ordered; one item's failure does not abort the rest.
func (s *Scheduler) StartQueue(ctx context.Context, queueID, userID string) (string, error) {
	return s.launch(ctx, "queue", func(ctx context.Context) ([]models.MediaDescriptor, string, error) {
		queue, err := s.deps.Catalog.FetchQueue(ctx, userID, queueID)
		if err != nil {
			return nil, "", err
		}
		return queue, queueID, nil
	}, userID)
}

// resolveFunc produces the descriptors a worker will process, plus the
// queue id to release entries from (empty for single runs). It runs
// inside the worker as its startup phase.
type resolveFunc func(ctx context.Context) ([]models.MediaDescriptor, string, error)

// launch spawns the worker and waits out the grace period for a fast
// startup failure. The worker deliberately runs on a context detached
// from the request so an accepted job outlives its HTTP call; once a
// transcode subprocess is running there is no cancellation path.
func (s *Scheduler) launch(ctx context.Context, mode string, resolve resolveFunc, userID string) (string, error) {
	opID := ulid.Make().String()
	logger := s.logger.With(
		slog.String("operation", opID),
		slog.String("mode", mode),
		slog.String("user", userID),
	)

	started := make(chan error, 1)
	go s.work(context.WithoutCancel(ctx), logger, resolve, userID, started)

	select {
	case err := <-started:
		if err != nil {
			return "", err
		}
		return opID, nil
	case <-time.After(s.grace):
		// Startup is still in flight; treat the worker as alive.
		return opID, nil
	}
}

// work is the worker body: resolve descriptors, signal startup, then
// run jobs sequentially.
func (s *Scheduler) work(ctx context.Context, logger *slog.Logger, resolve resolveFunc, userID string, started chan<- error) {
	descriptors, queueID, err := resolve(ctx)
	if err != nil {
		// The worker logs its own startup failure: once the grace
		// period has elapsed nobody reads the channel anymore, and a
		// slow resolution failure must not vanish with the goroutine.
		logger.Error("worker failed during startup",
			slog.String("error", err.Error()),
		)
		started <- err
		return
	}
	started <- nil

	logger.Info("worker started", slog.Int("items", len(descriptors)))

	for i := range descriptors {
		job := NewJob(s.deps, &descriptors[i], userID, queueID)
		job.Run(ctx)
	}

	logger.Info("worker finished")
}
