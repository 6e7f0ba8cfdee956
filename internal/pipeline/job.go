// Package pipeline drives media items from queued to delivered: the
// per-item transcode job state machine and the scheduler that
// dispatches jobs onto concurrent workers.
package pipeline

import (
	"context"
	"log/slog"
	"sync"

	"github.com/fetcharr/fetcharr/internal/config"
	"github.com/fetcharr/fetcharr/internal/ffmpeg"
	"github.com/fetcharr/fetcharr/internal/models"
	"github.com/fetcharr/fetcharr/internal/progress"
	"github.com/fetcharr/fetcharr/internal/storage"
)

// Stage is a transcode job's position in its lifecycle.
type Stage string

const (
	StagePending     Stage = "pending"
	StageProbing     Stage = "probing"
	StageRegistering Stage = "registering"
	StageSubtitles   Stage = "subtitles"
	StageTranscoding Stage = "transcoding"
	StageFinalizing  Stage = "finalizing"
	StageDone        Stage = "done"
	StageFailed      Stage = "failed"
)

// Catalog is the slice of the catalog client a job and scheduler
// consume.
type Catalog interface {
	FetchDescriptor(ctx context.Context, userID, filename string) (*models.MediaDescriptor, error)
	FetchQueue(ctx context.Context, userID, queueID string) ([]models.MediaDescriptor, error)
	RemoveFromQueue(ctx context.Context, userID, queueID string, desc *models.MediaDescriptor) error
	StartDownload(ctx context.Context, userID string, desc *models.MediaDescriptor, runtimeSeconds float64) (string, error)
	FinishDownload(ctx context.Context, userID, recordID, descriptorID string) error
}

// Prober inspects a media source.
type Prober interface {
	Probe(ctx context.Context, sourceURL string) (*ffmpeg.SourceInfo, error)
}

// SubtitleFetcher downloads and stores subtitle files.
type SubtitleFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
	Save(filename string, data []byte) (string, error)
}

// Transcoder runs one ffmpeg invocation to completion.
type Transcoder interface {
	Run(ctx context.Context, spec ffmpeg.JobSpec) error
}

// Deps bundles the collaborators shared by all jobs.
type Deps struct {
	Catalog    Catalog
	Prober     Prober
	Subtitles  SubtitleFetcher
	Transcoder Transcoder
	Tracker    *progress.Tracker
	Layout     *storage.Layout
	Languages  *config.LanguagesConfig
	Logger     *slog.Logger
}

// Job transcodes one media item. Each job exclusively owns the output,
// subtitle and progress files for its descriptor's filename; the
// catalog's download record and queue entry are shared state reached
// only through the catalog contract.
type Job struct {
	deps   Deps
	desc   *models.MediaDescriptor
	userID string

	// queueID is set only for jobs launched out of a queue; it makes
	// finalize release the descriptor's queue membership.
	queueID string

	logger *slog.Logger

	mu    sync.RWMutex
	stage Stage
	err   error
}

// NewJob creates a job for one descriptor. queueID is empty for
// single-item runs.
func NewJob(deps Deps, desc *models.MediaDescriptor, userID, queueID string) *Job {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Job{
		deps:    deps,
		desc:    desc,
		userID:  userID,
		queueID: queueID,
		logger: logger.With(
			slog.String("filename", desc.Filename),
			slog.String("descriptor", desc.ID),
		),
		stage: StagePending,
	}
}

// Stage returns the job's current lifecycle stage.
func (j *Job) Stage() Stage {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.stage
}

// Err returns the failure recorded at the job boundary, nil while
// running or after success.
func (j *Job) Err() error {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.err
}

func (j *Job) setStage(s Stage) {
	j.mu.Lock()
	j.stage = s
	j.mu.Unlock()
}

// Run drives the job to a terminal stage. Every failure is caught
// here, logged with the filename and failing stage, and recorded; it
// never propagates to the scheduler. There is no automatic retry;
// recovery is an explicit re-invocation by the caller.
func (j *Job) Run(ctx context.Context) {
	if err := j.run(ctx); err != nil {
		// A duplicate-complete registration is a logged no-op, not a
		// failure: the work already happened.
		if models.IsKind(err, models.KindAlreadyComplete) {
			j.logger.Info("item already downloaded, skipping",
				slog.String("stage", string(j.Stage())),
			)
			j.setStage(StageDone)
			return
		}

		j.logger.Error("transcode job failed",
			slog.String("stage", string(j.Stage())),
			slog.String("kind", string(models.KindOf(err))),
			slog.String("error", err.Error()),
		)
		j.mu.Lock()
		j.stage = StageFailed
		j.err = err
		j.mu.Unlock()
		return
	}

	j.setStage(StageDone)
	j.logger.Info("transcode job finished")
}

func (j *Job) run(ctx context.Context) error {
	j.setStage(StageProbing)
	info, err := j.deps.Prober.Probe(ctx, j.desc.SourceURL)
	if err != nil {
		return err
	}
	j.logger.Info("source probed",
		slog.String("video_codec", info.VideoCodec),
		slog.String("audio_codec", info.AudioCodec),
		slog.Float64("duration_seconds", info.DurationSeconds),
	)

	j.setStage(StageRegistering)
	recordID, err := j.deps.Catalog.StartDownload(ctx, j.userID, j.desc, info.DurationSeconds)
	if err != nil {
		return err
	}

	var subtitlePath string
	if j.desc.HasSubtitles() {
		j.setStage(StageSubtitles)
		data, err := j.deps.Subtitles.Fetch(ctx, j.desc.SubtitleURL)
		if err != nil {
			return err
		}
		subtitlePath, err = j.deps.Subtitles.Save(j.desc.Filename, data)
		if err != nil {
			return err
		}
	}

	j.setStage(StageTranscoding)
	spec := ffmpeg.JobSpec{
		SourceURL:    j.desc.SourceURL,
		SubtitlePath: subtitlePath,
		OutputPath:   j.deps.Layout.OutputPath(j.desc.Filename),
		ProgressPath: j.deps.Layout.ProgressPath(j.desc.Filename),
		VideoCodec:   ffmpeg.VideoCodecArg(info.VideoCodec),
		Title:        j.desc.Title,
		AudioLang:    j.desc.NormalizedAudioLang(),
	}
	if subtitlePath != "" {
		spec.SubtitleLang = j.desc.SubtitleLang
		spec.SubtitleName = j.deps.Languages.DisplayName(j.desc.SubtitleLang)
	}
	if err := j.deps.Transcoder.Run(ctx, spec); err != nil {
		return err
	}

	return j.finalize(ctx, recordID)
}

// finalize marks the download complete, drops the progress record and,
// for queue runs, releases exactly this descriptor's queue entry. A
// failed item never reaches here, so its queue entry stays put for
// retry.
func (j *Job) finalize(ctx context.Context, recordID string) error {
	j.setStage(StageFinalizing)

	if err := j.deps.Catalog.FinishDownload(ctx, j.userID, recordID, j.desc.ID); err != nil {
		return err
	}
	if err := j.deps.Tracker.Remove(j.desc.Filename); err != nil {
		return err
	}
	if j.queueID != "" {
		if err := j.deps.Catalog.RemoveFromQueue(ctx, j.userID, j.queueID, j.desc); err != nil {
			return err
		}
	}
	return nil
}
