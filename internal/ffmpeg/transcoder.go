package ffmpeg

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/fetcharr/fetcharr/internal/models"
)

// copyableVideoCodecs are the probed video codecs that can be stream
// copied into an mp4 container without re-encoding.
var copyableVideoCodecs = map[string]struct{}{
	"h264":    {},
	"libx264": {},
}

// VideoCodecArg returns the -c:v value for a probed source codec:
// stream copy when the source is already H.264, otherwise a full
// re-encode through libx264.
func VideoCodecArg(probedCodec string) string {
	if _, ok := copyableVideoCodecs[probedCodec]; ok {
		return "copy"
	}
	return "libx264"
}

// JobSpec describes one transcode invocation. All paths are absolute;
// the caller owns path construction through the storage layout.
type JobSpec struct {
	// SourceURL is the media input, remote or local.
	SourceURL string

	// SubtitlePath is the local subtitle file to mux, empty when the
	// job has no subtitle track.
	SubtitlePath string

	// OutputPath is the target mp4 file.
	OutputPath string

	// ProgressPath is the file ffmpeg appends progress key=value
	// blocks to.
	ProgressPath string

	// VideoCodec is the -c:v value, from VideoCodecArg.
	VideoCodec string

	// Title is embedded as container-level metadata.
	Title string

	// AudioLang is the ISO 639-2 tag for the audio stream metadata.
	AudioLang string

	// SubtitleLang and SubtitleName describe the subtitle track
	// metadata, used only when SubtitlePath is set.
	SubtitleLang string
	SubtitleName string
}

// BuildArgs constructs the ffmpeg argument list for a job.
func BuildArgs(spec JobSpec) []string {
	args := []string{
		"-y",
		"-loglevel", "error",
		"-progress", spec.ProgressPath,
		"-i", spec.SourceURL,
	}
	if spec.SubtitlePath != "" {
		args = append(args, "-i", spec.SubtitlePath)
	}

	args = append(args,
		"-map", "0:v:0",
		"-map", "0:a:0",
	)
	if spec.SubtitlePath != "" {
		args = append(args, "-map", "1:s:0")
	}

	args = append(args,
		"-c:v", spec.VideoCodec,
		"-c:a", "aac",
	)
	if spec.SubtitlePath != "" {
		args = append(args, "-c:s", "mov_text")
	}
	args = append(args, "-strict", "-2")

	args = append(args,
		"-metadata", "title="+spec.Title,
		"-metadata:s:a:0", "language="+spec.AudioLang,
	)
	if spec.SubtitlePath != "" {
		args = append(args,
			"-metadata:s:s:0", "title="+spec.SubtitleName,
			"-metadata:s:s:0", "language="+spec.SubtitleLang,
		)
	}

	args = append(args, "-f", "mp4", spec.OutputPath)
	return args
}

// Transcoder runs ffmpeg jobs as subprocesses.
type Transcoder struct {
	binaryPath string
	logger     *slog.Logger

	// monitorInterval controls resource sampling of the running
	// subprocess; zero disables monitoring.
	monitorInterval time.Duration
}

// NewTranscoder creates a transcoder for the given ffmpeg binary.
func NewTranscoder(binaryPath string, logger *slog.Logger) *Transcoder {
	if binaryPath == "" {
		binaryPath = "ffmpeg"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Transcoder{
		binaryPath:      binaryPath,
		logger:          logger,
		monitorInterval: 30 * time.Second,
	}
}

// stderrTailLines bounds how much subprocess stderr is kept for the
// failure message. The full stream still goes to the log.
const stderrTailLines = 20

// Run executes one transcode to completion. Stderr is streamed
// line-by-line into the error log as it arrives. A non-zero exit is a
// transcode failure; partial output files are left on disk for
// inspection.
func (t *Transcoder) Run(ctx context.Context, spec JobSpec) error {
	const op = "ffmpeg.Run"

	cmd := exec.CommandContext(ctx, t.binaryPath, BuildArgs(spec)...)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return models.E(models.KindTranscode, op, err)
	}
	if err := cmd.Start(); err != nil {
		return models.E(models.KindTranscode, op,
			fmt.Errorf("starting ffmpeg: %w", err))
	}

	var monitor *ProcessMonitor
	if t.monitorInterval > 0 && cmd.Process != nil {
		monitor = NewProcessMonitor(cmd.Process.Pid, t.monitorInterval, t.logger)
		monitor.Start(ctx)
		defer monitor.Stop()
	}

	// Drain stderr before Wait so the pipe never backs up the
	// subprocess.
	tail := t.drainStderr(stderr, spec.OutputPath)

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return models.E(models.KindTranscode, op, ctx.Err())
		}
		detail := strings.Join(tail, "\n")
		if detail == "" {
			detail = err.Error()
		}
		return models.E(models.KindTranscode, op,
			fmt.Errorf("ffmpeg exited: %s", detail))
	}
	return nil
}

// stderrLineLimit caps a single stderr line. Lines beyond it trip a
// scanner error instead of stalling the drain loop.
const stderrLineLimit = 1024 * 1024

// drainStderr streams subprocess stderr into the log and keeps a
// bounded tail for the failure message. If scanning stops early, the
// rest of the pipe is still consumed so the subprocess never blocks on
// a full pipe.
func (t *Transcoder) drainStderr(r io.Reader, outputPath string) []string {
	var tail []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), stderrLineLimit)
	for scanner.Scan() {
		line := scanner.Text()
		t.logger.Error("ffmpeg stderr",
			slog.String("output", outputPath),
			slog.String("line", line),
		)
		tail = append(tail, line)
		if len(tail) > stderrTailLines {
			tail = tail[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		t.logger.Error("ffmpeg stderr truncated",
			slog.String("output", outputPath),
			slog.String("error", err.Error()),
		)
		io.Copy(io.Discard, r)
	}
	return tail
}
