// Package ffmpeg wraps the external ffprobe and ffmpeg binaries: source
// stream inspection, transcode argument construction, subprocess
// execution and resource monitoring.
package ffmpeg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/fetcharr/fetcharr/internal/models"
)

// ProbeResult is the subset of ffprobe's JSON output the pipeline
// consumes.
type ProbeResult struct {
	Format  ProbeFormat   `json:"format"`
	Streams []ProbeStream `json:"streams"`
}

// ProbeFormat contains container format information.
type ProbeFormat struct {
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	BitRate    string `json:"bit_rate"`
}

// ProbeStream contains per-stream information.
type ProbeStream struct {
	Index     int    `json:"index"`
	CodecName string `json:"codec_name"`
	CodecType string `json:"codec_type"` // video, audio, subtitle, data
}

// SourceInfo is the probe summary a transcode job plans against.
type SourceInfo struct {
	AudioCodec string `json:"audio_codec"`
	VideoCodec string `json:"video_codec"`

	// DurationSeconds is the container duration rounded to two
	// decimal places.
	DurationSeconds float64 `json:"duration_seconds"`
}

// Prober inspects media sources with ffprobe.
type Prober struct {
	binaryPath string
	timeout    time.Duration
}

// NewProber creates a prober for the given ffprobe binary.
func NewProber(binaryPath string, timeout time.Duration) *Prober {
	if binaryPath == "" {
		binaryPath = "ffprobe"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Prober{binaryPath: binaryPath, timeout: timeout}
}

// Probe inspects a source URL. The source must carry at least one audio
// and one video stream; anything less is a fatal probe failure for the
// job, never retried.
func (p *Prober) Probe(ctx context.Context, sourceURL string) (*SourceInfo, error) {
	const op = "ffmpeg.Probe"

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
	}
	if strings.HasPrefix(sourceURL, "http://") || strings.HasPrefix(sourceURL, "https://") {
		args = append(args,
			"-reconnect", "1",
			"-reconnect_streamed", "1",
			"-reconnect_delay_max", "5",
		)
	}
	args = append(args, sourceURL)

	cmd := exec.CommandContext(ctx, p.binaryPath, args...)
	output, err := cmd.Output()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, models.E(models.KindProbe, op,
				fmt.Errorf("probe timeout after %v", p.timeout))
		}
		return nil, models.E(models.KindProbe, op,
			fmt.Errorf("ffprobe failed: %w", err))
	}

	var result ProbeResult
	if err := json.Unmarshal(output, &result); err != nil {
		return nil, models.E(models.KindProbe, op,
			fmt.Errorf("parsing ffprobe output: %w", err))
	}

	info, err := summarize(&result)
	if err != nil {
		return nil, models.E(models.KindProbe, op, err)
	}
	return info, nil
}

// summarize reduces a probe result to the fields the job plans
// against. Stream selection goes by codec_type, not container index,
// so sources with unusual stream ordering resolve correctly.
func summarize(result *ProbeResult) (*SourceInfo, error) {
	audio := result.FirstStream("audio")
	video := result.FirstStream("video")
	if audio == nil || video == nil {
		return nil, errors.New("source must carry at least one audio and one video stream")
	}

	duration, err := strconv.ParseFloat(result.Format.Duration, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing container duration %q: %w", result.Format.Duration, err)
	}

	return &SourceInfo{
		AudioCodec:      audio.CodecName,
		VideoCodec:      video.CodecName,
		DurationSeconds: math.Round(duration*100) / 100,
	}, nil
}

// FirstStream returns the first stream of the given codec type, or nil.
func (r *ProbeResult) FirstStream(codecType string) *ProbeStream {
	for i := range r.Streams {
		if r.Streams[i].CodecType == codecType {
			return &r.Streams[i]
		}
	}
	return nil
}
