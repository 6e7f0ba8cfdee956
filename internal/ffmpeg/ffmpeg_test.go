package ffmpeg

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fetcharr/fetcharr/internal/models"
)

const probeOutputBothStreams = `{
	"format": {
		"format_name": "mpegts",
		"duration": "3122.437000",
		"bit_rate": "4500000"
	},
	"streams": [
		{"index": 0, "codec_name": "aac", "codec_type": "audio"},
		{"index": 1, "codec_name": "h264", "codec_type": "video"}
	]
}`

func TestSummarize(t *testing.T) {
	t.Run("selects streams by codec type", func(t *testing.T) {
		var result ProbeResult
		require.NoError(t, json.Unmarshal([]byte(probeOutputBothStreams), &result))

		info, err := summarize(&result)
		require.NoError(t, err)
		assert.Equal(t, "aac", info.AudioCodec)
		assert.Equal(t, "h264", info.VideoCodec)
		assert.Equal(t, 3122.44, info.DurationSeconds)
	})

	t.Run("duration rounds to two decimals", func(t *testing.T) {
		result := &ProbeResult{
			Format: ProbeFormat{Duration: "100.006"},
			Streams: []ProbeStream{
				{CodecName: "aac", CodecType: "audio"},
				{CodecName: "h264", CodecType: "video"},
			},
		}
		info, err := summarize(result)
		require.NoError(t, err)
		assert.Equal(t, 100.01, info.DurationSeconds)
	})

	t.Run("missing audio stream fails", func(t *testing.T) {
		result := &ProbeResult{
			Format:  ProbeFormat{Duration: "100"},
			Streams: []ProbeStream{{CodecName: "h264", CodecType: "video"}},
		}
		_, err := summarize(result)
		assert.Error(t, err)
	})

	t.Run("missing video stream fails", func(t *testing.T) {
		result := &ProbeResult{
			Format:  ProbeFormat{Duration: "100"},
			Streams: []ProbeStream{{CodecName: "aac", CodecType: "audio"}},
		}
		_, err := summarize(result)
		assert.Error(t, err)
	})

	t.Run("unparseable duration fails", func(t *testing.T) {
		result := &ProbeResult{
			Format: ProbeFormat{Duration: "N/A"},
			Streams: []ProbeStream{
				{CodecName: "aac", CodecType: "audio"},
				{CodecName: "h264", CodecType: "video"},
			},
		}
		_, err := summarize(result)
		assert.Error(t, err)
	})
}

func TestProbeMissingBinary(t *testing.T) {
	prober := NewProber("/nonexistent/ffprobe", 0)
	_, err := prober.Probe(context.Background(), "http://media.local/stream.ts")
	require.Error(t, err)
	assert.Equal(t, models.KindProbe, models.KindOf(err))
}

func TestVideoCodecArg(t *testing.T) {
	assert.Equal(t, "copy", VideoCodecArg("h264"))
	assert.Equal(t, "copy", VideoCodecArg("libx264"))
	assert.Equal(t, "libx264", VideoCodecArg("hevc"))
	assert.Equal(t, "libx264", VideoCodecArg("mpeg2video"))
	assert.Equal(t, "libx264", VideoCodecArg(""))
}

func TestBuildArgs(t *testing.T) {
	base := JobSpec{
		SourceURL:    "http://media.local/stream.ts",
		OutputPath:   "/data/downloads/Abc12345xyz.mp4",
		ProgressPath: "/data/progress/Abc12345xyz.txt",
		VideoCodec:   "copy",
		Title:        "Some Film",
		AudioLang:    "eng",
	}

	t.Run("without subtitles", func(t *testing.T) {
		args := BuildArgs(base)

		assert.Equal(t, []string{
			"-y",
			"-loglevel", "error",
			"-progress", "/data/progress/Abc12345xyz.txt",
			"-i", "http://media.local/stream.ts",
			"-map", "0:v:0",
			"-map", "0:a:0",
			"-c:v", "copy",
			"-c:a", "aac",
			"-strict", "-2",
			"-metadata", "title=Some Film",
			"-metadata:s:a:0", "language=eng",
			"-f", "mp4",
			"/data/downloads/Abc12345xyz.mp4",
		}, args)
	})

	t.Run("with subtitles", func(t *testing.T) {
		spec := base
		spec.SubtitlePath = "/data/subtitles/Abc12345xyz.vtt"
		spec.SubtitleLang = "en"
		spec.SubtitleName = "English"

		args := BuildArgs(spec)

		assert.Equal(t, []string{
			"-y",
			"-loglevel", "error",
			"-progress", "/data/progress/Abc12345xyz.txt",
			"-i", "http://media.local/stream.ts",
			"-i", "/data/subtitles/Abc12345xyz.vtt",
			"-map", "0:v:0",
			"-map", "0:a:0",
			"-map", "1:s:0",
			"-c:v", "copy",
			"-c:a", "aac",
			"-c:s", "mov_text",
			"-strict", "-2",
			"-metadata", "title=Some Film",
			"-metadata:s:a:0", "language=eng",
			"-metadata:s:s:0", "title=English",
			"-metadata:s:s:0", "language=en",
			"-f", "mp4",
			"/data/downloads/Abc12345xyz.mp4",
		}, args)
	})

	t.Run("re-encode codec", func(t *testing.T) {
		spec := base
		spec.VideoCodec = VideoCodecArg("hevc")
		args := BuildArgs(spec)
		assert.Contains(t, args, "libx264")
		assert.NotContains(t, args, "copy")
	})
}

func TestTranscoderRunFailure(t *testing.T) {
	t.Run("missing binary", func(t *testing.T) {
		tr := NewTranscoder("/nonexistent/ffmpeg", nil)
		err := tr.Run(context.Background(), JobSpec{
			SourceURL:  "in.ts",
			OutputPath: "out.mp4",
			VideoCodec: "copy",
		})
		require.Error(t, err)
		assert.Equal(t, models.KindTranscode, models.KindOf(err))
	})

	t.Run("non-zero exit", func(t *testing.T) {
		// Stand in for ffmpeg with a binary that always fails.
		tr := NewTranscoder("/bin/false", nil)
		tr.monitorInterval = 0

		err := tr.Run(context.Background(), JobSpec{
			SourceURL:  "in.ts",
			OutputPath: "out.mp4",
			VideoCodec: "copy",
		})
		require.Error(t, err)
		assert.Equal(t, models.KindTranscode, models.KindOf(err))
	})
}

func TestDrainStderr(t *testing.T) {
	t.Run("keeps bounded tail", func(t *testing.T) {
		tr := NewTranscoder("/bin/false", nil)

		var lines []string
		for i := 0; i < stderrTailLines+5; i++ {
			lines = append(lines, "line")
		}
		tail := tr.drainStderr(strings.NewReader(strings.Join(lines, "\n")), "out.mp4")
		assert.Len(t, tail, stderrTailLines)
	})

	t.Run("handles lines beyond the default scanner limit", func(t *testing.T) {
		tr := NewTranscoder("/bin/false", nil)

		long := strings.Repeat("x", 128*1024)
		tail := tr.drainStderr(strings.NewReader(long+"\nexit reason"), "out.mp4")
		require.Len(t, tail, 2)
		assert.Equal(t, "exit reason", tail[1])
	})

	t.Run("consumes the pipe after an oversized line", func(t *testing.T) {
		tr := NewTranscoder("/bin/false", nil)

		r := strings.NewReader(strings.Repeat("x", 2*stderrLineLimit) + "\ntrailing data")
		tr.drainStderr(r, "out.mp4")
		assert.Zero(t, r.Len())
	})
}
