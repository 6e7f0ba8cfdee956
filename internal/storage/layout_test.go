package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fetcharr/fetcharr/internal/config"
)

func testLayout(t *testing.T) *Layout {
	t.Helper()
	return NewLayout(config.StorageConfig{
		BaseDir:     t.TempDir(),
		DownloadDir: "downloads",
		SubtitleDir: "subtitles",
		ProgressDir: "progress",
	})
}

func TestEnsure(t *testing.T) {
	layout := testLayout(t)
	require.NoError(t, layout.Ensure())

	for _, dir := range []string{layout.DownloadDir(), layout.SubtitleDir(), layout.ProgressDir()} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}

	// Idempotent
	assert.NoError(t, layout.Ensure())
}

func TestArtifactPaths(t *testing.T) {
	layout := testLayout(t)

	assert.Equal(t, filepath.Join(layout.DownloadDir(), "Abc12345xyz.mp4"), layout.OutputPath("Abc12345xyz"))
	assert.Equal(t, filepath.Join(layout.SubtitleDir(), "Abc12345xyz.vtt"), layout.SubtitlePath("Abc12345xyz"))
	assert.Equal(t, filepath.Join(layout.ProgressDir(), "Abc12345xyz.txt"), layout.ProgressPath("Abc12345xyz"))
}

func TestUsage(t *testing.T) {
	layout := testLayout(t)
	require.NoError(t, layout.Ensure())

	require.NoError(t, os.WriteFile(layout.OutputPath("Abc12345xyz"), make([]byte, 1024), 0o644))
	require.NoError(t, os.WriteFile(layout.OutputPath("Def67890uvw"), make([]byte, 2048), 0o644))
	require.NoError(t, os.WriteFile(layout.SubtitlePath("Abc12345xyz"), []byte("WEBVTT\n"), 0o644))

	usage, err := layout.Usage(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, usage.DownloadCount)
	assert.Equal(t, int64(3072), usage.DownloadBytes)
	assert.Equal(t, 1, usage.SubtitleCount)
	assert.NotZero(t, usage.DiskTotalBytes)
}
