// Package storage owns the on-disk layout for pipeline artifacts:
// transcoded outputs, temporary subtitle files and progress records.
package storage

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/shirou/gopsutil/v4/disk"

	"github.com/fetcharr/fetcharr/internal/config"
)

// Layout resolves artifact paths under the configured storage areas.
// Every artifact is addressed by its descriptor filename, which is
// unique per descriptor, so no two jobs ever contend on a path.
type Layout struct {
	cfg config.StorageConfig
}

// NewLayout creates a layout over the storage configuration.
func NewLayout(cfg config.StorageConfig) *Layout {
	return &Layout{cfg: cfg}
}

// Ensure creates the storage directories if missing.
func (l *Layout) Ensure() error {
	for _, dir := range []string{l.DownloadDir(), l.SubtitleDir(), l.ProgressDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating storage directory %s: %w", dir, err)
		}
	}
	return nil
}

// DownloadDir is the directory holding finished mp4 outputs.
func (l *Layout) DownloadDir() string { return l.cfg.DownloadPath() }

// SubtitleDir is the directory holding temporary subtitle files.
func (l *Layout) SubtitleDir() string { return l.cfg.SubtitlePath() }

// ProgressDir is the directory holding progress records.
func (l *Layout) ProgressDir() string { return l.cfg.ProgressPath() }

// OutputPath is the mp4 target for a filename.
func (l *Layout) OutputPath(filename string) string {
	return filepath.Join(l.DownloadDir(), filename+".mp4")
}

// SubtitlePath is the temporary subtitle file for a filename.
func (l *Layout) SubtitlePath(filename string) string {
	return filepath.Join(l.SubtitleDir(), filename+".vtt")
}

// ProgressPath is the progress record for a filename.
func (l *Layout) ProgressPath(filename string) string {
	return filepath.Join(l.ProgressDir(), filename+".txt")
}

// Usage summarizes the storage state for the periodic report.
type Usage struct {
	// DownloadCount and DownloadBytes cover finished outputs.
	DownloadCount int
	DownloadBytes int64

	// SubtitleCount counts leftover subtitle files.
	SubtitleCount int

	// DiskTotalBytes, DiskFreeBytes and DiskUsedPercent describe the
	// filesystem backing the storage base directory.
	DiskTotalBytes  uint64
	DiskFreeBytes   uint64
	DiskUsedPercent float64
}

// Usage walks the storage areas and samples the backing filesystem.
func (l *Layout) Usage(ctx context.Context) (*Usage, error) {
	var usage Usage

	err := filepath.WalkDir(l.DownloadDir(), func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		usage.DownloadCount++
		usage.DownloadBytes += info.Size()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking download directory: %w", err)
	}

	entries, err := os.ReadDir(l.SubtitleDir())
	if err != nil {
		return nil, fmt.Errorf("reading subtitle directory: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			usage.SubtitleCount++
		}
	}

	if diskInfo, err := disk.UsageWithContext(ctx, l.cfg.BaseDir); err == nil {
		usage.DiskTotalBytes = diskInfo.Total
		usage.DiskFreeBytes = diskInfo.Free
		usage.DiskUsedPercent = diskInfo.UsedPercent
	}

	return &usage, nil
}
