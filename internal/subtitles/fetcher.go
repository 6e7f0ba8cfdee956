// Package subtitles downloads and stores WebVTT subtitle files for
// transcode jobs.
package subtitles

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/fetcharr/fetcharr/internal/httpclient"
	"github.com/fetcharr/fetcharr/internal/models"
)

// DefaultTimeout bounds a subtitle download. Subtitle files are small;
// a fetch that takes longer than this is treated as a slow connection
// and aborts the job.
const DefaultTimeout = 25 * time.Second

// Fetcher downloads subtitle files and writes them into the subtitle
// storage area.
type Fetcher struct {
	http    *httpclient.Client
	dir     string
	timeout time.Duration
	logger  *slog.Logger
}

// NewFetcher creates a fetcher storing files under dir. A fetch is
// never retried: the job either proceeds with the subtitle or fails.
func NewFetcher(dir string, timeout time.Duration, logger *slog.Logger) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	hcfg := httpclient.DefaultConfig()
	hcfg.RetryAttempts = 0
	hcfg.Timeout = timeout

	return &Fetcher{
		http:    httpclient.New(hcfg),
		dir:     dir,
		timeout: timeout,
		logger:  logger,
	}
}

// Fetch downloads a subtitle file. The response body is always closed,
// whatever the outcome.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	const op = "subtitles.Fetch"

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	resp, err := f.http.Get(ctx, url)
	if err != nil {
		return nil, classify(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, models.E(models.KindConnection, op,
			fmt.Errorf("subtitle server returned status %d", resp.StatusCode))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classify(op, err)
	}
	return data, nil
}

// Save writes subtitle data as <dir>/<filename>.vtt, overwriting any
// previous file for the same name, and returns the written path.
func (f *Fetcher) Save(filename string, data []byte) (string, error) {
	const op = "subtitles.Save"

	path := filepath.Join(f.dir, filename+".vtt")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", models.E(models.KindUnknown, op, err).WithFilename(filename)
	}

	f.logger.Debug("subtitle saved",
		slog.String("filename", filename),
		slog.String("path", path),
		slog.Int("bytes", len(data)),
	)
	return path, nil
}

// classify maps a transport failure to the job-fatal error taxonomy:
// deadline overruns are slow-connection timeouts, everything else is a
// connection error.
func classify(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return models.E(models.KindTimeout, op, err)
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return models.E(models.KindTimeout, op, err)
	}
	return models.E(models.KindConnection, op, err)
}
