// Package progress reads the durable progress records ffmpeg writes
// alongside each transcode. Records are plain key=value files polled
// by clients; the owning job deletes its record on successful
// finalize, while orphans from crashed jobs are left behind as
// diagnostic artifacts.
package progress

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fetcharr/fetcharr/internal/models"
)

// Status is one poll result: the transcoder's last reported stage
// token ("continue" while running, "end" when the encoder finished)
// and the derived completion percentage.
type Status struct {
	Stage   string  `json:"stage"`
	Percent float64 `json:"percent"`
}

// Tracker resolves progress records by filename.
type Tracker struct {
	dir string
}

// NewTracker creates a tracker over the progress directory.
func NewTracker(dir string) *Tracker {
	return &Tracker{dir: dir}
}

// Path returns the record path for a filename.
func (t *Tracker) Path(filename string) string {
	return filepath.Join(t.dir, filename+".txt")
}

// Read parses the record for filename and derives the completion
// percentage against the item's runtime in minutes. A record without
// timing data yet reports ("continue", 0.0). An absent record is a
// not-found error: the job either never started or already finished
// and cleaned up.
func (t *Tracker) Read(filename string, runtimeMinutes float64) (*Status, error) {
	const op = "progress.Read"

	file, err := os.Open(t.Path(filename))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, models.E(models.KindNotFound, op,
				fmt.Errorf("no progress record for %s", filename)).WithFilename(filename)
		}
		return nil, models.E(models.KindUnknown, op, err).WithFilename(filename)
	}
	defer file.Close()

	// ffmpeg appends one block per reporting interval; the last
	// occurrence of each key wins.
	var stage string
	var outTimeMicros int64
	haveTiming := false

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), "=")
		if !ok {
			continue
		}
		switch key {
		case "progress":
			stage = value
		case "out_time_ms":
			if v, err := strconv.ParseInt(value, 10, 64); err == nil {
				outTimeMicros = v
				haveTiming = true
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, models.E(models.KindUnknown, op, err).WithFilename(filename)
	}

	if !haveTiming {
		return &Status{Stage: "continue", Percent: 0.0}, nil
	}
	if stage == "" {
		stage = "continue"
	}

	runtimeSeconds := runtimeMinutes * 60
	var percent float64
	if runtimeSeconds > 0 {
		elapsed := float64(outTimeMicros) / 1e6
		percent = math.Round(elapsed/runtimeSeconds*100*10) / 10
	}

	return &Status{Stage: stage, Percent: percent}, nil
}

// Remove deletes the record for filename. Called only by the owning
// job's finalize step; removing an absent record is not an error.
func (t *Tracker) Remove(filename string) error {
	const op = "progress.Remove"

	if err := os.Remove(t.Path(filename)); err != nil && !os.IsNotExist(err) {
		return models.E(models.KindUnknown, op, err).WithFilename(filename)
	}
	return nil
}

// Orphans lists progress records with no live owner check applied:
// every record currently on disk. Used by the storage report to count
// leftovers from crashed jobs.
func (t *Tracker) Orphans() ([]string, error) {
	entries, err := os.ReadDir(t.dir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if name, ok := strings.CutSuffix(entry.Name(), ".txt"); ok {
			names = append(names, name)
		}
	}
	return names, nil
}
