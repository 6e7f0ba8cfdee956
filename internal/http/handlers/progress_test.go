package handlers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fetcharr/fetcharr/internal/models"
	"github.com/fetcharr/fetcharr/internal/progress"
)

type fakeProgress struct {
	status  *progress.Status
	err     error
	gotName string
	gotMins float64
}

func (f *fakeProgress) Read(filename string, runtimeMinutes float64) (*progress.Status, error) {
	f.gotName = filename
	f.gotMins = runtimeMinutes
	return f.status, f.err
}

func TestGetProgress(t *testing.T) {
	t.Run("returns tracker status", func(t *testing.T) {
		tracker := &fakeProgress{status: &progress.Status{Stage: "continue", Percent: 42.5}}
		h := NewProgressHandler(tracker)

		out, err := h.GetProgress(context.Background(), &GetProgressInput{Filename: "abcdefghijk", Runtime: 90})
		require.NoError(t, err)
		assert.Equal(t, "continue", out.Body.Stage)
		assert.Equal(t, 42.5, out.Body.Percent)
		assert.Equal(t, "abcdefghijk", tracker.gotName)
		assert.Equal(t, 90.0, tracker.gotMins)
	})

	t.Run("missing record is 404", func(t *testing.T) {
		tracker := &fakeProgress{err: models.E(models.KindNotFound, "progress.Read", errors.New("no file"))}
		h := NewProgressHandler(tracker)

		_, err := h.GetProgress(context.Background(), &GetProgressInput{Filename: "abcdefghijk", Runtime: 90})
		assertStatus(t, err, 404)
	})

	t.Run("zero runtime is rejected", func(t *testing.T) {
		tracker := &fakeProgress{status: &progress.Status{Stage: "continue", Percent: 0}}
		h := NewProgressHandler(tracker)

		_, err := h.GetProgress(context.Background(), &GetProgressInput{Filename: "abcdefghijk"})
		assertStatus(t, err, 422)
		assert.Empty(t, tracker.gotName)
	})

	t.Run("read failure is 500", func(t *testing.T) {
		tracker := &fakeProgress{err: errors.New("permission denied")}
		h := NewProgressHandler(tracker)

		_, err := h.GetProgress(context.Background(), &GetProgressInput{Filename: "abcdefghijk", Runtime: 90})
		assertStatus(t, err, 500)
	})
}
