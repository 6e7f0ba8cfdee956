package subtitles

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fetcharr/fetcharr/internal/models"
)

const sampleVTT = "WEBVTT\n\n00:00:01.000 --> 00:00:04.000\nHello.\n"

func TestFetch(t *testing.T) {
	t.Run("downloads body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(sampleVTT))
		}))
		defer server.Close()

		f := NewFetcher(t.TempDir(), 0, nil)
		data, err := f.Fetch(context.Background(), server.URL)
		require.NoError(t, err)
		assert.Equal(t, sampleVTT, string(data))
	})

	t.Run("slow server maps to timeout", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(500 * time.Millisecond)
		}))
		defer server.Close()

		f := NewFetcher(t.TempDir(), 50*time.Millisecond, nil)
		_, err := f.Fetch(context.Background(), server.URL)
		assert.Equal(t, models.KindTimeout, models.KindOf(err))
	})

	t.Run("unreachable server maps to connection error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		url := server.URL
		server.Close()

		f := NewFetcher(t.TempDir(), 0, nil)
		_, err := f.Fetch(context.Background(), url)
		assert.Equal(t, models.KindConnection, models.KindOf(err))
	})

	t.Run("error status maps to connection error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		f := NewFetcher(t.TempDir(), 0, nil)
		_, err := f.Fetch(context.Background(), server.URL)
		assert.Equal(t, models.KindConnection, models.KindOf(err))
	})
}

func TestSave(t *testing.T) {
	t.Run("writes vtt file", func(t *testing.T) {
		dir := t.TempDir()
		f := NewFetcher(dir, 0, nil)

		path, err := f.Save("Abc12345xyz", []byte(sampleVTT))
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "Abc12345xyz.vtt"), path)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, sampleVTT, string(data))
	})

	t.Run("overwrites existing file", func(t *testing.T) {
		dir := t.TempDir()
		f := NewFetcher(dir, 0, nil)

		_, err := f.Save("Abc12345xyz", []byte("old contents"))
		require.NoError(t, err)

		path, err := f.Save("Abc12345xyz", []byte(sampleVTT))
		require.NoError(t, err)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, sampleVTT, string(data))
	})

	t.Run("missing directory fails", func(t *testing.T) {
		f := NewFetcher("/nonexistent/subtitles", 0, nil)
		_, err := f.Save("Abc12345xyz", []byte(sampleVTT))
		assert.Error(t, err)
	})
}
