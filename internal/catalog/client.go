package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/fetcharr/fetcharr/internal/config"
	"github.com/fetcharr/fetcharr/internal/httpclient"
	"github.com/fetcharr/fetcharr/internal/models"
)

// Catalog endpoint paths.
const (
	metaPath     = "/api/cac/meta/"
	queuePath    = "/api/cac/queue/"
	downloadPath = "/api/cac/download"
)

// Client talks to the external catalog service. Every call is signed
// on behalf of the acting user. Calls are never retried here; failures
// are job-fatal and recovery is an explicit re-invocation upstream.
type Client struct {
	baseURL string
	http    *httpclient.Client
	signer  *Signer
	logger  *slog.Logger
}

// NewHTTPClient builds the outbound HTTP client for catalog traffic.
// Retries are disabled: a replayed POST /api/cac/download would re-run
// the catalog's check-then-act registration, so transport failures
// must surface to the job instead of being retried underneath it.
func NewHTTPClient(cfg config.CatalogConfig, logger *slog.Logger) *httpclient.Client {
	hcfg := httpclient.DefaultConfig()
	hcfg.RetryAttempts = 0
	hcfg.Timeout = cfg.Timeout
	hcfg.Logger = logger
	return httpclient.New(hcfg)
}

// New creates a catalog client.
func New(cfg config.CatalogConfig, hc *httpclient.Client, logger *slog.Logger) (*Client, error) {
	signer, err := NewSigner(cfg)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    hc,
		signer:  signer,
		logger:  logger,
	}, nil
}

// FetchDescriptor looks up the media descriptor for a generated
// filename. A missing descriptor maps to a not-found error.
func (c *Client) FetchDescriptor(ctx context.Context, userID, filename string) (*models.MediaDescriptor, error) {
	const op = "catalog.FetchDescriptor"

	var desc models.MediaDescriptor
	err := c.do(ctx, op, http.MethodGet, metaPath+url.PathEscape(filename), userID, nil, &desc)
	if err != nil {
		return nil, err
	}
	if err := desc.Validate(); err != nil {
		return nil, models.E(models.KindDecode, op, err).WithFilename(filename)
	}
	return &desc, nil
}

// FetchQueue returns the descriptors queued under the given queue id,
// in catalog order.
func (c *Client) FetchQueue(ctx context.Context, userID, queueID string) ([]models.MediaDescriptor, error) {
	const op = "catalog.FetchQueue"

	var queue []models.MediaDescriptor
	if err := c.do(ctx, op, http.MethodGet, queuePath+url.PathEscape(queueID), userID, nil, &queue); err != nil {
		return nil, err
	}
	return queue, nil
}

// RemoveFromQueue releases one descriptor's membership in a queue.
// Removing a non-member is a no-op success on the catalog side.
func (c *Client) RemoveFromQueue(ctx context.Context, userID, queueID string, desc *models.MediaDescriptor) error {
	const op = "catalog.RemoveFromQueue"

	body := map[string]any{itemField(desc.Kind): desc.ItemID}
	return c.do(ctx, op, http.MethodDelete, queuePath+url.PathEscape(queueID), userID, body, nil)
}

// startDownloadResponse is the wire shape for POST /download. The
// catalog answers either {"uid": ...} or an error envelope.
type startDownloadResponse struct {
	UID    string `json:"uid"`
	Status string `json:"status"`
	Msg    string `json:"msg"`
}

// StartDownload registers a download record for (user, item) and
// returns its id. Registering an item the user already finished
// returns an already-complete error; an incomplete duplicate returns
// the existing record id so an interrupted run can resume.
func (c *Client) StartDownload(ctx context.Context, userID string, desc *models.MediaDescriptor, runtimeSeconds float64) (string, error) {
	const op = "catalog.StartDownload"

	body := map[string]any{
		"user_uid":            userID,
		"runtime":             runtimeSeconds,
		itemField(desc.Kind): desc.ItemID,
	}

	var resp startDownloadResponse
	if err := c.do(ctx, op, http.MethodPost, downloadPath, userID, body, &resp); err != nil {
		var cerr *models.Error
		if errors.As(err, &cerr) {
			cerr.Filename = desc.Filename
		}
		return "", err
	}

	if resp.Status == "error" {
		if resp.Msg == "exists" {
			return "", models.E(models.KindAlreadyComplete, op,
				fmt.Errorf("download already completed for item %s", desc.ItemID)).
				WithFilename(desc.Filename)
		}
		return "", models.E(models.KindUnknown, op,
			fmt.Errorf("catalog error: %s", resp.Msg)).WithFilename(desc.Filename)
	}
	if resp.UID == "" {
		return "", models.E(models.KindDecode, op,
			errors.New("response carries neither uid nor error")).WithFilename(desc.Filename)
	}
	return resp.UID, nil
}

// FinishDownload marks a download record complete. Called exactly once
// per successful job, during finalize.
func (c *Client) FinishDownload(ctx context.Context, userID, recordID, descriptorID string) error {
	const op = "catalog.FinishDownload"

	body := map[string]any{
		"uid":      recordID,
		"meta_uid": descriptorID,
		"stage":    true,
	}
	return c.do(ctx, op, http.MethodPut, downloadPath, userID, body, nil)
}

// do executes one signed catalog request and decodes the response into
// out when non-nil.
func (c *Client) do(ctx context.Context, op, method, path, userID string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return models.E(models.KindUnknown, op, err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return models.E(models.KindUnknown, op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if err := c.signer.Sign(req, userID); err != nil {
		return models.E(models.KindUnknown, op, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return c.transportError(op, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return models.E(models.KindNotFound, op,
			fmt.Errorf("catalog returned 404 for %s", path))
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return models.E(models.KindUnauthorized, op,
			fmt.Errorf("catalog rejected signature: status %d", resp.StatusCode))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return models.E(models.KindUnknown, op,
			fmt.Errorf("unexpected catalog status %d", resp.StatusCode))
	}

	if out == nil {
		// Drain so the connection can be reused.
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return models.E(models.KindDecode, op, err)
	}
	return nil
}

// transportError classifies network failures into the pipeline's
// timeout and connection kinds.
func (c *Client) transportError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return models.E(models.KindTimeout, op, err)
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return models.E(models.KindTimeout, op, err)
	}
	if errors.Is(err, context.Canceled) {
		return models.E(models.KindUnknown, op, err)
	}
	return models.E(models.KindConnection, op, err)
}

// itemField selects the catalog foreign key for a descriptor kind.
func itemField(kind models.MediaKind) string {
	if kind == models.KindMovie {
		return "media_uid"
	}
	return "episode_uid"
}
