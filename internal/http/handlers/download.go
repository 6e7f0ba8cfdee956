// Package handlers provides the HTTP API handlers for fetcharr.
package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/fetcharr/fetcharr/internal/models"
)

// JobStarter is the scheduler surface the download handler consumes.
type JobStarter interface {
	StartSingle(ctx context.Context, filename, userID string) (string, error)
	StartOneOfQueue(ctx context.Context, queueID, itemID, userID string) (string, error)
	StartQueue(ctx context.Context, queueID, userID string) (string, error)
}

// DownloadHandler dispatches transcode requests onto the scheduler.
type DownloadHandler struct {
	scheduler JobStarter
}

// NewDownloadHandler creates a download handler.
func NewDownloadHandler(scheduler JobStarter) *DownloadHandler {
	return &DownloadHandler{scheduler: scheduler}
}

// StartDownloadRequest selects what to transcode. Type decides which
// of the remaining fields apply.
type StartDownloadRequest struct {
	Type     string `json:"type" enum:"single,one_of_queue,queue" doc:"Dispatch mode"`
	UserID   string `json:"user_id" doc:"Acting user id"`
	Filename string `json:"filename,omitempty" doc:"Descriptor filename (single)"`
	QueueID  string `json:"queue_id,omitempty" doc:"Queue id (one_of_queue, queue)"`
	ItemID   string `json:"item_id,omitempty" doc:"Movie or episode uid (one_of_queue)"`
}

// StartDownloadInput is the input for the start download endpoint.
type StartDownloadInput struct {
	Body StartDownloadRequest
}

// StartDownloadResponse acknowledges an accepted request. The
// acknowledgment only confirms the worker started; eventual success or
// failure is observed via the progress endpoint or the catalog.
type StartDownloadResponse struct {
	OperationID string `json:"operation_id" doc:"Worker id, for log correlation"`
	Status      string `json:"status" doc:"Always 'started'"`
}

// StartDownloadOutput is the output for the start download endpoint.
type StartDownloadOutput struct {
	Status int
	Body   StartDownloadResponse
}

// Register registers the download routes with the API.
func (h *DownloadHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "startDownload",
		Method:        "POST",
		Path:          "/api/v1/downloads",
		Summary:       "Start a transcode",
		Description:   "Dispatches a single item, one queue item, or a whole queue onto a transcode worker.",
		Tags:          []string{"Downloads"},
		DefaultStatus: 202,
	}, h.StartDownload)
}

// StartDownload validates the request and dispatches it.
func (h *DownloadHandler) StartDownload(ctx context.Context, input *StartDownloadInput) (*StartDownloadOutput, error) {
	req := input.Body
	if req.UserID == "" {
		return nil, huma.Error422UnprocessableEntity("user_id is required")
	}

	var (
		opID string
		err  error
	)
	switch req.Type {
	case "single":
		if req.Filename == "" {
			return nil, huma.Error422UnprocessableEntity("filename is required for type 'single'")
		}
		opID, err = h.scheduler.StartSingle(ctx, req.Filename, req.UserID)
	case "one_of_queue":
		if req.QueueID == "" || req.ItemID == "" {
			return nil, huma.Error422UnprocessableEntity("queue_id and item_id are required for type 'one_of_queue'")
		}
		opID, err = h.scheduler.StartOneOfQueue(ctx, req.QueueID, req.ItemID, req.UserID)
	case "queue":
		if req.QueueID == "" {
			return nil, huma.Error422UnprocessableEntity("queue_id is required for type 'queue'")
		}
		opID, err = h.scheduler.StartQueue(ctx, req.QueueID, req.UserID)
	default:
		return nil, huma.Error422UnprocessableEntity("type must be 'single', 'one_of_queue' or 'queue'")
	}

	if err != nil {
		return nil, kindToStatusError(err)
	}

	return &StartDownloadOutput{
		Status: 202,
		Body: StartDownloadResponse{
			OperationID: opID,
			Status:      "started",
		},
	}, nil
}

// kindToStatusError maps pipeline error kinds onto HTTP errors. The
// presentation text lives here; the domain error carries only its kind
// and cause.
func kindToStatusError(err error) error {
	switch models.KindOf(err) {
	case models.KindNotFound:
		return huma.Error404NotFound("not found", err)
	case models.KindAlreadyComplete:
		return huma.Error409Conflict("already downloaded", err)
	case models.KindTimeout, models.KindConnection:
		return huma.Error502BadGateway("catalog unreachable", err)
	case models.KindUnauthorized:
		return huma.Error502BadGateway("catalog rejected credentials", err)
	default:
		return huma.Error500InternalServerError("internal error", err)
	}
}
