package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/fetcharr/fetcharr/internal/progress"
)

// ProgressReader is the tracker surface the progress handler consumes.
type ProgressReader interface {
	Read(filename string, runtimeMinutes float64) (*progress.Status, error)
}

// ProgressHandler serves transcode progress polls.
type ProgressHandler struct {
	tracker ProgressReader
}

// NewProgressHandler creates a progress handler.
func NewProgressHandler(tracker ProgressReader) *ProgressHandler {
	return &ProgressHandler{tracker: tracker}
}

// GetProgressInput identifies one progress record. Runtime is the
// item's known duration in minutes, used to derive the percentage. A
// missing or zero runtime would silently pin the percentage at 0.0,
// so it is rejected instead.
type GetProgressInput struct {
	Filename string  `path:"filename" doc:"Descriptor filename"`
	Runtime  float64 `query:"runtime" required:"true" exclusiveMinimum:"0" doc:"Item runtime in minutes"`
}

// GetProgressOutput is the output for the progress endpoint.
type GetProgressOutput struct {
	Body progress.Status
}

// Register registers the progress routes with the API.
func (h *ProgressHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getProgress",
		Method:      "GET",
		Path:        "/api/v1/progress/{filename}",
		Summary:     "Poll transcode progress",
		Description: "Reads the progress record for a filename. 404 means the job never started or already finished and cleaned up.",
		Tags:        []string{"Downloads"},
	}, h.GetProgress)
}

// GetProgress reads one progress record.
func (h *ProgressHandler) GetProgress(ctx context.Context, input *GetProgressInput) (*GetProgressOutput, error) {
	if input.Runtime <= 0 {
		return nil, huma.Error422UnprocessableEntity("runtime must be a positive number of minutes")
	}
	status, err := h.tracker.Read(input.Filename, input.Runtime)
	if err != nil {
		return nil, kindToStatusError(err)
	}
	return &GetProgressOutput{Body: *status}, nil
}
