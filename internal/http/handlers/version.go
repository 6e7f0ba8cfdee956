package handlers

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/fetcharr/fetcharr/internal/version"
)

// VersionHandler serves build information for the running binary.
type VersionHandler struct{}

// NewVersionHandler creates a new version handler.
func NewVersionHandler() *VersionHandler {
	return &VersionHandler{}
}

// GetVersionOutput is the response for the version endpoint.
type GetVersionOutput struct {
	Body version.Info
}

// Register registers the version endpoint with the API.
func (h *VersionHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/v1/version",
		Summary:     "Get version",
		Description: "Returns build version, commit, and platform information.",
		Tags:        []string{"System"},
	}, h.GetVersion)
}

// GetVersion returns version information for the running binary.
func (h *VersionHandler) GetVersion(_ context.Context, _ *struct{}) (*GetVersionOutput, error) {
	return &GetVersionOutput{Body: version.GetInfo()}, nil
}
