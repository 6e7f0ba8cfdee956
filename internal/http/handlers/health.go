package handlers

import (
	"context"
	"runtime"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/fetcharr/fetcharr/internal/storage"
)

// HealthHandler serves liveness and system health.
type HealthHandler struct {
	version   string
	startTime time.Time
	layout    *storage.Layout
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(version string) *HealthHandler {
	return &HealthHandler{
		version:   version,
		startTime: time.Now(),
	}
}

// WithStorage adds storage usage to health responses.
func (h *HealthHandler) WithStorage(layout *storage.Layout) *HealthHandler {
	h.layout = layout
	return h
}

// HealthInput is the input for the health endpoint.
type HealthInput struct{}

// StorageHealth summarizes the artifact storage areas.
type StorageHealth struct {
	Downloads       int     `json:"downloads"`
	DownloadBytes   int64   `json:"download_bytes"`
	DiskFreeBytes   uint64  `json:"disk_free_bytes"`
	DiskUsedPercent float64 `json:"disk_used_percent"`
}

// HealthResponse is the health endpoint body.
type HealthResponse struct {
	Status        string         `json:"status"`
	Timestamp     string         `json:"timestamp"`
	Version       string         `json:"version"`
	Uptime        string         `json:"uptime"`
	UptimeSeconds float64        `json:"uptime_seconds"`
	CPUCores      int            `json:"cpu_cores"`
	Load1M        float64        `json:"load_1m,omitempty"`
	MemoryPercent float64        `json:"memory_percent,omitempty"`
	Storage       *StorageHealth `json:"storage,omitempty"`
}

// HealthOutput is the output for the health endpoint.
type HealthOutput struct {
	Body HealthResponse
}

// Register registers the health routes with the API.
func (h *HealthHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getHealth",
		Method:      "GET",
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns the health status of the service including system metrics",
		Tags:        []string{"System"},
	}, h.GetHealth)
}

// GetHealth returns the health status of the service.
func (h *HealthHandler) GetHealth(ctx context.Context, input *HealthInput) (*HealthOutput, error) {
	now := time.Now()
	uptime := now.Sub(h.startTime)

	resp := HealthResponse{
		Status:        "healthy",
		Timestamp:     now.UTC().Format(time.RFC3339),
		Version:       h.version,
		Uptime:        uptime.Round(time.Second).String(),
		UptimeSeconds: uptime.Seconds(),
		CPUCores:      runtime.NumCPU(),
	}

	if loadAvg, err := load.AvgWithContext(ctx); err == nil {
		resp.Load1M = loadAvg.Load1
	}
	if memInfo, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		resp.MemoryPercent = memInfo.UsedPercent
	}

	if h.layout != nil {
		if usage, err := h.layout.Usage(ctx); err == nil {
			resp.Storage = &StorageHealth{
				Downloads:       usage.DownloadCount,
				DownloadBytes:   usage.DownloadBytes,
				DiskFreeBytes:   usage.DiskFreeBytes,
				DiskUsedPercent: usage.DiskUsedPercent,
			}
		}
	}

	return &HealthOutput{Body: resp}, nil
}
