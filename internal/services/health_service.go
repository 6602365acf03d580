package services

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"fadapulse/internal/dataset"
	"fadapulse/internal/pipeline"
)

// ClientCounter reports connected realtime clients. Satisfied by the
// websocket hub.
type ClientCounter interface {
	ClientCount() int
}

// HealthService provides health check functionality
type HealthService struct {
	version   string
	master    *dataset.MasterDataset
	manager   *pipeline.Manager
	clients   ClientCounter
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Runtime   map[string]interface{} `json:"runtime,omitempty"`
	Services  map[string]interface{} `json:"services,omitempty"`
}

// StatusReport is the aggregate view served by GET /status.
type StatusReport struct {
	Status            string              `json:"status"`
	Timestamp         time.Time           `json:"timestamp"`
	UptimeSeconds     float64             `json:"uptime_seconds"`
	AggregatedPeriods int                 `json:"aggregated_periods"`
	Sessions          []pipeline.Snapshot `json:"sessions"`
}

// NewHealthService creates a health service with injected dependencies.
func NewHealthService(version string, master *dataset.MasterDataset, manager *pipeline.Manager, clients ClientCounter, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthService{
		version:   version,
		master:    master,
		manager:   manager,
		clients:   clients,
		startTime: time.Now(),
		logger:    logger.With(slog.String("component", "health_service")),
	}
}

// Health returns the liveness view with runtime details.
func (hs *HealthService) Health(ctx context.Context) HealthStatus {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	services := map[string]interface{}{
		"pipeline": map[string]interface{}{
			"sessions": len(hs.manager.Snapshots()),
		},
		"dataset": map[string]interface{}{
			"periods": hs.master.Len(),
		},
	}
	if hs.clients != nil {
		services["websocket"] = map[string]interface{}{
			"clients": hs.clients.ClientCount(),
		}
	}

	return HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   hs.version,
		Runtime: map[string]interface{}{
			"go_version":     runtime.Version(),
			"os":             runtime.GOOS,
			"arch":           runtime.GOARCH,
			"goroutines":     runtime.NumGoroutine(),
			"alloc_bytes":    mem.Alloc,
			"uptime_seconds": time.Since(hs.startTime).Seconds(),
		},
		Services: services,
	}
}

// Status returns the session-oriented view served by GET /status.
func (hs *HealthService) Status(ctx context.Context) StatusReport {
	return StatusReport{
		Status:            "ok",
		Timestamp:         time.Now(),
		UptimeSeconds:     time.Since(hs.startTime).Seconds(),
		AggregatedPeriods: hs.master.Len(),
		Sessions:          hs.manager.Snapshots(),
	}
}
