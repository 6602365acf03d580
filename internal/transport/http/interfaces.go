package http

import (
	"context"

	"fadapulse/internal/pipeline"
	"fadapulse/internal/services"
	"fadapulse/pkg/contracts/events"
)

// PipelineServiceInterface defines the interface for session operations
type PipelineServiceInterface interface {
	Start(ctx context.Context, req services.StreamRequest) (*pipeline.Session, error)
	Session(ctx context.Context, sessionID string) (*pipeline.Session, error)
	Subscribe(ctx context.Context, sessionID string) (<-chan events.Event, error)
	Cancel(ctx context.Context, sessionID string) error
	Snapshots(ctx context.Context) []pipeline.Snapshot
}

// DataServiceInterface defines the interface for data operations
type DataServiceInterface interface {
	AvailableMonths(ctx context.Context) ([]services.AvailableMonth, error)
	Result(ctx context.Context, sessionID string) (services.SessionResult, error)
}

// HealthServiceInterface defines the interface for health checks
type HealthServiceInterface interface {
	Health(ctx context.Context) services.HealthStatus
	Status(ctx context.Context) services.StatusReport
}
