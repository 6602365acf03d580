package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"fadapulse/internal/pipeline"
	"fadapulse/pkg/contracts/domain"
	"fadapulse/pkg/contracts/events"
)

// PipelineService validates period requests and drives pipeline sessions.
type PipelineService struct {
	manager  *pipeline.Manager
	validate *validator.Validate
	logger   *slog.Logger
}

// StreamRequest is the validated shape of a stream/session request.
type StreamRequest struct {
	Month int `json:"month" validate:"required,min=1,max=12"`
	Year  int `json:"year" validate:"required,min=2010,max=2039"`
}

// Period converts the request into its domain period.
func (r StreamRequest) Period() domain.Period {
	return domain.Period{Month: r.Month, Year: r.Year}
}

// NewPipelineService creates a pipeline service around manager.
func NewPipelineService(manager *pipeline.Manager, logger *slog.Logger) *PipelineService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PipelineService{
		manager:  manager,
		validate: validator.New(),
		logger:   logger.With(slog.String("component", "pipeline_service")),
	}
}

// Start validates req and begins a new session for its period.
func (s *PipelineService) Start(ctx context.Context, req StreamRequest) (*pipeline.Session, error) {
	if err := s.validate.Struct(req); err != nil {
		s.logger.WarnContext(ctx, "rejected stream request",
			slog.Int("month", req.Month),
			slog.Int("year", req.Year),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("invalid period: %w", err)
	}

	session, err := s.manager.StartSession(req.Period())
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}

	s.logger.InfoContext(ctx, "session started",
		slog.String("session_id", session.ID()),
		slog.String("period", req.Period().String()),
	)
	return session, nil
}

// Session looks up a session by ID.
func (s *PipelineService) Session(ctx context.Context, sessionID string) (*pipeline.Session, error) {
	return s.manager.Get(sessionID)
}

// Subscribe attaches to a session's event log. The returned channel replays
// the full log from the beginning and then follows live events.
func (s *PipelineService) Subscribe(ctx context.Context, sessionID string) (<-chan events.Event, error) {
	return s.manager.Bus().Subscribe(ctx, sessionID)
}

// Cancel aborts a running session.
func (s *PipelineService) Cancel(ctx context.Context, sessionID string) error {
	s.logger.InfoContext(ctx, "cancelling session", slog.String("session_id", sessionID))
	return s.manager.Cancel(sessionID)
}

// Snapshots returns the state of every known session.
func (s *PipelineService) Snapshots(ctx context.Context) []pipeline.Snapshot {
	return s.manager.Snapshots()
}
