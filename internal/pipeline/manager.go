package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"fadapulse/internal/infrastructure"
	"fadapulse/pkg/contracts/domain"
	"fadapulse/pkg/contracts/events"
)

// Config carries the orchestrator tunables. Neither value is part of the
// external contract.
type Config struct {
	// SessionTimeout is the wall-clock ceiling for one run. Zero disables
	// the ceiling.
	SessionTimeout time.Duration
	// SessionRetention is how long finished sessions stay queryable.
	SessionRetention time.Duration
}

// Manager owns session lifecycles: it creates sessions, drives each one
// through the stage sequence on its own goroutine, and expires finished
// sessions after the retention window.
type Manager struct {
	registry *Registry
	bus      *ProgressBus
	config   Config
	metrics  *infrastructure.BusinessMetrics
	logger   *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a Manager driving the stages in registry.
func NewManager(registry *Registry, bus *ProgressBus, config Config, metrics *infrastructure.BusinessMetrics, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		registry: registry,
		bus:      bus,
		config:   config,
		metrics:  metrics,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// Bus exposes the progress bus for transports.
func (m *Manager) Bus() *ProgressBus { return m.bus }

// StartSession creates a session for period and begins driving it
// asynchronously. The returned session is live immediately; its event log
// can be subscribed to before the first stage starts.
func (m *Manager) StartSession(period domain.Period) (*Session, error) {
	stages, err := m.registry.Ordered()
	if err != nil {
		return nil, err
	}

	id := uuid.New().String()

	// The run outlives the originating HTTP request, so it gets its own
	// lifetime rather than inheriting the request context.
	runCtx, cancel := context.WithCancel(context.Background())
	session := newSession(id, period, cancel)

	m.mu.Lock()
	m.sessions[id] = session
	m.mu.Unlock()

	m.bus.Open(id)
	if m.metrics != nil {
		m.metrics.RecordSessionStart(context.Background())
	}

	go m.run(runCtx, session, stages)

	m.logger.Info("session started",
		"session_id", id,
		"period", period.String(),
	)
	return session, nil
}

// Get returns the session by ID.
func (m *Manager) Get(sessionID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// Cancel aborts a running session.
func (m *Manager) Cancel(sessionID string) error {
	session, err := m.Get(sessionID)
	if err != nil {
		return err
	}
	session.Cancel()
	return nil
}

// Snapshots returns the current state of every known session.
func (m *Manager) Snapshots() []Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Snapshot, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.Snapshot())
	}
	return out
}

func (m *Manager) run(ctx context.Context, session *Session, stages []Stage) {
	if m.config.SessionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.config.SessionTimeout)
		defer cancel()
	}

	run := &Run{
		Session: session,
		Period:  session.Period(),
		publish: func(ev events.Event) {
			if err := m.bus.Publish(session.ID(), ev); err != nil {
				m.logger.Warn("event publish failed",
					"session_id", session.ID(),
					"error", err,
				)
			}
		},
	}

	for i, stage := range stages {
		// Cancellation is observed at every stage boundary.
		if err := ctx.Err(); err != nil {
			m.finishFailed(session, WrapError(err, stage.ID()))
			return
		}

		session.setStatus(stage.Begin())
		run.publish(events.Event{
			Kind:    events.KindStageStarted,
			Stage:   stage.ID(),
			Message: stage.Name(),
		})

		if err := stage.Execute(ctx, run); err != nil {
			// A context end during the stage wins over the stage's own
			// error so cancelled sessions always carry the right cause.
			if ctxErr := ctx.Err(); ctxErr != nil {
				m.finishFailed(session, WrapError(ctxErr, stage.ID()))
				return
			}
			m.finishFailed(session, WrapError(err, stage.ID()))
			return
		}

		run.publish(events.Event{
			Kind:  events.KindStageCompleted,
			Stage: stage.ID(),
		})
		session.setStatus(stage.Done())
		session.setPercent((i + 1) * 100 / len(stages))
	}

	m.finishCompleted(session, run)
}

func (m *Manager) finishCompleted(session *Session, run *Run) {
	resultRef := ""
	message := "pipeline completed"
	if run.NotAvailable {
		message = "no data available for " + session.Period().Display()
	} else {
		resultRef = "/download?session=" + session.ID()
	}

	session.complete(run.ResultPath, resultRef)
	m.bus.Publish(session.ID(), events.Event{
		Kind:      events.KindPipelineCompleted,
		Message:   message,
		ResultRef: resultRef,
	})
	if m.metrics != nil {
		m.metrics.RecordSessionOutcome(context.Background(), true, "")
	}

	m.logger.Info("session completed",
		"session_id", session.ID(),
		"period", session.Period().String(),
		"not_available", run.NotAvailable,
	)
	m.scheduleExpiry(session.ID())
}

func (m *Manager) finishFailed(session *Session, se *SessionError) {
	session.fail(se)
	m.bus.Publish(session.ID(), events.Event{
		Kind:      events.KindPipelineFailed,
		Stage:     se.Stage,
		Message:   se.Message,
		ErrorKind: string(se.Kind),
	})
	if m.metrics != nil {
		m.metrics.RecordSessionOutcome(context.Background(), false, string(se.Kind))
	}

	m.logger.Error("session failed",
		"session_id", session.ID(),
		"period", session.Period().String(),
		"stage", se.Stage,
		"kind", string(se.Kind),
		"error", se.Message,
	)
	m.scheduleExpiry(session.ID())
}

func (m *Manager) scheduleExpiry(sessionID string) {
	if m.config.SessionRetention <= 0 {
		return
	}
	time.AfterFunc(m.config.SessionRetention, func() {
		m.mu.Lock()
		delete(m.sessions, sessionID)
		m.mu.Unlock()
		m.bus.Drop(sessionID)

		m.logger.Debug("session expired", "session_id", sessionID)
	})
}
