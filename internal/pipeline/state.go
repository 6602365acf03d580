package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fadapulse/internal/download"
	"fadapulse/pkg/contracts/domain"
	"fadapulse/pkg/contracts/events"
)

// Status is the orchestrator-level session state.
type Status string

const (
	StatusCreated       Status = "created"
	StatusLinksResolved Status = "links_resolved"
	StatusDownloading   Status = "downloading"
	StatusExtracting    Status = "extracting"
	StatusAggregating   Status = "aggregating"
	StatusFiltering     Status = "filtering"
	StatusCompleted     Status = "completed"
	StatusFailed        Status = "failed"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Session is the state of one pipeline run. Only the manager goroutine
// driving the run mutates it; everything else reads through Snapshot.
type Session struct {
	mu         sync.RWMutex
	id         string
	period     domain.Period
	status     Status
	percent    int
	resultPath string
	resultRef  string
	err        *SessionError
	createdAt  time.Time
	finishedAt time.Time
	cancel     context.CancelFunc
}

func newSession(id string, period domain.Period, cancel context.CancelFunc) *Session {
	return &Session{
		id:        id,
		period:    period,
		status:    StatusCreated,
		createdAt: time.Now().UTC(),
		cancel:    cancel,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Period returns the requested reporting period.
func (s *Session) Period() domain.Period { return s.period }

// Status returns the current orchestrator state.
func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// ResultPath returns the artifact path for a completed session, empty
// otherwise.
func (s *Session) ResultPath() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resultPath
}

// Err returns the terminal error for a failed session, nil otherwise.
func (s *Session) Err() *SessionError {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Cancel aborts the run. Safe to call at any time, including after the
// session finished.
func (s *Session) Cancel() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Session) setStatus(status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

func (s *Session) setPercent(percent int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.percent = percent
}

func (s *Session) complete(resultPath, resultRef string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = StatusCompleted
	s.percent = 100
	s.resultPath = resultPath
	s.resultRef = resultRef
	s.finishedAt = time.Now().UTC()
}

func (s *Session) fail(err *SessionError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = StatusFailed
	s.err = err
	s.finishedAt = time.Now().UTC()
}

// FinishedAt returns when the session reached a terminal state, zero while
// it is still running.
func (s *Session) FinishedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.finishedAt
}

// Snapshot is a read-only copy of session state for transports.
type Snapshot struct {
	ID         string        `json:"session_id"`
	Period     domain.Period `json:"period"`
	Status     Status        `json:"status"`
	Percent    int           `json:"percent"`
	ResultRef  string        `json:"result_ref,omitempty"`
	ErrorKind  string        `json:"error_kind,omitempty"`
	Error      string        `json:"error,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
}

// Snapshot captures the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		ID:        s.id,
		Period:    s.period,
		Status:    s.status,
		Percent:   s.percent,
		ResultRef: s.resultRef,
		CreatedAt: s.createdAt,
	}
	if s.err != nil {
		snap.ErrorKind = string(s.err.Kind)
		snap.Error = s.err.Message
	}
	if !s.finishedAt.IsZero() {
		t := s.finishedAt
		snap.FinishedAt = &t
	}
	return snap
}

// Run carries one session's working data between stages. Stages communicate
// exclusively through it.
type Run struct {
	Session *Session
	Period  domain.Period

	Docs         []domain.DocumentDescriptor
	Downloads    []download.Result
	Records      []domain.ExtractionRecord
	NotAvailable bool
	ResultPath   string

	publish func(events.Event)
}

// Progress emits a stage-progress event.
func (r *Run) Progress(stage string, percent int, message string) {
	r.publish(events.Event{
		Kind:    events.KindStageProgress,
		Stage:   stage,
		Percent: percent,
		Message: message,
	})
}

// Warn emits a warning event.
func (r *Run) Warn(stage, format string, args ...interface{}) {
	r.publish(events.Event{
		Kind:    events.KindWarning,
		Stage:   stage,
		Message: fmt.Sprintf(format, args...),
	})
}
