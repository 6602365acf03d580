package pipeline

import (
	"context"
	"errors"
	"fmt"

	"fadapulse/internal/dataset"
	"fadapulse/internal/download"
	"fadapulse/internal/extract"
)

// ErrorKind is the stable failure classification surfaced to clients in
// pipeline-failed events and API responses.
type ErrorKind string

const (
	ErrKindTransientNetwork ErrorKind = "transient_network"
	ErrKindPermanentFetch   ErrorKind = "permanent_fetch"
	ErrKindParse            ErrorKind = "parse"
	ErrKindAggregation      ErrorKind = "aggregation_conflict"
	ErrKindSessionNotFound  ErrorKind = "session_not_found"
	ErrKindSessionNotReady  ErrorKind = "session_not_ready"
	ErrKindCancelled        ErrorKind = "cancelled"
	ErrKindTimeout          ErrorKind = "timeout"
	ErrKindInternal         ErrorKind = "internal"
)

// SessionError is a classified pipeline failure. It always names the stage
// that produced it so event consumers can render a useful message.
type SessionError struct {
	Kind    ErrorKind
	Stage   string
	Message string
	Err     error
}

func (e *SessionError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Kind, e.Stage, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *SessionError) Unwrap() error { return e.Err }

// NewSessionError creates a classified error for stage.
func NewSessionError(kind ErrorKind, stage, format string, args ...interface{}) *SessionError {
	return &SessionError{Kind: kind, Stage: stage, Message: fmt.Sprintf(format, args...)}
}

// Sentinel errors for the client-facing session lookups.
var (
	ErrSessionNotFound = &SessionError{Kind: ErrKindSessionNotFound, Message: "session not found"}
	ErrSessionNotReady = &SessionError{Kind: ErrKindSessionNotReady, Message: "session has not completed"}
)

// WrapError classifies err and attributes it to stage. Already-classified
// errors pass through with the stage filled in if missing.
func WrapError(err error, stage string) *SessionError {
	if err == nil {
		return nil
	}

	var se *SessionError
	if errors.As(err, &se) {
		if se.Stage == "" {
			se.Stage = stage
		}
		return se
	}

	kind := classify(err)
	return &SessionError{Kind: kind, Stage: stage, Message: err.Error(), Err: err}
}

func classify(err error) ErrorKind {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ErrKindTimeout
	case errors.Is(err, context.Canceled):
		return ErrKindCancelled
	}

	var fetchErr *download.FetchError
	if errors.As(err, &fetchErr) {
		if fetchErr.Transient {
			return ErrKindTransientNetwork
		}
		return ErrKindPermanentFetch
	}

	var parseErr *extract.ParseError
	if errors.As(err, &parseErr) {
		return ErrKindParse
	}

	var conflictErr *dataset.ConflictError
	if errors.As(err, &conflictErr) {
		return ErrKindAggregation
	}

	return ErrKindInternal
}
