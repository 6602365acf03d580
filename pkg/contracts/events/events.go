// Package events contains the progress event contract shared by the
// pipeline engine and its delivery transports (SSE stream, WebSocket hub).
package events

import "time"

// Kind enumerates the event kinds a session log can carry.
type Kind string

const (
	KindStageStarted      Kind = "stage-started"
	KindStageProgress     Kind = "stage-progress"
	KindWarning           Kind = "warning"
	KindStageCompleted    Kind = "stage-completed"
	KindPipelineCompleted Kind = "pipeline-completed"
	KindPipelineFailed    Kind = "pipeline-failed"
)

// Terminal reports whether the kind closes the session log.
func (k Kind) Terminal() bool {
	return k == KindPipelineCompleted || k == KindPipelineFailed
}

// Event is one entry in a session's append-only progress log. Sequence is
// assigned by the bus and is strictly increasing per session.
type Event struct {
	Sequence  int64     `json:"sequence"`
	SessionID string    `json:"session_id"`
	Kind      Kind      `json:"kind"`
	Stage     string    `json:"stage,omitempty"`
	Percent   int       `json:"percent,omitempty"`
	Message   string    `json:"message,omitempty"`
	ErrorKind string    `json:"error_kind,omitempty"`
	ResultRef string    `json:"result_ref,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
