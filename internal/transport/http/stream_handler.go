package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	apierrors "fadapulse/internal/errors"
	"fadapulse/internal/middleware"
	"fadapulse/internal/services"
	"fadapulse/pkg/contracts/events"
)

// StreamHandler drives pipeline sessions over Server-Sent Events. Every
// consumer of a session sees the full event log from the beginning, so a
// reconnecting client can simply attach again with the session ID.
type StreamHandler struct {
	service      PipelineServiceInterface
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(service PipelineServiceInterface, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *StreamHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamHandler{
		service:      service,
		logger:       logger.With(slog.String("handler", "stream")),
		errorHandler: errorHandler,
	}
}

// Stream handles GET /stream. With month and year it starts a new session;
// with session it re-attaches to an existing one and replays its log.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())

	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		req, err := parseStreamRequest(r)
		if err != nil {
			h.errorHandler.HandleError(w, r, err)
			return
		}

		session, err := h.service.Start(r.Context(), req)
		if err != nil {
			h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
			return
		}
		sessionID = session.ID()
	}

	ch, err := h.service.Subscribe(r.Context(), sessionID)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.errorHandler.HandleError(w, r, apierrors.New(
			http.StatusInternalServerError,
			"STREAMING_UNSUPPORTED",
			"Response writer does not support streaming",
		))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	// Tell the client which session it is attached to before any events.
	fmt.Fprintf(w, "event: session\ndata: {\"session_id\":%q}\n\n", sessionID)
	flusher.Flush()

	h.logger.InfoContext(r.Context(), "stream attached",
		slog.String("request_id", reqID),
		slog.String("session_id", sessionID),
	)

	for {
		select {
		case <-r.Context().Done():
			h.logger.InfoContext(r.Context(), "stream client disconnected",
				slog.String("session_id", sessionID))
			return
		case ev, open := <-ch:
			if !open {
				// Terminal event delivered, log closed.
				return
			}
			if err := writeEvent(w, ev); err != nil {
				h.logger.WarnContext(r.Context(), "stream write failed",
					slog.String("session_id", sessionID),
					slog.String("error", err.Error()))
				return
			}
			flusher.Flush()
		}
	}
}

// Cancel handles POST /stream/cancel?session=ID.
func (h *StreamHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("session", "Session ID is required"))
		return
	}

	if err := h.service.Cancel(r.Context(), sessionID); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

func parseStreamRequest(r *http.Request) (services.StreamRequest, error) {
	monthStr := r.URL.Query().Get("month")
	yearStr := r.URL.Query().Get("year")
	if monthStr == "" || yearStr == "" {
		return services.StreamRequest{}, apierrors.ErrValidation("month", "Both month and year are required")
	}

	month, err := strconv.Atoi(monthStr)
	if err != nil {
		return services.StreamRequest{}, apierrors.ErrValidation("month", "Month must be a number")
	}
	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return services.StreamRequest{}, apierrors.ErrValidation("year", "Year must be a number")
	}

	return services.StreamRequest{Month: month, Year: year}, nil
}

// writeEvent emits one SSE frame. The event sequence doubles as the SSE id
// so clients can tell where in the log they are.
func writeEvent(w http.ResponseWriter, ev events.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", ev.Sequence, ev.Kind, payload)
	return err
}
