package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	apierrors "fadapulse/internal/errors"
	"fadapulse/internal/middleware"
	"fadapulse/internal/services"
)

const workbookContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// DataHandler handles data-related HTTP requests with RFC 7807 compliance
type DataHandler struct {
	service      DataServiceInterface
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewDataHandler creates a new data handler with RFC 7807 error handling
func NewDataHandler(service DataServiceInterface, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *DataHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DataHandler{
		service:      service,
		logger:       logger.With(slog.String("component", "data_handler")),
		errorHandler: errorHandler,
	}
}

// AvailableMonths handles GET /available-months
func (h *DataHandler) AvailableMonths(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())

	h.logger.InfoContext(r.Context(), "listing available months",
		slog.String("request_id", reqID),
	)

	months, err := h.service.AvailableMonths(r.Context())
	if err != nil {
		if errors.Is(err, services.ErrNoPeriodsFound) {
			h.errorHandler.HandleError(w, r, apierrors.New(
				http.StatusNotFound,
				"NO_PERIODS_FOUND",
				"No periods with source documents available",
			))
			return
		}
		if errors.Is(err, services.ErrSourceUnreachable) {
			h.errorHandler.HandleError(w, r, apierrors.New(
				http.StatusServiceUnavailable,
				"SOURCE_UNREACHABLE",
				"The document source is unreachable",
			))
			return
		}
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   months,
		"count":  len(months),
	})
}

// Download handles GET /download?session=ID
func (h *DataHandler) Download(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())

	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("session", "Session ID is required"))
		return
	}

	result, err := h.service.Result(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, services.ErrNoResult) {
			h.errorHandler.HandleError(w, r, apierrors.New(
				http.StatusNotFound,
				"NO_RESULT",
				"The session completed without a result artifact",
			))
			return
		}
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "serving result workbook",
		slog.String("request_id", reqID),
		slog.String("session_id", sessionID),
		slog.String("filename", result.Filename),
		slog.Int64("size", result.Size),
	)

	w.Header().Set("Content-Type", workbookContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+result.Filename+`"`)
	http.ServeFile(w, r, result.Path)
}
