package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"fadapulse/internal/dataset"
	"fadapulse/internal/fetch"
	"fadapulse/internal/pipeline"
	"fadapulse/pkg/contracts/domain"
)

// DataService exposes available periods and completed session results.
type DataService struct {
	master  *dataset.MasterDataset
	source  fetch.LinkSource
	manager *pipeline.Manager
	logger  *slog.Logger
}

// AvailableMonth describes one period the system knows about: how many
// source documents were discovered for it and whether it has been
// aggregated into the master dataset yet.
type AvailableMonth struct {
	Period     string `json:"period"`
	Display    string `json:"display"`
	Documents  int    `json:"documents"`
	Aggregated bool   `json:"aggregated"`
	Records    int    `json:"records"`
}

// SessionResult points at the workbook produced by a completed session.
type SessionResult struct {
	Path     string
	Filename string
	Size     int64
}

// NewDataService creates a data service.
func NewDataService(master *dataset.MasterDataset, source fetch.LinkSource, manager *pipeline.Manager, logger *slog.Logger) *DataService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DataService{
		master:  master,
		source:  source,
		manager: manager,
		logger:  logger.With(slog.String("component", "data_service")),
	}
}

// AvailableMonths lists every period for which source documents exist,
// newest first, merged with the aggregation state of the master dataset.
func (ds *DataService) AvailableMonths(ctx context.Context) ([]AvailableMonth, error) {
	docs, err := ds.source.Discover(ctx)
	if err != nil {
		ds.logger.WarnContext(ctx, "source discovery failed, falling back to aggregated periods",
			slog.String("error", err.Error()))
		docs = nil
	}

	byPeriod := make(map[domain.Period]int)
	for _, doc := range docs {
		if doc.Period.IsZero() {
			continue
		}
		byPeriod[doc.Period]++
	}

	aggregated := make(map[domain.Period]int)
	for _, pc := range ds.master.AvailablePeriods() {
		aggregated[pc.Period] = pc.Count
		if _, ok := byPeriod[pc.Period]; !ok {
			byPeriod[pc.Period] = 0
		}
	}

	if len(byPeriod) == 0 {
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSourceUnreachable, err)
		}
		return nil, ErrNoPeriodsFound
	}

	periods := make([]domain.Period, 0, len(byPeriod))
	for p := range byPeriod {
		periods = append(periods, p)
	}
	sort.Slice(periods, func(i, j int) bool {
		return periods[j].Before(periods[i])
	})

	out := make([]AvailableMonth, 0, len(periods))
	for _, p := range periods {
		records, hasData := aggregated[p]
		out = append(out, AvailableMonth{
			Period:     p.String(),
			Display:    p.Display(),
			Documents:  byPeriod[p],
			Aggregated: hasData,
			Records:    records,
		})
	}
	return out, nil
}

// Result resolves the workbook for a completed session. Unknown sessions
// return pipeline.ErrSessionNotFound; sessions still running return
// pipeline.ErrSessionNotReady; failed sessions return their own error.
func (ds *DataService) Result(ctx context.Context, sessionID string) (SessionResult, error) {
	session, err := ds.manager.Get(sessionID)
	if err != nil {
		return SessionResult{}, err
	}

	switch session.Status() {
	case pipeline.StatusCompleted:
		// artifact check below
	case pipeline.StatusFailed:
		if se := session.Err(); se != nil {
			return SessionResult{}, se
		}
		return SessionResult{}, pipeline.ErrSessionNotReady
	default:
		return SessionResult{}, pipeline.ErrSessionNotReady
	}

	path := session.ResultPath()
	if path == "" {
		// Completed with no data for the requested period.
		return SessionResult{}, ErrNoResult
	}

	info, err := os.Stat(path)
	if err != nil {
		ds.logger.ErrorContext(ctx, "result artifact missing",
			slog.String("session_id", sessionID),
			slog.String("path", path),
		)
		return SessionResult{}, ErrNoResult
	}

	return SessionResult{
		Path:     path,
		Filename: filepath.Base(path),
		Size:     info.Size(),
	}, nil
}

// RecordCount returns how many records the master dataset holds for period.
func (ds *DataService) RecordCount(period domain.Period) int {
	records, ok := ds.master.Period(period)
	if !ok {
		return 0
	}
	return len(records)
}
