package pipeline

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync/atomic"

	"fadapulse/internal/dataset"
	"fadapulse/internal/download"
	"fadapulse/internal/exporter"
	"fadapulse/internal/extract"
	"fadapulse/internal/fetch"
	"fadapulse/pkg/contracts/domain"
)

// LinksStage resolves the published documents and narrows them to the
// requested period. Finding nothing fails the session unless the master
// dataset already holds the period, in which case the run continues and the
// filter stage serves the existing data.
type LinksStage struct {
	BaseStage
	source fetch.LinkSource
	master *dataset.MasterDataset
	logger *slog.Logger
}

// NewLinksStage creates the link-resolution stage.
func NewLinksStage(source fetch.LinkSource, master *dataset.MasterDataset, logger *slog.Logger) *LinksStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &LinksStage{
		BaseStage: NewBaseStage(StageIDLinks, "Resolving document links", StatusCreated, StatusLinksResolved),
		source:    source,
		master:    master,
		logger:    logger,
	}
}

func (s *LinksStage) Execute(ctx context.Context, run *Run) error {
	docs, err := s.source.Discover(ctx)
	if err != nil {
		return WrapError(err, s.ID())
	}

	filtered := dataset.FilterByPeriod(docs, run.Period)
	run.Docs = filtered.Matched

	if filtered.NotAvailable {
		if _, ok := s.master.Period(run.Period); ok {
			run.Warn(s.ID(), "no documents published for %s, serving consolidated data", run.Period.Display())
			return nil
		}
		return NewSessionError(ErrKindPermanentFetch, s.ID(),
			"no documents published for %s", run.Period.Display())
	}

	run.Progress(s.ID(), 100, "resolved documents for period")
	s.logger.InfoContext(ctx, "links resolved",
		"session_id", run.Session.ID(),
		"period", run.Period.String(),
		"total", len(docs),
		"matched", len(run.Docs),
	)
	return nil
}

// DownloadStage fetches every matched document through the download
// manager. It fails only when every document fails; partial failure is a
// warning and the run continues with what it has.
type DownloadStage struct {
	BaseStage
	manager *download.Manager
	logger  *slog.Logger
}

// NewDownloadStage creates the download stage.
func NewDownloadStage(manager *download.Manager, logger *slog.Logger) *DownloadStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &DownloadStage{
		BaseStage: NewBaseStage(StageIDDownload, "Downloading documents", StatusDownloading, StatusDownloading),
		manager:   manager,
		logger:    logger,
	}
}

func (s *DownloadStage) Execute(ctx context.Context, run *Run) error {
	if len(run.Docs) == 0 {
		run.Progress(s.ID(), 100, "nothing to download")
		return nil
	}

	total := len(run.Docs)

	// The progress callback fires from worker goroutines.
	var terminal atomic.Int64

	results, err := s.manager.Run(ctx, run.Docs, func(ev download.Event) {
		switch ev.State {
		case domain.TaskDownloading:
			run.Progress(s.ID(), int(terminal.Load())*100/total, "downloading "+ev.Identity)
		case domain.TaskRetrying:
			run.Warn(s.ID(), "retrying %s (attempt %d): %v", ev.Identity, ev.Attempt, ev.Err)
		case domain.TaskSucceeded:
			done := int(terminal.Add(1))
			message := "downloaded " + ev.Identity
			if ev.FromCache {
				message = "cache-hit " + ev.Identity
			}
			run.Progress(s.ID(), done*100/total, message)
		case domain.TaskFailed:
			terminal.Add(1)
			run.Warn(s.ID(), "download failed for %s after %d attempts: %v", ev.Identity, ev.Attempt, ev.Err)
		}
	})
	if err != nil {
		return WrapError(err, s.ID())
	}

	run.Downloads = results

	succeeded := 0
	var lastErr error
	for _, res := range results {
		if res.Succeeded() {
			succeeded++
		} else {
			lastErr = res.Err
		}
	}

	if succeeded == 0 {
		return WrapError(lastErr, s.ID())
	}
	if succeeded < total {
		run.Warn(s.ID(), "%d of %d documents failed to download", total-succeeded, total)
	}

	s.logger.InfoContext(ctx, "downloads finished",
		"session_id", run.Session.ID(),
		"succeeded", succeeded,
		"failed", total-succeeded,
	)
	return nil
}

// ExtractStage parses every downloaded artifact. A document that fails to
// parse is a warning; the stage fails only when no document yields records.
type ExtractStage struct {
	BaseStage
	extractor *extract.Extractor
	logger    *slog.Logger
}

// NewExtractStage creates the extraction stage.
func NewExtractStage(extractor *extract.Extractor, logger *slog.Logger) *ExtractStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExtractStage{
		BaseStage: NewBaseStage(StageIDExtract, "Extracting retail figures", StatusExtracting, StatusExtracting),
		extractor: extractor,
		logger:    logger,
	}
}

func (s *ExtractStage) Execute(ctx context.Context, run *Run) error {
	var artifacts []download.Result
	for _, res := range run.Downloads {
		if res.Succeeded() {
			artifacts = append(artifacts, res)
		}
	}
	if len(artifacts) == 0 {
		run.Progress(s.ID(), 100, "nothing to extract")
		return nil
	}

	seen := make(map[string]struct{})
	parsed := 0
	var lastErr error

	for i, res := range artifacts {
		if err := ctx.Err(); err != nil {
			return WrapError(err, s.ID())
		}

		period := res.Descriptor.Period
		if period.IsZero() {
			period = run.Period
		}

		extraction, err := s.extractor.Extract(ctx, res.Path, period)
		if err != nil {
			lastErr = err
			run.Warn(s.ID(), "could not parse %s: %v", res.Descriptor.Identity, err)
			continue
		}
		parsed++

		for _, w := range extraction.Warnings {
			run.Warn(s.ID(), "%s: %s", res.Descriptor.Identity, w)
		}
		if extraction.Unmapped > 0 {
			run.Warn(s.ID(), "%s: %d rows outside the category vocabulary", res.Descriptor.Identity, extraction.Unmapped)
		}

		// Documents for one period may repeat summary rows; keep the first.
		for _, rec := range extraction.Records {
			key := rec.Period.String() + "/" + rec.Key()
			if _, dup := seen[key]; dup {
				run.Warn(s.ID(), "%s: %s already extracted from an earlier document", res.Descriptor.Identity, rec.Key())
				continue
			}
			seen[key] = struct{}{}
			run.Records = append(run.Records, rec)
		}

		run.Progress(s.ID(), (i+1)*100/len(artifacts), "extracted "+res.Descriptor.Identity)
	}

	if parsed == 0 {
		return WrapError(lastErr, s.ID())
	}

	s.logger.InfoContext(ctx, "extraction finished",
		"session_id", run.Session.ID(),
		"documents", parsed,
		"records", len(run.Records),
	)
	return nil
}

// AggregateStage folds the extracted records into the master dataset, one
// whole period at a time.
type AggregateStage struct {
	BaseStage
	master *dataset.MasterDataset
	logger *slog.Logger
}

// NewAggregateStage creates the aggregation stage.
func NewAggregateStage(master *dataset.MasterDataset, logger *slog.Logger) *AggregateStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &AggregateStage{
		BaseStage: NewBaseStage(StageIDAggregate, "Consolidating dataset", StatusAggregating, StatusAggregating),
		master:    master,
		logger:    logger,
	}
}

func (s *AggregateStage) Execute(ctx context.Context, run *Run) error {
	if len(run.Records) == 0 {
		run.Progress(s.ID(), 100, "nothing to consolidate")
		return nil
	}

	byPeriod := make(map[domain.Period][]domain.ExtractionRecord)
	for _, rec := range run.Records {
		byPeriod[rec.Period] = append(byPeriod[rec.Period], rec)
	}

	merged := 0
	var lastErr error
	for period, records := range byPeriod {
		summary, err := s.master.Merge(period, records)
		if err != nil {
			lastErr = err
			run.Warn(s.ID(), "merge rejected for %s: %v", period, err)
			continue
		}
		merged++

		switch summary.Outcome {
		case dataset.MergeReplaced:
			run.Warn(s.ID(), "replaced existing data for %s (%d records)", period, summary.Records)
		case dataset.MergeUnchanged:
			run.Progress(s.ID(), merged*100/len(byPeriod), "no changes for "+period.String())
		default:
			run.Progress(s.ID(), merged*100/len(byPeriod), "added "+period.String())
		}
	}

	if merged == 0 {
		return WrapError(lastErr, s.ID())
	}

	s.logger.InfoContext(ctx, "aggregation finished",
		"session_id", run.Session.ID(),
		"periods", merged,
	)
	return nil
}

// DatasetMirror replicates the master dataset to an external store after a
// successful run. Failures are warnings, never run failures.
type DatasetMirror interface {
	Mirror(ctx context.Context, periods map[domain.Period][]domain.ExtractionRecord) error
}

// FilterStage selects the requested slice of the master dataset and writes
// the session's result workbook. An empty slice marks the run not-available
// rather than failing it.
type FilterStage struct {
	BaseStage
	master     *dataset.MasterDataset
	writer     *exporter.WorkbookWriter
	csv        *exporter.CSVWriter
	resultPath func(sessionID string) string
	masterPath string
	mirror     DatasetMirror
	logger     *slog.Logger
}

// NewFilterStage creates the filter/export stage. resultPath maps a session
// ID to its workbook location.
func NewFilterStage(master *dataset.MasterDataset, writer *exporter.WorkbookWriter, resultPath func(string) string, logger *slog.Logger) *FilterStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &FilterStage{
		BaseStage:  NewBaseStage(StageIDFilter, "Preparing result", StatusFiltering, StatusFiltering),
		master:     master,
		writer:     writer,
		resultPath: resultPath,
		logger:     logger,
	}
}

// WithMasterWorkbook makes the stage rewrite the consolidated workbook at
// path after every successful run, plus a flat CSV twin next to it.
func (s *FilterStage) WithMasterWorkbook(path string) *FilterStage {
	s.masterPath = path
	s.csv = exporter.NewCSVWriter(s.logger)
	return s
}

// WithMirror attaches an external dataset mirror.
func (s *FilterStage) WithMirror(mirror DatasetMirror) *FilterStage {
	s.mirror = mirror
	return s
}

func (s *FilterStage) Execute(ctx context.Context, run *Run) error {
	records, ok := s.master.Period(run.Period)
	if !ok {
		run.NotAvailable = true
		run.Progress(s.ID(), 100, "no data available for "+run.Period.Display())
		return nil
	}

	path := s.resultPath(run.Session.ID())
	if err := s.writer.Write(path, map[domain.Period][]domain.ExtractionRecord{
		run.Period: records,
	}); err != nil {
		return WrapError(err, s.ID())
	}

	run.ResultPath = path
	run.Progress(s.ID(), 100, "result workbook ready")

	s.persistMaster(ctx, run)

	s.logger.InfoContext(ctx, "result prepared",
		"session_id", run.Session.ID(),
		"path", path,
		"records", len(records),
	)
	return nil
}

// persistMaster rewrites the consolidated workbook and pushes the dataset to
// the configured mirror. Neither can fail the run once the session artifact
// exists.
func (s *FilterStage) persistMaster(ctx context.Context, run *Run) {
	if s.masterPath == "" && s.mirror == nil {
		return
	}

	snapshot := s.master.Snapshot()
	if s.masterPath != "" {
		if err := s.writer.Write(s.masterPath, snapshot); err != nil {
			run.Warn(s.ID(), "master workbook update failed: %v", err)
		}
		csvPath := strings.TrimSuffix(s.masterPath, filepath.Ext(s.masterPath)) + ".csv"
		if err := s.csv.Write(csvPath, snapshot); err != nil {
			run.Warn(s.ID(), "master csv update failed: %v", err)
		}
	}
	if s.mirror != nil {
		if err := s.mirror.Mirror(ctx, snapshot); err != nil {
			run.Warn(s.ID(), "dataset mirror failed: %v", err)
		}
	}
}
