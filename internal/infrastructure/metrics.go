package infrastructure

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// BusinessMetrics holds the pipeline-specific instruments.
type BusinessMetrics struct {
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram

	SessionsStarted   metric.Int64Counter
	SessionsCompleted metric.Int64Counter
	SessionsFailed    metric.Int64Counter
	ActiveSessions    metric.Int64UpDownCounter

	DocumentsDownloaded metric.Int64Counter
	DownloadFailures    metric.Int64Counter
	CacheHits           metric.Int64Counter
	ParseWarnings       metric.Int64Counter
	PeriodsMerged       metric.Int64Counter
}

// CreateBusinessMetrics creates the application-specific metric instruments.
func CreateBusinessMetrics(meter metric.Meter) (*BusinessMetrics, error) {
	m := &BusinessMetrics{}
	var err error

	if m.HTTPRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total HTTP requests"),
	); err != nil {
		return nil, err
	}
	if m.HTTPRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if m.SessionsStarted, err = meter.Int64Counter(
		"pipeline_sessions_started_total",
		metric.WithDescription("Pipeline sessions started"),
	); err != nil {
		return nil, err
	}
	if m.SessionsCompleted, err = meter.Int64Counter(
		"pipeline_sessions_completed_total",
		metric.WithDescription("Pipeline sessions completed successfully"),
	); err != nil {
		return nil, err
	}
	if m.SessionsFailed, err = meter.Int64Counter(
		"pipeline_sessions_failed_total",
		metric.WithDescription("Pipeline sessions that failed or were cancelled"),
	); err != nil {
		return nil, err
	}
	if m.ActiveSessions, err = meter.Int64UpDownCounter(
		"pipeline_sessions_active",
		metric.WithDescription("Currently running pipeline sessions"),
	); err != nil {
		return nil, err
	}
	if m.DocumentsDownloaded, err = meter.Int64Counter(
		"pipeline_documents_downloaded_total",
		metric.WithDescription("Documents fetched from the source site"),
	); err != nil {
		return nil, err
	}
	if m.DownloadFailures, err = meter.Int64Counter(
		"pipeline_download_failures_total",
		metric.WithDescription("Download tasks that reached the failed state"),
	); err != nil {
		return nil, err
	}
	if m.CacheHits, err = meter.Int64Counter(
		"pipeline_cache_hits_total",
		metric.WithDescription("Downloads short-circuited by the artifact cache"),
	); err != nil {
		return nil, err
	}
	if m.ParseWarnings, err = meter.Int64Counter(
		"pipeline_parse_warnings_total",
		metric.WithDescription("Unmapped rows and duplicate labels seen during extraction"),
	); err != nil {
		return nil, err
	}
	if m.PeriodsMerged, err = meter.Int64Counter(
		"pipeline_periods_merged_total",
		metric.WithDescription("Periods added or replaced in the master dataset"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

// RecordSessionOutcome records terminal session metrics.
func (m *BusinessMetrics) RecordSessionOutcome(ctx context.Context, success bool, errorKind string) {
	if m == nil {
		return
	}
	if success {
		m.SessionsCompleted.Add(ctx, 1)
	} else {
		m.SessionsFailed.Add(ctx, 1, metric.WithAttributes(attribute.String("error_kind", errorKind)))
	}
	m.ActiveSessions.Add(ctx, -1)
}

// RecordSessionStart records the beginning of a session.
func (m *BusinessMetrics) RecordSessionStart(ctx context.Context) {
	if m == nil {
		return
	}
	m.SessionsStarted.Add(ctx, 1)
	m.ActiveSessions.Add(ctx, 1)
}
