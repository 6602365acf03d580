package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fadapulse/internal/dataset"
	"fadapulse/internal/pipeline"
	"fadapulse/pkg/contracts/domain"
)

type stubSource struct {
	docs []domain.DocumentDescriptor
	err  error
}

func (s *stubSource) Discover(ctx context.Context) ([]domain.DocumentDescriptor, error) {
	return s.docs, s.err
}

type stubStage struct {
	pipeline.BaseStage
	execute func(ctx context.Context, run *pipeline.Run) error
}

func (s *stubStage) Execute(ctx context.Context, run *pipeline.Run) error {
	return s.execute(ctx, run)
}

// runSession drives a single-stage session to its terminal state.
func runSession(t *testing.T, execute func(ctx context.Context, run *pipeline.Run) error) (*pipeline.Manager, *pipeline.Session) {
	t.Helper()

	registry := pipeline.NewRegistry()
	stage := &stubStage{
		BaseStage: pipeline.NewBaseStage("stub", "Stub", pipeline.StatusDownloading, pipeline.StatusDownloading),
		execute:   execute,
	}
	require.NoError(t, registry.Register(stage))

	manager := pipeline.NewManager(registry, pipeline.NewProgressBus(nil), pipeline.Config{}, nil, nil)
	session, err := manager.StartSession(domain.Period{Month: 1, Year: 2024})
	require.NoError(t, err)

	ch, err := manager.Bus().Subscribe(context.Background(), session.ID())
	require.NoError(t, err)
	for range ch {
	}
	return manager, session
}

func jan(year int) domain.Period { return domain.Period{Month: 1, Year: year} }

func TestAvailableMonthsMergesSourceAndDataset(t *testing.T) {
	source := &stubSource{docs: []domain.DocumentDescriptor{
		{Identity: "a.pdf", Period: domain.Period{Month: 2, Year: 2024}},
		{Identity: "b.pdf", Period: domain.Period{Month: 2, Year: 2024}},
		{Identity: "c.pdf", Period: domain.Period{Month: 1, Year: 2024}},
		{Identity: "junk.pdf"}, // no period, skipped
	}}

	master := dataset.NewMasterDataset(nil)
	_, err := master.Merge(jan(2024), []domain.ExtractionRecord{
		{Period: jan(2024), Category: domain.CategoryTwoWheeler, Value: 10, Unit: "units"},
	})
	require.NoError(t, err)

	svc := NewDataService(master, source, newTestManager(), nil)
	months, err := svc.AvailableMonths(context.Background())
	require.NoError(t, err)
	require.Len(t, months, 2)

	// Newest first.
	assert.Equal(t, "2024-02", months[0].Period)
	assert.Equal(t, 2, months[0].Documents)
	assert.False(t, months[0].Aggregated)

	assert.Equal(t, "2024-01", months[1].Period)
	assert.Equal(t, 1, months[1].Documents)
	assert.True(t, months[1].Aggregated)
	assert.Equal(t, 1, months[1].Records)
}

func TestAvailableMonthsFallsBackToDataset(t *testing.T) {
	source := &stubSource{err: errors.New("connection refused")}

	master := dataset.NewMasterDataset(nil)
	_, err := master.Merge(jan(2024), []domain.ExtractionRecord{
		{Period: jan(2024), Category: domain.CategoryTotal, Value: 99, Unit: "units"},
	})
	require.NoError(t, err)

	svc := NewDataService(master, source, newTestManager(), nil)
	months, err := svc.AvailableMonths(context.Background())
	require.NoError(t, err)
	require.Len(t, months, 1)
	assert.Equal(t, "2024-01", months[0].Period)
	assert.Zero(t, months[0].Documents)
}

func TestAvailableMonthsSourceUnreachable(t *testing.T) {
	source := &stubSource{err: errors.New("connection refused")}
	svc := NewDataService(dataset.NewMasterDataset(nil), source, newTestManager(), nil)

	_, err := svc.AvailableMonths(context.Background())
	assert.ErrorIs(t, err, ErrSourceUnreachable)
}

func TestResultUnknownSession(t *testing.T) {
	svc := NewDataService(dataset.NewMasterDataset(nil), &stubSource{}, newTestManager(), nil)

	_, err := svc.Result(context.Background(), "missing")
	assert.ErrorIs(t, err, pipeline.ErrSessionNotFound)
}

func TestResultRunningSessionNotReady(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})

	registry := pipeline.NewRegistry()
	stage := &stubStage{
		BaseStage: pipeline.NewBaseStage("stub", "Stub", pipeline.StatusDownloading, pipeline.StatusDownloading),
		execute: func(ctx context.Context, run *pipeline.Run) error {
			close(started)
			<-release
			return nil
		},
	}
	require.NoError(t, registry.Register(stage))

	manager := pipeline.NewManager(registry, pipeline.NewProgressBus(nil), pipeline.Config{}, nil, nil)
	session, err := manager.StartSession(jan(2024))
	require.NoError(t, err)
	t.Cleanup(func() { close(release) })

	<-started
	svc := NewDataService(dataset.NewMasterDataset(nil), &stubSource{}, manager, nil)
	_, err = svc.Result(context.Background(), session.ID())
	assert.ErrorIs(t, err, pipeline.ErrSessionNotReady)
}

func TestResultCompletedSession(t *testing.T) {
	artifact := filepath.Join(t.TempDir(), "result.xlsx")
	require.NoError(t, os.WriteFile(artifact, []byte("workbook"), 0o644))

	manager, session := runSession(t, func(ctx context.Context, run *pipeline.Run) error {
		run.ResultPath = artifact
		return nil
	})

	svc := NewDataService(dataset.NewMasterDataset(nil), &stubSource{}, manager, nil)
	result, err := svc.Result(context.Background(), session.ID())
	require.NoError(t, err)
	assert.Equal(t, artifact, result.Path)
	assert.Equal(t, "result.xlsx", result.Filename)
	assert.EqualValues(t, len("workbook"), result.Size)
}

func TestResultCompletedWithoutArtifact(t *testing.T) {
	manager, session := runSession(t, func(ctx context.Context, run *pipeline.Run) error {
		run.NotAvailable = true
		return nil
	})

	svc := NewDataService(dataset.NewMasterDataset(nil), &stubSource{}, manager, nil)
	_, err := svc.Result(context.Background(), session.ID())
	assert.ErrorIs(t, err, ErrNoResult)
}

func TestResultFailedSessionReturnsItsError(t *testing.T) {
	manager, session := runSession(t, func(ctx context.Context, run *pipeline.Run) error {
		return pipeline.NewSessionError(pipeline.ErrKindPermanentFetch, "download", "all documents failed")
	})

	svc := NewDataService(dataset.NewMasterDataset(nil), &stubSource{}, manager, nil)
	_, err := svc.Result(context.Background(), session.ID())
	require.Error(t, err)

	var se *pipeline.SessionError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, pipeline.ErrKindPermanentFetch, se.Kind)
}
