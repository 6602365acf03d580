package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fadapulse/internal/pipeline"
)

func newTestManager() *pipeline.Manager {
	return pipeline.NewManager(pipeline.NewRegistry(), pipeline.NewProgressBus(nil), pipeline.Config{}, nil, nil)
}

func TestStartRejectsInvalidMonth(t *testing.T) {
	svc := NewPipelineService(newTestManager(), nil)

	_, err := svc.Start(context.Background(), StreamRequest{Month: 13, Year: 2024})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid period")
}

func TestStartRejectsYearOutsideWindow(t *testing.T) {
	svc := NewPipelineService(newTestManager(), nil)

	_, err := svc.Start(context.Background(), StreamRequest{Month: 1, Year: 2000})
	require.Error(t, err)

	_, err = svc.Start(context.Background(), StreamRequest{Month: 1, Year: 2040})
	require.Error(t, err)
}

func TestStartCreatesSession(t *testing.T) {
	svc := NewPipelineService(newTestManager(), nil)

	session, err := svc.Start(context.Background(), StreamRequest{Month: 1, Year: 2024})
	require.NoError(t, err)
	assert.NotEmpty(t, session.ID())
	assert.Equal(t, "2024-01", session.Period().String())

	got, err := svc.Session(context.Background(), session.ID())
	require.NoError(t, err)
	assert.Same(t, session, got)
}

func TestCancelUnknownSession(t *testing.T) {
	svc := NewPipelineService(newTestManager(), nil)

	err := svc.Cancel(context.Background(), "missing")
	assert.ErrorIs(t, err, pipeline.ErrSessionNotFound)
}
