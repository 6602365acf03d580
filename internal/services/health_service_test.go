package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fadapulse/internal/dataset"
	"fadapulse/internal/pipeline"
	"fadapulse/pkg/contracts/domain"
)

type fixedClients int

func (f fixedClients) ClientCount() int { return int(f) }

func TestHealthReportsRuntimeAndServices(t *testing.T) {
	master := dataset.NewMasterDataset(nil)
	_, err := master.Merge(jan(2024), []domain.ExtractionRecord{
		{Period: jan(2024), Category: domain.CategoryTotal, Value: 1, Unit: "units"},
	})
	require.NoError(t, err)

	svc := NewHealthService("1.2.3", master, newTestManager(), fixedClients(4), nil)
	status := svc.Health(context.Background())

	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "1.2.3", status.Version)
	assert.NotEmpty(t, status.Runtime["go_version"])

	ds := status.Services["dataset"].(map[string]interface{})
	assert.Equal(t, 1, ds["periods"])
	ws := status.Services["websocket"].(map[string]interface{})
	assert.Equal(t, 4, ws["clients"])
}

func TestStatusReportCountsSessions(t *testing.T) {
	manager, _ := runSession(t, func(ctx context.Context, run *pipeline.Run) error {
		return nil
	})

	svc := NewHealthService("dev", dataset.NewMasterDataset(nil), manager, nil, nil)
	report := svc.Status(context.Background())

	assert.Equal(t, "ok", report.Status)
	assert.Len(t, report.Sessions, 1)
	assert.Zero(t, report.AggregatedPeriods)
}
