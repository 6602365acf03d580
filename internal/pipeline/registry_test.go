package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noopStage struct {
	BaseStage
}

func newNoopStage(id string) *noopStage {
	return &noopStage{BaseStage: NewBaseStage(id, id, StatusCreated, StatusCreated)}
}

func (s *noopStage) Execute(ctx context.Context, run *Run) error { return nil }

func stageIDs(stages []Stage) []string {
	out := make([]string, len(stages))
	for i, s := range stages {
		out[i] = s.ID()
	}
	return out
}

func TestRegistryOrdersByDependencies(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(newNoopStage("filter"), "aggregate"))
	require.NoError(t, r.Register(newNoopStage("aggregate"), "extract"))
	require.NoError(t, r.Register(newNoopStage("extract"), "download"))
	require.NoError(t, r.Register(newNoopStage("download"), "links"))
	require.NoError(t, r.Register(newNoopStage("links")))

	ordered, err := r.Ordered()
	require.NoError(t, err)
	assert.Equal(t, []string{"links", "download", "extract", "aggregate", "filter"}, stageIDs(ordered))
}

func TestRegistryRejectsDuplicate(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(newNoopStage("links")))
	assert.Error(t, r.Register(newNoopStage("links")))
}

func TestRegistryRejectsUnknownDependency(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(newNoopStage("download"), "links"))
	_, err := r.Ordered()
	assert.Error(t, err)
}

func TestRegistryDetectsCycle(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(newNoopStage("a"), "b"))
	require.NoError(t, r.Register(newNoopStage("b"), "a"))
	_, err := r.Ordered()
	assert.ErrorContains(t, err, "cycle")
}
