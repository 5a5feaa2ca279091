package observability

import (
	"testing"
	"time"

	"github.com/annel0/voxelgen/internal/world"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ world.Recorder = (*PipelineMetrics)(nil)

func TestPipelineMetricsObservePass(t *testing.T) {
	reg := prometheus.NewRegistry()
	pm := NewPipelineMetrics(reg)

	pm.ObservePass(world.PassReport{Built: 256, Culled: 72, Survivors: 184, Vertices: 4416})
	pm.ObservePass(world.PassReport{Built: 10, Culled: 0, Survivors: 10, Vertices: 240})

	assert.Equal(t, 2.0, testutil.ToFloat64(pm.passes))
	assert.Equal(t, 266.0, testutil.ToFloat64(pm.tilesBuilt))
	assert.Equal(t, 72.0, testutil.ToFloat64(pm.tilesCulled))
	assert.Equal(t, 240.0, testutil.ToFloat64(pm.surfaceVerts), "Gauge хранит последний проход")
	assert.Equal(t, 10.0, testutil.ToFloat64(pm.surfaceTiles))
}

func TestPipelineMetricsPoolAndStages(t *testing.T) {
	reg := prometheus.NewRegistry()
	pm := NewPipelineMetrics(reg)

	pm.ObservePool(world.PoolStats{Active: 184, Inactive: 72, Total: 256})
	assert.Equal(t, 184.0, testutil.ToFloat64(pm.poolTiles.WithLabelValues("active")))
	assert.Equal(t, 72.0, testutil.ToFloat64(pm.poolTiles.WithLabelValues("inactive")))

	pm.ObserveStage(world.StageCulling, 3*time.Millisecond)
	pm.ObserveStage(world.StageCulling, 5*time.Millisecond)

	families, err := reg.Gather()
	require.NoError(t, err)

	var found bool
	for _, mf := range families {
		if mf.GetName() != "voxelgen_stage_duration_seconds" {
			continue
		}
		found = true
		require.Len(t, mf.GetMetric(), 1)
		assert.Equal(t, uint64(2), mf.GetMetric()[0].GetHistogram().GetSampleCount())
	}
	assert.True(t, found, "Гистограмма стадий должна быть зарегистрирована")
}

func TestPipelineMetricsDuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewPipelineMetrics(reg)
	assert.Panics(t, func() { NewPipelineMetrics(reg) })
}
