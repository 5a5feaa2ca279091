package observability

import (
	"time"

	"github.com/annel0/voxelgen/internal/world"
	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics экспортирует метрики конвейера генерации в Prometheus.
// Реализует world.Recorder.
type PipelineMetrics struct {
	passes        prometheus.Counter
	tilesBuilt    prometheus.Counter
	tilesCulled   prometheus.Counter
	stageDuration *prometheus.HistogramVec
	poolTiles     *prometheus.GaugeVec
	surfaceVerts  prometheus.Gauge
	surfaceTiles  prometheus.Gauge
}

// NewPipelineMetrics создаёт метрики и регистрирует их в reg.
// nil регистратор означает prometheus.DefaultRegisterer.
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	pm := &PipelineMetrics{
		passes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voxelgen",
			Name:      "passes_total",
			Help:      "Число завершённых проходов генерации.",
		}),
		tilesBuilt: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voxelgen",
			Name:      "tiles_built_total",
			Help:      "Тайлов размещено на стадии построения.",
		}),
		tilesCulled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voxelgen",
			Name:      "tiles_culled_total",
			Help:      "Внутренних тайлов удалено отсечением.",
		}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "voxelgen",
			Name:      "stage_duration_seconds",
			Help:      "Длительность стадий конвейера (без задержки между стадиями).",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"stage"}),
		poolTiles: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "voxelgen",
			Name:      "pool_tiles",
			Help:      "Тайлы пула по состоянию.",
		}, []string{"state"}),
		surfaceVerts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "voxelgen",
			Name:      "surface_vertices",
			Help:      "Вершин в последней объединённой поверхности.",
		}),
		surfaceTiles: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "voxelgen",
			Name:      "surface_tiles",
			Help:      "Тайлов в последней объединённой поверхности.",
		}),
	}

	reg.MustRegister(pm.passes, pm.tilesBuilt, pm.tilesCulled, pm.stageDuration,
		pm.poolTiles, pm.surfaceVerts, pm.surfaceTiles)
	return pm
}

func (pm *PipelineMetrics) ObserveStage(stage world.Stage, d time.Duration) {
	pm.stageDuration.WithLabelValues(stage.String()).Observe(d.Seconds())
}

func (pm *PipelineMetrics) ObservePass(report world.PassReport) {
	pm.passes.Inc()
	pm.tilesBuilt.Add(float64(report.Built))
	pm.tilesCulled.Add(float64(report.Culled))
	pm.surfaceVerts.Set(float64(report.Vertices))
	pm.surfaceTiles.Set(float64(report.Survivors))
}

func (pm *PipelineMetrics) ObservePool(stats world.PoolStats) {
	pm.poolTiles.WithLabelValues("active").Set(float64(stats.Active))
	pm.poolTiles.WithLabelValues("inactive").Set(float64(stats.Inactive))
}
