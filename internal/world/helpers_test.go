package world

import (
	"sync"
	"time"

	"github.com/annel0/voxelgen/internal/config"
)

// constNoise возвращает одно и то же значение шума во всех точках
type constNoise float64

func (n constNoise) Noise2D(x, y float64) float64 { return float64(n) }

// fakeClock — управляемые часы для тестов конвейера
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// stageRecorder считает вызовы Recorder
type stageRecorder struct {
	mu     sync.Mutex
	stages map[Stage]int
	passes []PassReport
	pool   PoolStats
}

func newStageRecorder() *stageRecorder {
	return &stageRecorder{stages: make(map[Stage]int)}
}

func (r *stageRecorder) ObserveStage(stage Stage, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages[stage]++
}

func (r *stageRecorder) ObservePass(report PassReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.passes = append(r.passes, report)
}

func (r *stageRecorder) ObservePool(stats PoolStats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pool = stats
}

func (r *stageRecorder) count(stage Stage) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stages[stage]
}

// flatConfig — 8x8x8; при шуме 1.0 заполнены слои y=0..3
func flatConfig() config.GenerationConfig {
	return config.GenerationConfig{Height: 8, Width: 8, Depth: 8, MinScale: 16, MaxScale: 24}
}

func testPipeline() config.PipelineConfig {
	p := config.DefaultPipelineConfig()
	p.PoolWarmup = 64
	p.Seed = 1
	return p
}
