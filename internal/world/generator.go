package world

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/annel0/voxelgen/internal/config"
	"github.com/annel0/voxelgen/internal/logging"
	"github.com/annel0/voxelgen/internal/util"
	"github.com/annel0/voxelgen/internal/vec"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ErrPassInFlight возвращается при запросе генерации, пока предыдущий проход не завершён
var ErrPassInFlight = errors.New("generation pass already in flight")

// Stage — стадия конвейера генерации
type Stage int

const (
	StageIdle Stage = iota
	StageBuilding
	StageCulling
	StageConsolidating
	StageReclaiming
)

// String возвращает строковое представление стадии
func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageBuilding:
		return "building"
	case StageCulling:
		return "culling"
	case StageConsolidating:
		return "consolidating"
	case StageReclaiming:
		return "reclaiming"
	default:
		return "unknown"
	}
}

// PassReport — итог одного прохода генерации
type PassReport struct {
	ID             string                   `json:"id"`
	Number         uint64                   `json:"number"`
	Config         config.GenerationConfig  `json:"config"`
	Params         FieldParams              `json:"params"`
	Built          int                      `json:"built"`
	Culled         int                      `json:"culled"`
	Survivors      int                      `json:"survivors"`
	Vertices       int                      `json:"vertices"`
	Indices        int                      `json:"indices"`
	Fingerprint    uint64                   `json:"fingerprint"`
	ActorPosition  vec.Vec3Float            `json:"actor_position"`
	StartedAt      time.Time                `json:"started_at"`
	FinishedAt     time.Time                `json:"finished_at"`
	StageDurations map[string]time.Duration `json:"stage_durations"`
}

// Recorder получает метрики конвейера
type Recorder interface {
	ObserveStage(stage Stage, d time.Duration)
	ObservePass(report PassReport)
	ObservePool(stats PoolStats)
}

// PassListener вызывается после завершения прохода, вне блокировки генератора
type PassListener func(ctx context.Context, report PassReport)

// Option настраивает TerrainGenerator
type Option func(*TerrainGenerator)

// WithClock подменяет источник времени (для тестов)
func WithClock(now func() time.Time) Option {
	return func(g *TerrainGenerator) { g.now = now }
}

// WithNoise подменяет источник шума
func WithNoise(noise NoiseSource) Option {
	return func(g *TerrainGenerator) { g.noise = noise }
}

// WithRecorder подключает запись метрик
func WithRecorder(r Recorder) Option {
	return func(g *TerrainGenerator) { g.recorder = r }
}

// WithPassListener добавляет обработчик завершённых проходов
func WithPassListener(l PassListener) Option {
	return func(g *TerrainGenerator) { g.listeners = append(g.listeners, l) }
}

// WithLogger задаёт логгер компонента
func WithLogger(l *logging.Logger) Option {
	return func(g *TerrainGenerator) { g.log = l }
}

// WithOrigin сдвигает решётку в мировых координатах
func WithOrigin(origin vec.Vec3Float) Option {
	return func(g *TerrainGenerator) { g.layout.Origin = origin }
}

// TerrainGenerator — оркестратор конвейера генерации.
// Стадии выполняются строго последовательно в потоке, вызывающем Tick;
// между стадиями выдерживается задержка либо ожидается готовность подложки.
type TerrainGenerator struct {
	mu sync.Mutex

	sub          Substrate
	actor        Actor
	pool         *TilePool
	culler       *OcclusionCuller
	consolidator *MeshConsolidator
	noise        NoiseSource
	rng          *rand.Rand

	layout      Layout
	stageDelay  time.Duration
	offsetRange float64
	clearance   float64

	live           config.GenerationConfig
	snapshot       config.GenerationConfig
	started        bool
	regenRequested bool

	stage   Stage
	readyAt time.Time
	grid    []TileID
	pass    *PassReport
	passes  uint64
	last    *PassReport
	surface *CombinedSurface

	now       func() time.Time
	tracer    trace.Tracer
	recorder  Recorder
	listeners []PassListener
	log       *logging.Logger
}

// NewTerrainGenerator создаёт генератор и прогревает пул тайлов
func NewTerrainGenerator(sub Substrate, actor Actor, cfg config.GenerationConfig, pipeline config.PipelineConfig, opts ...Option) (*TerrainGenerator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	seed := pipeline.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	scale := vec.Vec3Float{X: pipeline.TileScale[0], Y: pipeline.TileScale[1], Z: pipeline.TileScale[2]}
	if scale.X <= 0 || scale.Y <= 0 || scale.Z <= 0 {
		return nil, fmt.Errorf("tile scale must be positive, got %v", pipeline.TileScale)
	}

	g := &TerrainGenerator{
		sub:         sub,
		actor:       actor,
		rng:         rand.New(rand.NewSource(seed)),
		layout:      Layout{TileScale: scale},
		stageDelay:  time.Duration(pipeline.StageDelayMS) * time.Millisecond,
		offsetRange: pipeline.OffsetRange,
		clearance:   pipeline.SpawnClearance,
		live:        cfg,
		stage:       StageIdle,
		now:         time.Now,
		tracer:      otel.Tracer("github.com/annel0/voxelgen/internal/world"),
	}

	for _, opt := range opts {
		opt(g)
	}
	if g.noise == nil {
		g.noise = util.NewPerlinSource(seed)
	}

	g.pool = NewTilePool(sub, pipeline.PoolWarmup)
	g.culler = NewOcclusionCuller(sub, g.pool, ProbeRange(scale, pipeline.ProbeRangeFactor))
	g.consolidator = NewMeshConsolidator(sub, g.pool, scale)

	g.log.Info("🧱 Пул тайлов прогрет: %d тайлов", g.pool.Stats().Total)
	g.observePool()
	return g, nil
}

// Tick продвигает конвейер. В состоянии Idle запускает проход при первой активации,
// ручном запросе или изменении конфигурации; в остальных состояниях выполняет
// очередную стадию, если она готова.
func (g *TerrainGenerator) Tick(ctx context.Context) error {
	g.mu.Lock()
	var (
		finished *PassReport
		err      error
	)
	switch g.stage {
	case StageIdle:
		if !g.started || g.regenRequested || g.live != g.snapshot {
			err = g.startPass(ctx)
		}
	default:
		if g.stageReady() {
			finished, err = g.runStage(ctx)
		}
	}
	listeners := g.listeners
	g.mu.Unlock()

	if finished != nil {
		for _, l := range listeners {
			l(ctx, *finished)
		}
	}
	return err
}

// Run вызывает Tick с указанным интервалом до отмены контекста
func (g *TerrainGenerator) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := g.Tick(ctx); err != nil {
				g.log.Error("❌ Ошибка конвейера генерации: %v", err)
			}
		}
	}
}

// GenerateNow запускает проход и синхронно доводит его до конца.
// Между стадиями выдерживается обычная задержка.
func (g *TerrainGenerator) GenerateNow(ctx context.Context) (PassReport, error) {
	if err := g.Regenerate(); err != nil {
		return PassReport{}, err
	}

	g.mu.Lock()
	target := g.passes + 1
	g.mu.Unlock()

	for {
		if err := g.Tick(ctx); err != nil {
			return PassReport{}, err
		}

		g.mu.Lock()
		done := g.stage == StageIdle && g.passes >= target
		wait := g.readyAt.Sub(g.now())
		var report PassReport
		if done {
			report = *g.last
		}
		g.mu.Unlock()

		if done {
			return report, nil
		}
		if _, ok := g.sub.(Settler); ok && wait <= 0 {
			// Готовность определяет подложка, опрашиваем её не чаще раза в миллисекунду
			wait = time.Millisecond
		}
		if wait > 0 {
			select {
			case <-ctx.Done():
				return PassReport{}, ctx.Err()
			case <-time.After(wait):
			}
		} else if err := ctx.Err(); err != nil {
			return PassReport{}, err
		}
	}
}

// Regenerate запрашивает новый проход. Пока проход выполняется, запрос отклоняется.
func (g *TerrainGenerator) Regenerate() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stage != StageIdle {
		return fmt.Errorf("%w: stage %s", ErrPassInFlight, g.stage)
	}
	g.regenRequested = true
	return nil
}

// SetConfig задаёт новую конфигурацию. Изменение подхватывается в состоянии Idle.
func (g *TerrainGenerator) SetConfig(cfg config.GenerationConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.live = cfg
	return nil
}

// Config возвращает текущую (живую) конфигурацию
func (g *TerrainGenerator) Config() config.GenerationConfig {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.live
}

// Snapshot возвращает конфигурацию последнего запущенного прохода
func (g *TerrainGenerator) Snapshot() config.GenerationConfig {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snapshot
}

// Stage возвращает текущую стадию
func (g *TerrainGenerator) Stage() Stage {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stage
}

// PoolStats возвращает счётчики пула
func (g *TerrainGenerator) PoolStats() PoolStats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pool.Stats()
}

// ActiveGridSize возвращает размер активной сетки текущего прохода
func (g *TerrainGenerator) ActiveGridSize() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.grid)
}

// ActiveGrid возвращает копию активной сетки текущего прохода
func (g *TerrainGenerator) ActiveGrid() []TileID {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]TileID, len(g.grid))
	copy(out, g.grid)
	return out
}

// Tile возвращает состояние тайла пула
func (g *TerrainGenerator) Tile(id TileID) (Tile, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pool.Tile(id)
}

// Surface возвращает последнюю объединённую поверхность (nil до первого прохода)
func (g *TerrainGenerator) Surface() *CombinedSurface {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.surface
}

// CurrentPass возвращает отчёт выполняющегося прохода
func (g *TerrainGenerator) CurrentPass() (PassReport, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pass == nil {
		return PassReport{}, false
	}
	return *g.pass, true
}

// LastReport возвращает отчёт последнего завершённого прохода
func (g *TerrainGenerator) LastReport() (PassReport, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.last == nil {
		return PassReport{}, false
	}
	return *g.last, true
}

func (g *TerrainGenerator) stageReady() bool {
	if settler, ok := g.sub.(Settler); ok {
		return settler.Settled()
	}
	return !g.now().Before(g.readyAt)
}

// advance переводит конвейер в следующую стадию с отложенным запуском
func (g *TerrainGenerator) advance(next Stage) {
	g.stage = next
	g.readyAt = g.now().Add(g.stageDelay)
}

// startPass фиксирует снимок конфигурации и строит сетку
func (g *TerrainGenerator) startPass(ctx context.Context) error {
	g.started = true
	g.regenRequested = false
	g.snapshot = g.live

	params := DrawFieldParams(g.rng, g.snapshot, g.offsetRange)
	field := NewDensityField(g.noise, params, g.snapshot.Depth)

	g.pass = &PassReport{
		ID:             uuid.NewString(),
		Number:         g.passes + 1,
		Config:         g.snapshot,
		Params:         params,
		StartedAt:      g.now(),
		StageDurations: make(map[string]time.Duration),
	}
	g.stage = StageBuilding

	g.log.Info("🌍 Проход %d (%s): %dx%dx%d, масштаб %.2f",
		g.pass.Number, g.pass.ID, g.snapshot.Width, g.snapshot.Height, g.snapshot.Depth, params.Scale)

	g.withStage(ctx, StageBuilding, func(span trace.Span) error {
		g.grid = BuildGrid(g.snapshot, field, g.pool, g.layout)
		g.pass.Built = len(g.grid)
		span.SetAttributes(attribute.Int("terrain.tiles", len(g.grid)))
		return nil
	})
	g.log.Debug("Сетка построена: %d тайлов", g.pass.Built)

	g.advance(StageCulling)
	return nil
}

// runStage выполняет готовую отложенную стадию
func (g *TerrainGenerator) runStage(ctx context.Context) (*PassReport, error) {
	switch g.stage {
	case StageCulling:
		err := g.withStage(ctx, StageCulling, func(span trace.Span) error {
			result, err := g.culler.Cull(g.grid)
			g.grid = result.Survivors
			g.pass.Culled = len(result.Removed)
			g.pass.Survivors = len(result.Survivors)
			span.SetAttributes(
				attribute.Int("terrain.culled", len(result.Removed)),
				attribute.Int("terrain.survivors", len(result.Survivors)),
			)
			return err
		})
		g.log.Debug("Удалено внутренних тайлов: %d", g.pass.Culled)
		g.advance(StageConsolidating)
		return nil, err

	case StageConsolidating:
		err := g.withStage(ctx, StageConsolidating, func(span trace.Span) error {
			surface := g.consolidator.Consolidate(g.grid)
			g.sub.Present(surface)
			g.surface = surface
			g.pass.Vertices = surface.VertexCount()
			g.pass.Indices = surface.IndexCount()
			g.pass.Fingerprint = surface.Fingerprint()
			span.SetAttributes(
				attribute.Int("terrain.vertices", surface.VertexCount()),
				attribute.Int("terrain.indices", surface.IndexCount()),
			)
			return nil
		})
		g.advance(StageReclaiming)
		return nil, err

	case StageReclaiming:
		err := g.withStage(ctx, StageReclaiming, func(span trace.Span) error {
			// Геометрия выживших уже живёт в объединённой поверхности
			err := g.pool.ReleaseAll(g.grid)
			g.grid = nil
			g.positionActor()
			return err
		})
		return g.finishPass(), err
	}

	return nil, fmt.Errorf("unexpected stage %s", g.stage)
}

// withStage оборачивает стадию в span и замеряет длительность
func (g *TerrainGenerator) withStage(ctx context.Context, stage Stage, fn func(span trace.Span) error) error {
	_, span := g.tracer.Start(ctx, "terrain."+stage.String(),
		trace.WithAttributes(attribute.String("terrain.pass_id", g.pass.ID)))
	defer span.End()

	start := time.Now()
	err := fn(span)
	elapsed := time.Since(start)

	if err != nil {
		span.RecordError(err)
		g.log.Error("❌ Стадия %s: %v", stage, err)
	}
	g.pass.StageDurations[stage.String()] = elapsed
	if g.recorder != nil {
		g.recorder.ObserveStage(stage, elapsed)
	}
	g.observePool()
	return err
}

// positionActor ставит актёра над центром нового ландшафта
func (g *TerrainGenerator) positionActor() {
	s := g.layout.TileScale
	pos := g.layout.Origin.Add(vec.Vec3Float{
		X: float64(g.snapshot.Width) * 0.5 * s.X,
		Y: float64(g.snapshot.Height)*s.Y + g.clearance,
		Z: float64(g.snapshot.Depth) * 0.5 * s.Z,
	})
	g.pass.ActorPosition = pos

	if g.actor == nil {
		return
	}
	g.actor.DisableMotionController()
	g.actor.SetTransform(pos)
	g.actor.EnableMotionController()
}

func (g *TerrainGenerator) finishPass() *PassReport {
	g.pass.FinishedAt = g.now()
	g.passes++
	report := *g.pass
	g.last = &report
	g.pass = nil
	g.stage = StageIdle

	if g.recorder != nil {
		g.recorder.ObservePass(report)
	}
	g.log.Info("✅ Проход %d завершён: построено %d, удалено %d, вершин %d",
		report.Number, report.Built, report.Culled, report.Vertices)
	return &report
}

func (g *TerrainGenerator) observePool() {
	if g.recorder != nil {
		g.recorder.ObservePool(g.pool.Stats())
	}
}
