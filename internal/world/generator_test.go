package world

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/annel0/voxelgen/internal/config"
	"github.com/annel0/voxelgen/internal/util"
	"github.com/annel0/voxelgen/internal/vec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const stageStep = 100 * time.Millisecond

type generatorFixture struct {
	gen      *TerrainGenerator
	sub      *MemorySubstrate
	actor    *Spectator
	clock    *fakeClock
	recorder *stageRecorder
}

func newFixture(t *testing.T, cfg config.GenerationConfig, opts ...Option) *generatorFixture {
	t.Helper()
	f := &generatorFixture{
		sub:      NewMemorySubstrate(vec.One),
		actor:    NewSpectator(vec.Vec3Float{}),
		clock:    newFakeClock(),
		recorder: newStageRecorder(),
	}
	opts = append([]Option{WithClock(f.clock.Now), WithRecorder(f.recorder)}, opts...)
	gen, err := NewTerrainGenerator(f.sub, f.actor, cfg, testPipeline(), opts...)
	require.NoError(t, err)
	f.gen = gen
	return f
}

// step продвигает часы на задержку стадии и вызывает Tick
func (f *generatorFixture) step(t *testing.T) {
	t.Helper()
	f.clock.Advance(stageStep)
	require.NoError(t, f.gen.Tick(context.Background()))
}

// runPass проводит полный проход: запуск и три отложенные стадии
func (f *generatorFixture) runPass(t *testing.T) {
	t.Helper()
	require.NoError(t, f.gen.Tick(context.Background()))
	for i := 0; i < 3; i++ {
		f.step(t)
	}
	require.Equal(t, StageIdle, f.gen.Stage())
}

func TestNewTerrainGeneratorRejectsInvalidConfig(t *testing.T) {
	cfg := flatConfig()
	cfg.Width = 4
	_, err := NewTerrainGenerator(NewMemorySubstrate(vec.One), nil, cfg, testPipeline())
	assert.ErrorIs(t, err, config.ErrOutOfBounds)

	p := testPipeline()
	p.TileScale = [3]float64{1, 0, 1}
	_, err = NewTerrainGenerator(NewMemorySubstrate(vec.One), nil, flatConfig(), p)
	assert.Error(t, err)
}

func TestGeneratorWarmsPool(t *testing.T) {
	f := newFixture(t, flatConfig())
	assert.Equal(t, PoolStats{Active: 0, Inactive: 64, Total: 64}, f.gen.PoolStats())
	assert.Equal(t, 64, f.sub.Units())
	assert.Equal(t, StageIdle, f.gen.Stage())
}

func TestGeneratorStageTransitions(t *testing.T) {
	f := newFixture(t, flatConfig(), WithNoise(constNoise(1.0)))
	ctx := context.Background()

	require.NoError(t, f.gen.Tick(ctx))
	assert.Equal(t, StageCulling, f.gen.Stage(), "Первая активация запускает построение")
	assert.Equal(t, 256, f.gen.ActiveGridSize())

	// До истечения задержки стадия не меняется
	f.clock.Advance(stageStep - time.Millisecond)
	require.NoError(t, f.gen.Tick(ctx))
	assert.Equal(t, StageCulling, f.gen.Stage())

	f.clock.Advance(time.Millisecond)
	require.NoError(t, f.gen.Tick(ctx))
	assert.Equal(t, StageConsolidating, f.gen.Stage())
	assert.Equal(t, 184, f.gen.ActiveGridSize())
	assert.Equal(t, PoolStats{Active: 184, Inactive: 72, Total: 256}, f.gen.PoolStats())
	assert.Equal(t, 0, f.sub.ProbedUnits(), "После отсечения зонды сняты")

	f.step(t)
	assert.Equal(t, StageReclaiming, f.gen.Stage())
	require.NotNil(t, f.gen.Surface())
	assert.Equal(t, 184*24, f.gen.Surface().VertexCount())
	assert.Equal(t, 1, f.sub.Presented())

	f.step(t)
	assert.Equal(t, StageIdle, f.gen.Stage())
	assert.Equal(t, 0, f.gen.ActiveGridSize())
	assert.Equal(t, PoolStats{Active: 0, Inactive: 256, Total: 256}, f.gen.PoolStats())
	assert.Equal(t, 0, f.sub.ActiveUnits())

	report, ok := f.gen.LastReport()
	require.True(t, ok)
	assert.Equal(t, uint64(1), report.Number)
	assert.Equal(t, 256, report.Built)
	assert.Equal(t, 72, report.Culled)
	assert.Equal(t, 184, report.Survivors)
	assert.Equal(t, 4416, report.Vertices)
	assert.Equal(t, f.gen.Surface().Fingerprint(), report.Fingerprint)
	assert.Equal(t, 3*stageStep, report.FinishedAt.Sub(report.StartedAt))
	assert.Len(t, report.StageDurations, 4)

	_, inFlight := f.gen.CurrentPass()
	assert.False(t, inFlight)
}

func TestGeneratorPositionsActor(t *testing.T) {
	f := newFixture(t, flatConfig(), WithNoise(constNoise(1.0)))
	f.runPass(t)

	want := vec.Vec3Float{X: 4, Y: 13, Z: 4}
	assert.Equal(t, want, f.actor.Position())
	assert.Equal(t, want, f.actor.SpawnPoint())
	assert.True(t, f.actor.ControllerEnabled(), "Контроллер движения должен быть включён обратно")

	total, violations := f.actor.Teleports()
	assert.Equal(t, 1, total)
	assert.Equal(t, 0, violations, "Телепорт должен выполняться при выключенном контроллере")

	report, _ := f.gen.LastReport()
	assert.Equal(t, want, report.ActorPosition)
}

func TestGeneratorOriginOffset(t *testing.T) {
	origin := vec.Vec3Float{X: 100, Y: -10, Z: 50}
	f := newFixture(t, flatConfig(), WithNoise(constNoise(1.0)), WithOrigin(origin))
	f.runPass(t)
	assert.Equal(t, vec.Vec3Float{X: 104, Y: 3, Z: 54}, f.actor.Position())
}

func TestGeneratorPerlinBuildMatchesField(t *testing.T) {
	f := newFixture(t, flatConfig())
	require.NoError(t, f.gen.Tick(context.Background()))

	pass, ok := f.gen.CurrentPass()
	require.True(t, ok)
	assert.GreaterOrEqual(t, pass.Params.Scale, 16.0)
	assert.LessOrEqual(t, pass.Params.Scale, 24.0)

	field := NewDensityField(util.NewPerlinSource(1), pass.Params, 8)
	assert.Equal(t, field.SolidCount(flatConfig()), pass.Built)
	assert.Equal(t, pass.Built, f.gen.ActiveGridSize())

	for _, id := range f.gen.ActiveGrid() {
		tile, ok := f.gen.Tile(id)
		require.True(t, ok)
		assert.True(t, tile.Active)
		assert.True(t, tile.HasProbe)
		c := tile.Position.Floor(1)
		assert.True(t, field.IsSolid(c.X, c.Y, c.Z), "Тайл %v должен лежать в заполненной ячейке", c)
	}
}

func TestGeneratorConfigChangeStartsOnePass(t *testing.T) {
	f := newFixture(t, flatConfig(), WithNoise(constNoise(1.0)))
	f.runPass(t)
	require.Equal(t, 1, f.recorder.count(StageBuilding))

	// Без изменений новый проход не запускается
	f.step(t)
	f.step(t)
	assert.Equal(t, 1, f.recorder.count(StageBuilding))

	wider := flatConfig()
	wider.Width = 16
	require.NoError(t, f.gen.SetConfig(wider))
	f.runPass(t)
	assert.Equal(t, 2, f.recorder.count(StageBuilding))

	f.step(t)
	assert.Equal(t, 2, f.recorder.count(StageBuilding))
	assert.Equal(t, wider, f.gen.Snapshot())

	report, _ := f.gen.LastReport()
	assert.Equal(t, 512, report.Built)
	assert.Equal(t, vec.Vec3Float{X: 8, Y: 13, Z: 4}, f.actor.Position())
}

func TestGeneratorMidPassConfigIsDeferred(t *testing.T) {
	f := newFixture(t, flatConfig(), WithNoise(constNoise(1.0)))
	require.NoError(t, f.gen.Tick(context.Background()))

	deeper := flatConfig()
	deeper.Depth = 12
	require.NoError(t, f.gen.SetConfig(deeper))
	assert.Equal(t, flatConfig(), f.gen.Snapshot(), "Снимок текущего прохода не меняется")

	for i := 0; i < 3; i++ {
		f.step(t)
	}
	report, _ := f.gen.LastReport()
	assert.Equal(t, flatConfig(), report.Config)

	// Изменение подхватывается в Idle
	f.step(t)
	assert.Equal(t, StageCulling, f.gen.Stage())
	assert.Equal(t, deeper, f.gen.Snapshot())
}

func TestGeneratorSetConfigValidates(t *testing.T) {
	f := newFixture(t, flatConfig())
	bad := flatConfig()
	bad.MaxScale = 200
	assert.ErrorIs(t, f.gen.SetConfig(bad), config.ErrOutOfBounds)
	assert.Equal(t, flatConfig(), f.gen.Config())
}

func TestGeneratorRegenerate(t *testing.T) {
	f := newFixture(t, flatConfig(), WithNoise(constNoise(1.0)))
	f.runPass(t)

	require.NoError(t, f.gen.Regenerate())
	require.NoError(t, f.gen.Tick(context.Background()))
	assert.Equal(t, StageCulling, f.gen.Stage())

	err := f.gen.Regenerate()
	assert.ErrorIs(t, err, ErrPassInFlight)

	for i := 0; i < 3; i++ {
		f.step(t)
	}
	assert.Equal(t, 2, f.recorder.count(StageBuilding))
	assert.Len(t, f.recorder.passes, 2)

	report, _ := f.gen.LastReport()
	assert.Equal(t, uint64(2), report.Number)
}

func TestGeneratorPassListener(t *testing.T) {
	var calls int32
	var got PassReport
	listener := func(ctx context.Context, report PassReport) {
		atomic.AddInt32(&calls, 1)
		got = report
	}

	f := newFixture(t, flatConfig(), WithNoise(constNoise(1.0)), WithPassListener(listener))
	f.runPass(t)

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, 184, got.Survivors)
	assert.NotEmpty(t, got.ID)
}

// settlingSubstrate сообщает о готовности стадии по флагу
type settlingSubstrate struct {
	*MemorySubstrate
	settled atomic.Bool
}

func (s *settlingSubstrate) Settled() bool { return s.settled.Load() }

func TestGeneratorWaitsForSettler(t *testing.T) {
	sub := &settlingSubstrate{MemorySubstrate: NewMemorySubstrate(vec.One)}
	clock := newFakeClock()
	gen, err := NewTerrainGenerator(sub, nil, flatConfig(), testPipeline(),
		WithClock(clock.Now), WithNoise(constNoise(1.0)))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, gen.Tick(ctx))
	clock.Advance(time.Second)
	require.NoError(t, gen.Tick(ctx))
	assert.Equal(t, StageCulling, gen.Stage(), "Без готовности подложки задержка не учитывается")

	sub.settled.Store(true)
	require.NoError(t, gen.Tick(ctx))
	assert.Equal(t, StageConsolidating, gen.Stage())
	require.NoError(t, gen.Tick(ctx))
	require.NoError(t, gen.Tick(ctx))
	assert.Equal(t, StageIdle, gen.Stage())
}

func TestGenerateNow(t *testing.T) {
	p := testPipeline()
	p.StageDelayMS = 0
	actor := NewSpectator(vec.Vec3Float{})
	gen, err := NewTerrainGenerator(NewMemorySubstrate(vec.One), actor, flatConfig(), p, WithNoise(constNoise(1.0)))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	report, err := gen.GenerateNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, 184, report.Survivors)
	assert.Equal(t, StageIdle, gen.Stage())

	report, err = gen.GenerateNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), report.Number)
}

func TestGenerateNowWithSettler(t *testing.T) {
	sub := &settlingSubstrate{MemorySubstrate: NewMemorySubstrate(vec.One)}
	sub.settled.Store(true)
	gen, err := NewTerrainGenerator(sub, nil, flatConfig(), testPipeline(), WithNoise(constNoise(1.0)))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	report, err := gen.GenerateNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, 256, report.Built)
}

func TestGenerateNowCancelled(t *testing.T) {
	gen, err := NewTerrainGenerator(NewMemorySubstrate(vec.One), nil, flatConfig(), testPipeline(), WithNoise(constNoise(1.0)))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = gen.GenerateNow(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStageString(t *testing.T) {
	assert.Equal(t, "idle", StageIdle.String())
	assert.Equal(t, "building", StageBuilding.String())
	assert.Equal(t, "culling", StageCulling.String())
	assert.Equal(t, "consolidating", StageConsolidating.String())
	assert.Equal(t, "reclaiming", StageReclaiming.String())
	assert.Equal(t, "unknown", Stage(42).String())
}
