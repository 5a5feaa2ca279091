package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/annel0/voxelgen/internal/config"
	"github.com/annel0/voxelgen/internal/export"
	"github.com/annel0/voxelgen/internal/vec"
	"github.com/annel0/voxelgen/internal/world"
)

func main() {
	def := config.DefaultGenerationConfig()
	var (
		width   = flag.Int("width", def.Width, "Ширина решётки (X)")
		height  = flag.Int("height", def.Height, "Высота решётки (Y)")
		depth   = flag.Int("depth", def.Depth, "Глубина решётки (Z)")
		minS    = flag.Float64("min", def.MinScale, "Минимальный масштаб шума")
		maxS    = flag.Float64("max", def.MaxScale, "Максимальный масштаб шума")
		seed    = flag.Int64("seed", 0, "Зерно генерации (0 — по времени)")
		out     = flag.String("out", "terrain.glb", "Файл для сохранения поверхности")
		zst     = flag.Bool("zstd", false, "Сжать результат zstd")
		timeout = flag.Duration("timeout", time.Minute, "Максимальное время прохода")
	)
	flag.Parse()

	cfg := config.GenerationConfig{
		Width:    *width,
		Height:   *height,
		Depth:    *depth,
		MinScale: *minS,
		MaxScale: *maxS,
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("❌ Неверные параметры: %v", err)
	}

	pipeline := config.DefaultPipelineConfig()
	pipeline.Seed = *seed
	pipeline.StageDelayMS = 0 // стадии выполняются подряд
	pipeline.PoolWarmup = cfg.Width * cfg.Height * cfg.Depth

	substrate := world.NewMemorySubstrate(vec.One)
	actor := world.NewSpectator(vec.Vec3Float{})
	generator, err := world.NewTerrainGenerator(substrate, actor, cfg, pipeline)
	if err != nil {
		log.Fatalf("❌ Ошибка создания генератора: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	report, err := generator.GenerateNow(ctx)
	if err != nil {
		log.Fatalf("❌ Ошибка генерации: %v", err)
	}

	path := *out
	if *zst && !strings.HasSuffix(path, ".zst") {
		path += ".zst"
	}
	if err := export.SaveGLB(path, generator.Surface(), *zst); err != nil {
		log.Fatalf("❌ Ошибка сохранения %s: %v", path, err)
	}

	fmt.Fprintf(os.Stdout, "✅ %dx%dx%d, масштаб %.2f: построено %d, удалено %d, тайлов %d, вершин %d\n",
		cfg.Width, cfg.Height, cfg.Depth, report.Params.Scale, report.Built, report.Culled, report.Survivors, report.Vertices)
	fmt.Fprintf(os.Stdout, "   актёр: (%.1f, %.1f, %.1f), отпечаток %016x\n",
		report.ActorPosition.X, report.ActorPosition.Y, report.ActorPosition.Z, report.Fingerprint)
	fmt.Fprintf(os.Stdout, "   сохранено: %s\n", path)
}

