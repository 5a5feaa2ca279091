package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/annel0/voxelgen/internal/api"
	"github.com/annel0/voxelgen/internal/cache"
	"github.com/annel0/voxelgen/internal/config"
	"github.com/annel0/voxelgen/internal/eventbus"
	"github.com/annel0/voxelgen/internal/logging"
	"github.com/annel0/voxelgen/internal/observability"
	"github.com/annel0/voxelgen/internal/storage"
	"github.com/annel0/voxelgen/internal/vec"
	"github.com/annel0/voxelgen/internal/world"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	configPath := flag.String("config", "", "Путь к YAML конфигурации (иначе VOXELGEN_CONFIG)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}

	logging.LogDir = cfg.Logging.Dir
	if err := logging.InitDefaultLogger("server"); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()
	logging.Default().SetLevels(logging.ParseLevel(cfg.Logging.ConsoleLevel), logging.ParseLevel(cfg.Logging.FileLevel))

	manager := logging.GetLoggerManager()
	defer manager.CloseAll()
	pipelineLog := logging.GetPipelineLogger()
	apiLog := logging.GetAPILogger()
	busLog := logging.GetComponentLogger("eventbus")
	for _, component := range manager.ListComponents() {
		_ = manager.SetLogLevel(component, logging.ParseLevel(cfg.Logging.ConsoleLevel), logging.ParseLevel(cfg.Logging.FileLevel))
	}

	logging.Info("🌋 Запуск генератора воксельного ландшафта...")

	for _, correction := range cfg.Corrections {
		logging.Warn("⚠️ Параметр генерации вне границ: %s", correction)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// === ТЕЛЕМЕТРИЯ ===
	shutdownTelemetry, err := observability.InitTelemetry(ctx, cfg.Telemetry)
	if err != nil {
		logging.Error("❌ Ошибка инициализации OpenTelemetry: %v", err)
		shutdownTelemetry = func(context.Context) error { return nil }
	}

	// === ШИНА СОБЫТИЙ ===
	bus := newEventBus(cfg.EventBus)
	if _, err := eventbus.StartLoggingListener(bus, busLog); err != nil {
		logging.Error("❌ Ошибка подписки LoggingListener: %v", err)
	}
	busMetrics := eventbus.NewMetricsExporter(bus, nil, time.Second)
	busMetrics.Start()

	// === ХРАНИЛИЩЕ И КЕШ ===
	history, err := storage.OpenPassHistory(cfg.Storage.Dir, cfg.Storage.MaxHistory)
	if err != nil {
		logging.Error("❌ Ошибка открытия истории проходов: %v", err)
		os.Exit(1)
	}
	defer history.Close()
	exportCache := newExportCache(cfg.Cache)
	defer exportCache.Close()

	// === КОНВЕЙЕР ===
	scale := vec.Vec3Float{X: cfg.Pipeline.TileScale[0], Y: cfg.Pipeline.TileScale[1], Z: cfg.Pipeline.TileScale[2]}
	substrate := world.NewMemorySubstrate(scale)
	actor := world.NewSpectator(vec.Vec3Float{})

	generator, err := world.NewTerrainGenerator(substrate, actor, cfg.Generation, cfg.Pipeline,
		world.WithLogger(pipelineLog),
		world.WithRecorder(observability.NewPipelineMetrics(nil)),
		world.WithPassListener(history.Listener(pipelineLog)),
		world.WithPassListener(eventbus.PassPublisher(bus, cfg.Telemetry.ServiceName, busLog)),
	)
	if err != nil {
		logging.Error("❌ Ошибка создания генератора: %v", err)
		history.Close()
		os.Exit(1)
	}

	tick := time.Duration(cfg.Pipeline.TickIntervalMS) * time.Millisecond
	if tick <= 0 {
		tick = 16 * time.Millisecond
	}
	go generator.Run(ctx, tick)

	// === HTTP ===
	adminAddr := fmt.Sprintf(":%d", cfg.Server.GetAdminPort())
	restServer := api.NewRestServer(api.Config{
		Port:     adminAddr,
		Pipeline: generator,
		Bus:      bus,
		History:  history,
		Cache:    exportCache,
		CacheTTL: time.Duration(cfg.Cache.TTLSeconds) * time.Second,
		Logger:   apiLog,
	})
	go func() {
		if err := restServer.Start(); err != nil {
			logging.Error("❌ Ошибка REST API: %v", err)
			stop()
		}
	}()

	metricsAddr := fmt.Sprintf(":%d", cfg.Server.GetMetricsPort())
	metricsServer := &http.Server{Addr: metricsAddr, Handler: promhttp.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logging.Info("📈 Prometheus /metrics доступен по адресу %s", metricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Ошибка Prometheus HTTP сервера: %v", err)
		}
	}()

	logging.Info("✅ Все сервисы запущены")
	logging.Info("   🌐 REST API: http://localhost%s", adminAddr)
	logging.Info("   ❤️  Health check: http://localhost%s/health", adminAddr)
	logging.Info("💡 curl -X PUT http://localhost%s/api/terrain/config -d '{\"height\":16,\"width\":32,\"depth\":32,\"min_scale\":16,\"max_scale\":24}'", adminAddr)

	<-ctx.Done()
	logging.Info("📡 Получен сигнал завершения, останавливаемся...")

	// === GRACEFUL SHUTDOWN ===
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := restServer.Shutdown(shutdownCtx); err != nil {
		logging.Error("❌ Ошибка остановки REST API: %v", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logging.Error("❌ Ошибка остановки сервера метрик: %v", err)
	}
	busMetrics.Stop()
	if err := bus.Close(); err != nil {
		logging.Error("❌ Ошибка закрытия шины событий: %v", err)
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		logging.Error("❌ Ошибка остановки OpenTelemetry: %v", err)
	}

	logging.Info("👋 Генератор остановлен")
}

// newEventBus подключает JetStream, если задан URL; иначе (или при ошибке) — шина в памяти
func newEventBus(cfg config.EventBusConfig) eventbus.EventBus {
	if cfg.URL == "" {
		logging.Info("🚌 Шина событий: in-memory")
		return eventbus.NewMemoryBus(256)
	}

	retention := time.Duration(cfg.Retention) * time.Hour
	bus, err := eventbus.NewJetStreamBus(cfg.URL, cfg.Stream, retention)
	if err != nil {
		logging.Warn("⚠️ JetStream недоступен (%v), используем in-memory шину", err)
		return eventbus.NewMemoryBus(256)
	}
	logging.Info("🚌 Шина событий: JetStream %s, стрим %s", cfg.URL, cfg.Stream)
	return bus
}

// newExportCache подключает Redis, если задан адрес; иначе (или при ошибке) — LRU в памяти
func newExportCache(cfg config.CacheConfig) cache.CacheRepo {
	if cfg.RedisAddr == "" {
		return cache.NewMemoryCache(cfg.MaxEntries)
	}

	redisCache, err := cache.NewRedisCache(cache.CacheConfig{
		RedisURL:      cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
	})
	if err != nil {
		logging.Warn("⚠️ Redis недоступен (%v), используем кеш в памяти", err)
		return cache.NewMemoryCache(cfg.MaxEntries)
	}
	return redisCache
}
