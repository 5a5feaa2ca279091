package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/annel0/voxelgen/internal/cache"
	"github.com/annel0/voxelgen/internal/config"
	"github.com/annel0/voxelgen/internal/eventbus"
	"github.com/annel0/voxelgen/internal/export"
	"github.com/annel0/voxelgen/internal/logging"
	"github.com/annel0/voxelgen/internal/middleware"
	"github.com/annel0/voxelgen/internal/storage"
	"github.com/annel0/voxelgen/internal/world"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// TerrainPipeline — операции конвейера, доступные через API.
// Реализуется *world.TerrainGenerator.
type TerrainPipeline interface {
	Config() config.GenerationConfig
	Snapshot() config.GenerationConfig
	SetConfig(cfg config.GenerationConfig) error
	Regenerate() error
	Stage() world.Stage
	PoolStats() world.PoolStats
	ActiveGridSize() int
	CurrentPass() (world.PassReport, bool)
	LastReport() (world.PassReport, bool)
	Surface() *world.CombinedSurface
}

// PassHistory — чтение истории проходов. Реализуется *storage.PassHistory.
type PassHistory interface {
	Get(seq uint64) (storage.PassRecord, error)
	List(limit int) ([]storage.PassRecord, error)
}

// RestServer представляет административный REST API генератора
type RestServer struct {
	router   *gin.Engine
	server   *http.Server
	pipeline TerrainPipeline
	bus      eventbus.EventBus
	history  PassHistory
	cache    cache.CacheRepo
	cacheTTL time.Duration
	metrics  *ServerMetrics
	log      *logging.Logger
}

// Config содержит конфигурацию для REST сервера
type Config struct {
	Port     string               // адрес для запуска сервера, например ":8088"
	Pipeline TerrainPipeline      // конвейер генерации
	Bus      eventbus.EventBus    // шина событий (необязательно, для статуса)
	History  PassHistory          // история проходов (необязательно)
	Cache    cache.CacheRepo      // кеш GLB (nil — кеш в памяти на 16 записей)
	CacheTTL time.Duration        // время жизни записей кеша
	Logger   *logging.Logger      // логгер компонента api
	Registry *prometheus.Registry // nil — глобальный регистр Prometheus
}

// NewRestServer создает новый REST API сервер
func NewRestServer(cfg Config) *RestServer {
	if cfg.Port == "" {
		cfg.Port = ":8088"
	}

	gin.SetMode(gin.ReleaseMode)

	router := gin.New()        // без стандартного logger/recovery
	router.Use(gin.Recovery()) // добавим только recovery

	// === Observability middleware ===
	router.Use(otelgin.Middleware("voxelgen_api"))
	router.Use(middleware.NewRequestLogger(cfg.Logger).Handler())

	var (
		reg      prometheus.Registerer
		gatherer prometheus.Gatherer
	)
	if cfg.Registry != nil {
		reg, gatherer = cfg.Registry, cfg.Registry
	}
	promMw := middleware.NewPrometheusMiddleware("voxelgen_api", reg)
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router, gatherer)

	if cfg.Cache == nil {
		cfg.Cache = cache.NewMemoryCache(16)
	}

	rs := &RestServer{
		router:   router,
		pipeline: cfg.Pipeline,
		bus:      cfg.Bus,
		history:  cfg.History,
		cache:    cfg.Cache,
		cacheTTL: cfg.CacheTTL,
		metrics:  NewServerMetrics(),
		log:      cfg.Logger,
	}
	rs.server = &http.Server{
		Addr:              cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	rs.setupRoutes()
	return rs
}

// setupRoutes настраивает маршруты REST API
func (rs *RestServer) setupRoutes() {
	rs.router.GET("/health", rs.handleHealth)

	terrain := rs.router.Group("/api/terrain")
	{
		terrain.GET("/config", rs.handleGetConfig)
		terrain.PUT("/config", rs.handlePutConfig)
		terrain.POST("/regenerate", rs.handleRegenerate)
		terrain.GET("/status", rs.handleStatus)
		terrain.GET("/surface.glb", rs.handleSurface)
		terrain.GET("/history", rs.handleHistory)
		terrain.GET("/history/:seq", rs.handleHistoryRecord)
	}
}

// GenericResponse представляет общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ConfigResponse — живая конфигурация и снимок последнего прохода
type ConfigResponse struct {
	Live     config.GenerationConfig `json:"live"`
	Snapshot config.GenerationConfig `json:"snapshot"`
}

// StatusResponse — состояние конвейера и процесса
type StatusResponse struct {
	Stage       string             `json:"stage"`
	Pool        world.PoolStats    `json:"pool"`
	ActiveGrid  int                `json:"active_grid"`
	CurrentPass *world.PassReport  `json:"current_pass,omitempty"`
	LastPass    *world.PassReport  `json:"last_pass,omitempty"`
	EventBus    *eventbus.Stats    `json:"event_bus,omitempty"`
	Cache       cache.CacheMetrics `json:"cache"`
	Process     ProcessStats       `json:"process"`
	ServerTime  int64              `json:"server_time"`
}

func (rs *RestServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"stage":  rs.pipeline.Stage().String(),
		"time":   time.Now().Unix(),
	})
}

func (rs *RestServer) handleGetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Конфигурация получена",
		Data: ConfigResponse{
			Live:     rs.pipeline.Config(),
			Snapshot: rs.pipeline.Snapshot(),
		},
	})
}

// handlePutConfig принимает новую конфигурацию. Она вступит в силу в начале следующего прохода.
func (rs *RestServer) handlePutConfig(c *gin.Context) {
	var req config.GenerationConfig
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Неверный формат запроса",
		})
		return
	}

	if err := rs.pipeline.SetConfig(req); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, config.ErrOutOfBounds) {
			status = http.StatusBadRequest
		}
		rs.log.Warn("⚠️ Конфигурация отклонена: %v", err)
		c.JSON(status, GenericResponse{
			Success: false,
			Message: err.Error(),
		})
		return
	}

	rs.log.Info("🔧 Новая конфигурация: %dx%dx%d, масштаб [%.1f, %.1f]",
		req.Width, req.Height, req.Depth, req.MinScale, req.MaxScale)
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Конфигурация принята",
		Data:    req,
	})
}

func (rs *RestServer) handleRegenerate(c *gin.Context) {
	if err := rs.pipeline.Regenerate(); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, world.ErrPassInFlight) {
			status = http.StatusConflict
		}
		c.JSON(status, GenericResponse{
			Success: false,
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, GenericResponse{
		Success: true,
		Message: "Проход генерации запланирован",
	})
}

func (rs *RestServer) handleStatus(c *gin.Context) {
	status := StatusResponse{
		Stage:      rs.pipeline.Stage().String(),
		Pool:       rs.pipeline.PoolStats(),
		ActiveGrid: rs.pipeline.ActiveGridSize(),
		Process:    rs.metrics.Snapshot(),
		ServerTime: time.Now().Unix(),
	}
	if pass, ok := rs.pipeline.CurrentPass(); ok {
		status.CurrentPass = &pass
	}
	if last, ok := rs.pipeline.LastReport(); ok {
		status.LastPass = &last
	}
	if rs.bus != nil {
		stats := rs.bus.Metrics()
		status.EventBus = &stats
	}
	status.Cache = rs.cache.GetMetrics()

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Статус получен",
		Data:    status,
	})
}

// handleSurface отдаёт последнюю объединённую поверхность в формате GLB.
// ?compress=zstd отдаёт поток, сжатый zstd. Готовые байты кешируются по отпечатку поверхности.
func (rs *RestServer) handleSurface(c *gin.Context) {
	surface := rs.pipeline.Surface()
	if surface == nil || surface.VertexCount() == 0 {
		c.JSON(http.StatusNotFound, GenericResponse{
			Success: false,
			Message: "Поверхность ещё не построена",
		})
		return
	}

	var (
		format      = c.DefaultQuery("compress", "none")
		contentType = "model/gltf-binary"
		filename    = "terrain.glb"
		write       = export.WriteGLB
	)
	switch format {
	case "none":
	case "zstd":
		contentType = "application/zstd"
		filename = "terrain.glb.zst"
		write = export.WriteGLBZstd
	default:
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Поддерживается только compress=zstd",
		})
		return
	}

	ctx := c.Request.Context()
	key := cache.SurfaceKey(surface.Fingerprint(), format)
	data, err := rs.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			rs.log.Warn("⚠️ Кеш недоступен: %v", err)
		}

		var buf bytes.Buffer
		if err := write(&buf, surface); err != nil {
			rs.log.Error("❌ Ошибка экспорта поверхности: %v", err)
			c.JSON(http.StatusInternalServerError, GenericResponse{
				Success: false,
				Message: "Ошибка экспорта поверхности",
			})
			return
		}
		data = buf.Bytes()
		if err := rs.cache.Set(ctx, key, data, rs.cacheTTL); err != nil {
			rs.log.Warn("⚠️ Не удалось сохранить %s в кеш: %v", key, err)
		}
	}

	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, contentType, data)
}

func (rs *RestServer) handleHistory(c *gin.Context) {
	if rs.history == nil {
		c.JSON(http.StatusNotFound, GenericResponse{
			Success: false,
			Message: "История проходов не ведётся",
		})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "limit должен быть положительным числом",
		})
		return
	}

	records, err := rs.history.List(limit)
	if err != nil {
		rs.log.Error("❌ Ошибка чтения истории: %v", err)
		c.JSON(http.StatusInternalServerError, GenericResponse{
			Success: false,
			Message: "Ошибка чтения истории",
		})
		return
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "История получена",
		Data:    records,
	})
}

func (rs *RestServer) handleHistoryRecord(c *gin.Context) {
	if rs.history == nil {
		c.JSON(http.StatusNotFound, GenericResponse{
			Success: false,
			Message: "История проходов не ведётся",
		})
		return
	}

	seq, err := strconv.ParseUint(c.Param("seq"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Неверный номер записи",
		})
		return
	}

	record, err := rs.history.Get(seq)
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, GenericResponse{
			Success: false,
			Message: "Запись не найдена",
		})
		return
	}
	if err != nil {
		rs.log.Error("❌ Ошибка чтения записи %d: %v", seq, err)
		c.JSON(http.StatusInternalServerError, GenericResponse{
			Success: false,
			Message: "Ошибка чтения истории",
		})
		return
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Запись получена",
		Data:    record,
	})
}

// Handler возвращает http.Handler сервера
func (rs *RestServer) Handler() http.Handler {
	return rs.router
}

// Start запускает HTTP сервер и блокируется до Shutdown
func (rs *RestServer) Start() error {
	rs.log.Info("🌐 Административный API слушает %s", rs.server.Addr)
	if err := rs.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown корректно останавливает сервер
func (rs *RestServer) Shutdown(ctx context.Context) error {
	return rs.server.Shutdown(ctx)
}
