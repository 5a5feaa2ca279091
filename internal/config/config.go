package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Границы параметров генерации. Значения вне границ отклоняются на входе
// (API) или приводятся к границам при загрузке файла.
const (
	MinDimension = 8
	MaxDimension = 128
	MinScaleLow  = 8.0
	MaxScaleHigh = 128.0
)

// ErrOutOfBounds возвращается, если параметр генерации выходит за допустимые границы
var ErrOutOfBounds = errors.New("generation config out of bounds")

// Config корневая структура конфигурации сервиса.
type Config struct {
	Generation GenerationConfig `yaml:"generation"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Server     ServerConfig     `yaml:"server"`
	EventBus   EventBusConfig   `yaml:"eventbus"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Logging    LoggingConfig    `yaml:"logging"`
	Cache      CacheConfig      `yaml:"cache"`
	Storage    StorageConfig    `yaml:"storage"`

	// Corrections — поправки, внесённые Load в секцию generation
	Corrections []string `yaml:"-"`
}

// GenerationConfig описывает размеры ландшафта и диапазон масштаба шума.
// Значение неизменяемо в пределах одного прохода генерации.
type GenerationConfig struct {
	Height   int     `yaml:"height" json:"height"`
	Width    int     `yaml:"width" json:"width"`
	Depth    int     `yaml:"depth" json:"depth"`
	MinScale float64 `yaml:"min_scale" json:"min_scale"`
	MaxScale float64 `yaml:"max_scale" json:"max_scale"`
}

// PipelineConfig содержит настройки конвейера генерации
type PipelineConfig struct {
	PoolWarmup       int        `yaml:"pool_warmup"`
	TickIntervalMS   int        `yaml:"tick_interval_ms"`
	StageDelayMS     int        `yaml:"stage_delay_ms"`
	Seed             int64      `yaml:"seed"`
	OffsetRange      float64    `yaml:"offset_range"`
	TileScale        [3]float64 `yaml:"tile_scale"`
	SpawnClearance   float64    `yaml:"spawn_clearance"`
	ProbeRangeFactor float64    `yaml:"probe_range_factor"`
}

type ServerConfig struct {
	AdminPort   int `yaml:"admin_port"`
	MetricsPort int `yaml:"metrics_port"`
}

type EventBusConfig struct {
	URL       string `yaml:"url"`
	Stream    string `yaml:"stream"`
	Retention int    `yaml:"retention_hours"`
}

type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

// CacheConfig — кеш экспортированных поверхностей. Пустой RedisAddr означает кеш в памяти.
type CacheConfig struct {
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	TTLSeconds    int    `yaml:"ttl_seconds"`
	MaxEntries    int    `yaml:"max_entries"`
}

// StorageConfig — история проходов. Пустой Dir означает BadgerDB в памяти.
type StorageConfig struct {
	Dir        string `yaml:"dir"`
	MaxHistory int    `yaml:"max_history"`
}

type LoggingConfig struct {
	Dir          string `yaml:"dir"`
	ConsoleLevel string `yaml:"console_level"`
	FileLevel    string `yaml:"file_level"`
}

// DefaultGenerationConfig возвращает параметры генерации по умолчанию
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		Height:   8,
		Width:    8,
		Depth:    8,
		MinScale: 16.0,
		MaxScale: 24.0,
	}
}

// DefaultPipelineConfig возвращает настройки конвейера по умолчанию
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		PoolWarmup:       20000,
		TickIntervalMS:   16,
		StageDelayMS:     100, // ~2 кадра на то, чтобы коллайдеры "осели"
		Seed:             0,
		OffsetRange:      1024.0,
		TileScale:        [3]float64{1, 1, 1},
		SpawnClearance:   5.0,
		ProbeRangeFactor: 0.3,
	}
}

// Default возвращает полную конфигурацию по умолчанию
func Default() *Config {
	return &Config{
		Generation: DefaultGenerationConfig(),
		Pipeline:   DefaultPipelineConfig(),
		EventBus: EventBusConfig{
			Stream:    "TERRAIN",
			Retention: 24,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "voxelgen",
		},
		Logging: LoggingConfig{
			Dir:          "logs",
			ConsoleLevel: "INFO",
			FileLevel:    "DEBUG",
		},
		Cache: CacheConfig{
			TTLSeconds: 600,
			MaxEntries: 16,
		},
		Storage: StorageConfig{
			MaxHistory: 1000,
		},
	}
}

// Validate проверяет, что все параметры находятся в допустимых границах
func (g GenerationConfig) Validate() error {
	dims := []struct {
		name  string
		value int
	}{
		{"height", g.Height},
		{"width", g.Width},
		{"depth", g.Depth},
	}
	for _, d := range dims {
		if d.value < MinDimension || d.value > MaxDimension {
			return fmt.Errorf("%w: %s=%d not in [%d,%d]", ErrOutOfBounds, d.name, d.value, MinDimension, MaxDimension)
		}
	}

	scales := []struct {
		name  string
		value float64
	}{
		{"min_scale", g.MinScale},
		{"max_scale", g.MaxScale},
	}
	for _, s := range scales {
		// NaN тоже отклоняется
		if !(s.value >= MinScaleLow && s.value <= MaxScaleHigh) {
			return fmt.Errorf("%w: %s=%g not in [%g,%g]", ErrOutOfBounds, s.name, s.value, MinScaleLow, MaxScaleHigh)
		}
	}

	if g.MinScale > g.MaxScale {
		return fmt.Errorf("%w: min_scale=%g > max_scale=%g", ErrOutOfBounds, g.MinScale, g.MaxScale)
	}
	return nil
}

// Clamp приводит параметры к допустимым границам.
// Перепутанные min/max масштаба меняются местами, NaN заменяется значением по умолчанию.
func (g GenerationConfig) Clamp() GenerationConfig {
	clamped, _ := g.ClampReport()
	return clamped
}

// ClampReport работает как Clamp и дополнительно описывает каждое исправленное поле
func (g GenerationConfig) ClampReport() (GenerationConfig, []string) {
	var corrections []string

	dims := []struct {
		name  string
		value *int
	}{
		{"height", &g.Height},
		{"width", &g.Width},
		{"depth", &g.Depth},
	}
	for _, d := range dims {
		if v := clampInt(*d.value, MinDimension, MaxDimension); v != *d.value {
			corrections = append(corrections, fmt.Sprintf("%s=%d → %d", d.name, *d.value, v))
			*d.value = v
		}
	}

	def := DefaultGenerationConfig()
	scales := []struct {
		name     string
		value    *float64
		fallback float64
	}{
		{"min_scale", &g.MinScale, def.MinScale},
		{"max_scale", &g.MaxScale, def.MaxScale},
	}
	for _, s := range scales {
		// NaN != NaN, поэтому NaN всегда попадает в поправки
		if v := clampFloat(*s.value, MinScaleLow, MaxScaleHigh, s.fallback); v != *s.value {
			corrections = append(corrections, fmt.Sprintf("%s=%g → %g", s.name, *s.value, v))
			*s.value = v
		}
	}

	if g.MinScale > g.MaxScale {
		corrections = append(corrections, fmt.Sprintf("min_scale=%g и max_scale=%g переставлены", g.MinScale, g.MaxScale))
		g.MinScale, g.MaxScale = g.MaxScale, g.MinScale
	}
	return g, corrections
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// clampFloat ограничивает v отрезком [lo, hi]; NaN заменяется на fallback
func clampFloat(v, lo, hi, fallback float64) float64 {
	if math.IsNaN(v) {
		return fallback
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// GetAdminPort возвращает порт административного API с поддержкой fallback значений
func (s *ServerConfig) GetAdminPort() int {
	return getPortWithEnvFallback(s.AdminPort, "VOXELGEN_ADMIN_PORT", 8088)
}

// GetMetricsPort возвращает Prometheus метрики порт с поддержкой fallback значений
func (s *ServerConfig) GetMetricsPort() int {
	return getPortWithEnvFallback(s.MetricsPort, "VOXELGEN_METRICS_PORT", 2112)
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	if configPort > 0 {
		return configPort
	}

	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	return defaultPort
}

// Load читает YAML файл конфигурации поверх значений по умолчанию.
// Если path == "", пытается прочитать путь из ENV VOXELGEN_CONFIG;
// если и он не задан — возвращает конфигурацию по умолчанию.
// Секция generation приводится к границам, поправки складываются в Corrections.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("VOXELGEN_CONFIG")
		if path == "" {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.Generation, cfg.Corrections = cfg.Generation.ClampReport()
	return cfg, nil
}
