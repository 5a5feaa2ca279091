package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrCacheMiss возвращается, если ключ отсутствует или истёк
var ErrCacheMiss = errors.New("cache miss")

// CacheRepo определяет интерфейс кеша экспортированных поверхностей.
// Ключи адресуют содержимое (отпечаток поверхности + формат), поэтому
// инвалидация не нужна: новая поверхность даёт новый ключ.
//
// Использование:
//
//	data, err := c.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		data = encode()
//		_ = c.Set(ctx, key, data, ttl)
//	}
type CacheRepo interface {
	// Get получает значение по ключу. Возвращает ErrCacheMiss если ключ не найден.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set сохраняет значение с указанным TTL. TTL = 0 означает отсутствие истечения.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete удаляет ключ из кеша.
	Delete(ctx context.Context, key string) error

	// Close закрывает соединение с кешем.
	Close() error

	// GetMetrics возвращает снимок метрик кеша.
	GetMetrics() CacheMetrics
}

// CacheMetrics содержит метрики кеша
type CacheMetrics struct {
	TotalRequests int64   `json:"total_requests"`
	CacheHits     int64   `json:"cache_hits"`
	CacheMisses   int64   `json:"cache_misses"`
	HitRatio      float64 `json:"hit_ratio"`
	Errors        int64   `json:"errors"`
	Entries       int     `json:"entries"`
}

// hitRatio считает долю попаданий
func hitRatio(hits, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// SurfaceKey строит ключ кеша для поверхности с отпечатком fingerprint в формате format
func SurfaceKey(fingerprint uint64, format string) string {
	return fmt.Sprintf("surface:%s:%016x", format, fingerprint)
}
