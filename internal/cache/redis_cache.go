package cache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/annel0/voxelgen/internal/logging"
	"github.com/go-redis/redis/v8"
)

// CacheConfig содержит настройки Redis кеша
type CacheConfig struct {
	RedisURL      string
	RedisPassword string
	RedisDB       int
	KeyPrefix     string        // по умолчанию "voxelgen:"
	MaxTTL        time.Duration // верхняя граница TTL, по умолчанию 1 час
	PoolSize      int
}

// RedisCache реализует CacheRepo поверх Redis.
// Позволяет нескольким экземплярам сервиса делить готовые GLB.
type RedisCache struct {
	client *redis.Client
	config CacheConfig

	requests int64
	hits     int64
	misses   int64
	errors   int64
}

// NewRedisCache подключается к Redis и проверяет соединение
func NewRedisCache(config CacheConfig) (*RedisCache, error) {
	if config.KeyPrefix == "" {
		config.KeyPrefix = "voxelgen:"
	}
	if config.MaxTTL == 0 {
		config.MaxTTL = time.Hour
	}
	if config.PoolSize == 0 {
		config.PoolSize = 10
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         config.RedisURL,
		Password:     config.RedisPassword,
		DB:           config.RedisDB,
		PoolSize:     config.PoolSize,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logging.Info("🧊 Redis cache initialized: %s", config.RedisURL)
	return &RedisCache{client: rdb, config: config}, nil
}

func (r *RedisCache) key(k string) string {
	return r.config.KeyPrefix + k
}

// Get получает значение по ключу из Redis
func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	atomic.AddInt64(&r.requests, 1)

	val, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err == nil {
		atomic.AddInt64(&r.hits, 1)
		return val, nil
	}

	atomic.AddInt64(&r.misses, 1)
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	atomic.AddInt64(&r.errors, 1)
	logging.Error("Redis Get error for key %s: %v", key, err)
	return nil, fmt.Errorf("redis get error: %w", err)
}

// Set сохраняет значение в Redis. TTL ограничивается сверху MaxTTL.
func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 || ttl > r.config.MaxTTL {
		ttl = r.config.MaxTTL
	}

	if err := r.client.Set(ctx, r.key(key), value, ttl).Err(); err != nil {
		atomic.AddInt64(&r.errors, 1)
		logging.Error("Redis Set error for key %s: %v", key, err)
		return fmt.Errorf("redis set error: %w", err)
	}
	return nil
}

// Delete удаляет ключ из Redis
func (r *RedisCache) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		atomic.AddInt64(&r.errors, 1)
		return fmt.Errorf("redis delete error: %w", err)
	}
	return nil
}

// Close закрывает соединение с Redis
func (r *RedisCache) Close() error {
	return r.client.Close()
}

// GetMetrics возвращает снимок счётчиков
func (r *RedisCache) GetMetrics() CacheMetrics {
	requests := atomic.LoadInt64(&r.requests)
	hits := atomic.LoadInt64(&r.hits)
	return CacheMetrics{
		TotalRequests: requests,
		CacheHits:     hits,
		CacheMisses:   atomic.LoadInt64(&r.misses),
		HitRatio:      hitRatio(hits, requests),
		Errors:        atomic.LoadInt64(&r.errors),
		Entries:       -1, // размер общего Redis не отражает наш кеш
	}
}
