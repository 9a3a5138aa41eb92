package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/geusenergia/energisa-faturas/internal/config"
)

// CacheService provides caching with Redis primary and in-memory fallback
type CacheService struct {
	client   *redis.Client
	config   *config.Config
	logger   *logrus.Logger
	memory   map[string]cacheEntry
	memoryMu sync.RWMutex
	useRedis bool
}

type cacheEntry struct {
	value     string
	expiresAt time.Time
}

// NewCacheService creates a new cache service. When Redis is unreachable
// the service degrades to the in-memory map instead of failing, so run
// reports stay available within a single process lifetime.
func NewCacheService(cfg *config.Config, logger *logrus.Logger) *CacheService {
	service := &CacheService{
		config: cfg,
		logger: logger,
		memory: make(map[string]cacheEntry),
	}

	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Warn("Redis indisponivel, usando cache em memoria")
		_ = client.Close()
		return service
	}

	service.client = client
	service.useRedis = true
	logger.Info("Cache Redis conectado")
	return service
}

// Get retrieves a value from cache
func (c *CacheService) Get(ctx context.Context, key string) (string, error) {
	if c.useRedis {
		value, err := c.client.Get(ctx, key).Result()
		if err == redis.Nil {
			return "", fmt.Errorf("chave nao encontrada: %s", key)
		}
		if err != nil {
			return "", fmt.Errorf("erro ao ler do cache: %w", err)
		}
		return value, nil
	}

	c.memoryMu.RLock()
	entry, found := c.memory[key]
	c.memoryMu.RUnlock()

	if !found || time.Now().After(entry.expiresAt) {
		return "", fmt.Errorf("chave nao encontrada: %s", key)
	}
	return entry.value, nil
}

// Set stores a value in cache with the configured TTL
func (c *CacheService) Set(ctx context.Context, key string, value string) error {
	ttl := c.config.Redis.ReportTTL

	if c.useRedis {
		if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
			return fmt.Errorf("erro ao gravar no cache: %w", err)
		}
		return nil
	}

	c.memoryMu.Lock()
	c.memory[key] = cacheEntry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
	c.memoryMu.Unlock()
	return nil
}

// Delete removes a value from cache
func (c *CacheService) Delete(ctx context.Context, key string) error {
	if c.useRedis {
		if err := c.client.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("erro ao remover do cache: %w", err)
		}
		return nil
	}

	c.memoryMu.Lock()
	delete(c.memory, key)
	c.memoryMu.Unlock()
	return nil
}

// Health returns cache service health status
func (c *CacheService) Health() map[string]interface{} {
	health := map[string]interface{}{
		"backend": "memory",
		"status":  "healthy",
	}

	if c.useRedis {
		health["backend"] = "redis"
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := c.client.Ping(ctx).Err(); err != nil {
			health["status"] = "unhealthy"
			health["error"] = err.Error()
		}
		return health
	}

	c.memoryMu.RLock()
	health["entries"] = len(c.memory)
	c.memoryMu.RUnlock()
	return health
}

// Close releases the Redis connection when present
func (c *CacheService) Close() error {
	if c.useRedis {
		return c.client.Close()
	}
	return nil
}
