package narrative

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"

	"github.com/clinnote-engine/internal/domain"
)

// PromptCache stores provider responses keyed by prompt content hash.
// Get is a pure lookup and Set an idempotent upsert, so both are safe
// under concurrent pipeline runs.
type PromptCache interface {
	Get(ctx context.Context, key string) (*domain.Narrative, bool, error)
	Set(ctx context.Context, key string, narrative *domain.Narrative) error
	Close() error
}

// CacheKey hashes a prompt into its cache key.
func CacheKey(prompt *Prompt) string {
	hash := sha256.Sum256([]byte(prompt.Style + "\x00" + prompt.Text))
	return fmt.Sprintf("narrative:%x", hash[:16])
}

// MemoryCache is a bounded in-process cache with TTL eviction.
type MemoryCache struct {
	lru *lru.LRU[string, *domain.Narrative]
}

// NewMemoryCache creates an in-memory prompt cache.
func NewMemoryCache(maxEntries int, ttl time.Duration) *MemoryCache {
	if maxEntries <= 0 {
		maxEntries = 256
	}
	return &MemoryCache{lru: lru.NewLRU[string, *domain.Narrative](maxEntries, nil, ttl)}
}

// Get retrieves a cached narrative.
func (c *MemoryCache) Get(_ context.Context, key string) (*domain.Narrative, bool, error) {
	narrative, ok := c.lru.Get(key)
	return narrative, ok, nil
}

// Set stores a narrative. Re-setting an existing key is a no-op upsert.
func (c *MemoryCache) Set(_ context.Context, key string, narrative *domain.Narrative) error {
	c.lru.Add(key, narrative)
	return nil
}

// Close releases nothing; the cache is in-process.
func (c *MemoryCache) Close() error {
	return nil
}

// cachedNarrative is the Redis JSON envelope with expiry metadata.
type cachedNarrative struct {
	Narrative *domain.Narrative `json:"narrative"`
	CachedAt  time.Time         `json:"cached_at"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// RedisCache stores narratives in Redis so concurrent workers share one
// cache across processes.
type RedisCache struct {
	redis      *redis.Client
	defaultTTL time.Duration
}

// NewRedisCache creates a Redis-backed prompt cache from the cache
// configuration and verifies connectivity.
func NewRedisCache(config domain.CacheConfig) (*RedisCache, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}
	if config.PoolTimeout > 0 {
		opts.PoolTimeout = config.PoolTimeout
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{redis: client, defaultTTL: config.DefaultTTL}, nil
}

// Get retrieves a cached narrative, dropping corrupted or expired entries.
func (c *RedisCache) Get(ctx context.Context, key string) (*domain.Narrative, bool, error) {
	val, err := c.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get narrative cache: %w", err)
	}

	var cached cachedNarrative
	if err := json.Unmarshal([]byte(val), &cached); err != nil {
		c.redis.Del(ctx, key)
		return nil, false, nil
	}
	if time.Now().After(cached.ExpiresAt) {
		c.redis.Del(ctx, key)
		return nil, false, nil
	}

	return cached.Narrative, true, nil
}

// Set stores a narrative with the default TTL.
func (c *RedisCache) Set(ctx context.Context, key string, narrative *domain.Narrative) error {
	ttl := c.defaultTTL
	if ttl <= 0 {
		ttl = time.Hour
	}

	cached := cachedNarrative{
		Narrative: narrative,
		CachedAt:  time.Now(),
		ExpiresAt: time.Now().Add(ttl),
	}
	data, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("failed to marshal narrative cache entry: %w", err)
	}

	return c.redis.Set(ctx, key, data, ttl).Err()
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.redis.Close()
}
