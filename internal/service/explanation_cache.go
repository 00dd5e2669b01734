package service

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/pgx-risk-server/internal/domain"
)

// ExplanationCacheConfig configures the two cache tiers. An empty RedisURL
// runs the cache memory-only, which is the default deployment shape.
type ExplanationCacheConfig struct {
	MemorySize int           `json:"memory_size"`
	MemoryTTL  time.Duration `json:"memory_ttl"`
	RedisURL   string        `json:"redis_url"`
	RedisTTL   time.Duration `json:"redis_ttl"`
}

// CacheStats tracks explanation cache effectiveness.
type CacheStats struct {
	MemoryHits    int64     `json:"memory_hits"`
	MemoryMisses  int64     `json:"memory_misses"`
	RedisHits     int64     `json:"redis_hits"`
	RedisMisses   int64     `json:"redis_misses"`
	Stores        int64     `json:"stores"`
	TotalRequests int64     `json:"total_requests"`
	ErrorCount    int64     `json:"error_count"`
	LastReset     time.Time `json:"last_reset"`
}

// ExplanationKey identifies one cacheable explanation. Two verdicts with the
// same key always carry the same deterministic content, so the narrative can
// be shared across patients.
type ExplanationKey struct {
	Gene      domain.Gene
	Diplotype string
	Phenotype domain.Phenotype
	Drug      string
	RiskLabel domain.RiskLabel
}

// String renders the hashed storage key.
func (k ExplanationKey) String() string {
	data := fmt.Sprintf("%s:%s:%s:%s:%s", k.Gene, k.Diplotype, k.Phenotype, k.Drug, k.RiskLabel)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("explanation:bundle:%x", hash[:8])
}

// cachedExplanation is the Redis storage envelope.
type cachedExplanation struct {
	Bundle    domain.ExplanationBundle `json:"bundle"`
	CachedAt  time.Time                `json:"cached_at"`
	ExpiresAt time.Time                `json:"expires_at"`
}

// memoryEntry is the in-process tier entry.
type memoryEntry struct {
	bundle domain.ExplanationBundle
	expiry time.Time
}

func (e memoryEntry) isExpired() bool {
	return time.Now().After(e.expiry)
}

// ExplanationCache is a two-tier cache for provider-generated explanation
// bundles: an in-process LRU in front of an optional shared Redis tier.
// Lookups never fail the request path; every Redis problem is absorbed as a
// cache miss.
type ExplanationCache struct {
	logger  *logrus.Logger
	config  ExplanationCacheConfig
	memory  *lru.Cache
	redis   *redis.Client
	stats   CacheStats
	statsMu sync.RWMutex
}

// NewExplanationCache creates the cache and, when a Redis URL is configured,
// verifies the connection before serving.
func NewExplanationCache(logger *logrus.Logger, config ExplanationCacheConfig) (*ExplanationCache, error) {
	if config.MemorySize <= 0 {
		config.MemorySize = 1000
	}
	if config.MemoryTTL <= 0 {
		config.MemoryTTL = 15 * time.Minute
	}
	if config.RedisTTL <= 0 {
		config.RedisTTL = 24 * time.Hour
	}

	memory, err := lru.New(config.MemorySize)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}

	cache := &ExplanationCache{
		logger: logger,
		config: config,
		memory: memory,
		stats:  CacheStats{LastReset: time.Now()},
	}

	if config.RedisURL != "" {
		opts, err := redis.ParseURL(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		client := redis.NewClient(opts)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		cache.redis = client
	}

	return cache, nil
}

// Get returns the cached bundle for the key. Memory is consulted first;
// a Redis hit is promoted into memory.
func (c *ExplanationCache) Get(ctx context.Context, key ExplanationKey) (domain.ExplanationBundle, bool) {
	c.incrementStat("total")
	storageKey := key.String()

	if value, ok := c.memory.Get(storageKey); ok {
		entry := value.(memoryEntry)
		if !entry.isExpired() {
			c.incrementStat("memory_hit")
			return entry.bundle, true
		}
		c.memory.Remove(storageKey)
	}
	c.incrementStat("memory_miss")

	if c.redis == nil {
		return domain.ExplanationBundle{}, false
	}

	val, err := c.redis.Get(ctx, storageKey).Result()
	if err == redis.Nil {
		c.incrementStat("redis_miss")
		return domain.ExplanationBundle{}, false
	}
	if err != nil {
		c.incrementStat("error")
		c.logger.WithError(err).Warn("Redis lookup failed, treating as cache miss")
		return domain.ExplanationBundle{}, false
	}

	var cached cachedExplanation
	if err := json.Unmarshal([]byte(val), &cached); err != nil {
		// Remove corrupted cache entry
		c.redis.Del(ctx, storageKey)
		c.incrementStat("redis_miss")
		return domain.ExplanationBundle{}, false
	}
	if time.Now().After(cached.ExpiresAt) {
		c.redis.Del(ctx, storageKey)
		c.incrementStat("redis_miss")
		return domain.ExplanationBundle{}, false
	}

	c.incrementStat("redis_hit")
	c.memory.Add(storageKey, memoryEntry{
		bundle: cached.Bundle,
		expiry: time.Now().Add(c.config.MemoryTTL),
	})
	return cached.Bundle, true
}

// Set stores the bundle in both tiers. Redis write failures are logged and
// swallowed; the memory tier alone keeps the cache useful.
func (c *ExplanationCache) Set(ctx context.Context, key ExplanationKey, bundle domain.ExplanationBundle) {
	storageKey := key.String()
	c.memory.Add(storageKey, memoryEntry{
		bundle: bundle,
		expiry: time.Now().Add(c.config.MemoryTTL),
	})
	c.incrementStat("store")

	if c.redis == nil {
		return
	}

	cached := cachedExplanation{
		Bundle:    bundle,
		CachedAt:  time.Now(),
		ExpiresAt: time.Now().Add(c.config.RedisTTL),
	}
	data, err := json.Marshal(cached)
	if err != nil {
		c.incrementStat("error")
		return
	}
	if err := c.redis.Set(ctx, storageKey, data, c.config.RedisTTL).Err(); err != nil {
		c.incrementStat("error")
		c.logger.WithError(err).Warn("Redis store failed, entry kept in memory only")
	}
}

// Stats returns a snapshot of the cache counters.
func (c *ExplanationCache) Stats() CacheStats {
	c.statsMu.RLock()
	defer c.statsMu.RUnlock()
	return c.stats
}

// ResetStats zeroes the counters.
func (c *ExplanationCache) ResetStats() {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	c.stats = CacheStats{LastReset: time.Now()}
}

// Ping reports whether the Redis tier is reachable. A memory-only cache is
// always healthy.
func (c *ExplanationCache) Ping(ctx context.Context) error {
	if c.redis == nil {
		return nil
	}
	return c.redis.Ping(ctx).Err()
}

// Close releases the Redis connection.
func (c *ExplanationCache) Close() error {
	if c.redis == nil {
		return nil
	}
	return c.redis.Close()
}

func (c *ExplanationCache) incrementStat(name string) {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()

	switch name {
	case "total":
		c.stats.TotalRequests++
	case "memory_hit":
		c.stats.MemoryHits++
	case "memory_miss":
		c.stats.MemoryMisses++
	case "redis_hit":
		c.stats.RedisHits++
	case "redis_miss":
		c.stats.RedisMisses++
	case "store":
		c.stats.Stores++
	case "error":
		c.stats.ErrorCount++
	}
}
