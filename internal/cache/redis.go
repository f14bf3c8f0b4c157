package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// ResultCache caches corrected text in Redis. Corrections are pure
// functions of (dataset version, tone, mode, text), so entries never need
// invalidation; a new dataset version simply produces new keys.
type ResultCache struct {
	client *redis.Client
	config *Config
	logger *zap.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

// NewResultCache connects to Redis and verifies the connection
func NewResultCache(config *Config, logger *zap.Logger) (*ResultCache, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.PoolSize = config.MaxConnections
	opts.MinIdleConns = config.MinIdleConns

	cache := &ResultCache{
		client: redis.NewClient(opts),
		config: config,
		logger: logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := cache.client.Ping(ctx).Err(); err != nil {
		cache.client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Result cache initialized",
		zap.String("redis_url", maskRedisURL(config.RedisURL)),
		zap.Int("max_connections", config.MaxConnections),
		zap.Duration("default_ttl", config.DefaultTTL))

	return cache, nil
}

// Key builds the cache key for one correction
func Key(prefix, datasetVersion, tone, mode, text string) string {
	hasher := sha256.New()
	for _, part := range []string{datasetVersion, tone, mode, text} {
		hasher.Write([]byte(strconv.Itoa(len(part))))
		hasher.Write([]byte{':'})
		hasher.Write([]byte(part))
	}
	hash := hex.EncodeToString(hasher.Sum(nil))
	return fmt.Sprintf("%s:fix:%s", prefix, hash[:32])
}

// Get returns the cached correction, if any. Redis failures count as misses.
func (c *ResultCache) Get(ctx context.Context, datasetVersion, tone, mode, text string) (string, bool) {
	key := Key(c.config.KeyPrefix, datasetVersion, tone, mode, text)

	data, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		c.misses.Add(1)
		return "", false
	} else if err != nil {
		c.misses.Add(1)
		c.logger.Warn("Cache lookup failed", zap.Error(err))
		return "", false
	}

	var cached CachedResult
	if err := json.Unmarshal([]byte(data), &cached); err != nil {
		c.misses.Add(1)
		c.logger.Warn("Failed to unmarshal cached result", zap.Error(err))
		c.client.Del(ctx, key)
		return "", false
	}

	c.hits.Add(1)
	c.logger.Debug("Cache hit", zap.String("key", key))
	return cached.Corrected, true
}

// Set stores a correction with the configured TTL
func (c *ResultCache) Set(ctx context.Context, datasetVersion, tone, mode, text, corrected string) error {
	key := Key(c.config.KeyPrefix, datasetVersion, tone, mode, text)

	data, err := json.Marshal(CachedResult{
		Corrected:      corrected,
		DatasetVersion: datasetVersion,
		CachedAt:       time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal result for caching: %w", err)
	}

	if err := c.client.Set(ctx, key, data, c.config.DefaultTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache result: %w", err)
	}

	c.logger.Debug("Result cached", zap.String("key", key))
	return nil
}

// GetStats returns cache performance statistics
func (c *ResultCache) GetStats(ctx context.Context) (*CacheStats, error) {
	info, err := c.client.Info(ctx, "memory").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get Redis info: %w", err)
	}

	stats := &CacheStats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
	}

	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total) * 100
	}

	for _, line := range strings.Split(info, "\r\n") {
		if memStr, ok := strings.CutPrefix(line, "used_memory:"); ok {
			if mem, err := strconv.ParseInt(memStr, 10, 64); err == nil {
				stats.MemoryUsage = mem
			}
		}
	}

	if keys, err := c.client.DBSize(ctx).Result(); err == nil {
		stats.TotalKeys = keys
	}

	return stats, nil
}

// Clear removes every cached result under the key prefix
func (c *ResultCache) Clear(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, c.config.KeyPrefix+":fix:*", 0).Iterator()
	var keys []string

	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cache keys: %w", err)
	}

	const batchSize = 100
	for i := 0; i < len(keys); i += batchSize {
		end := min(i+batchSize, len(keys))
		if err := c.client.Del(ctx, keys[i:end]...).Err(); err != nil {
			return fmt.Errorf("failed to delete cache keys: %w", err)
		}
	}

	c.logger.Info("Cache cleared", zap.Int("deleted_keys", len(keys)))
	return nil
}

// Close closes the Redis connection
func (c *ResultCache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// maskRedisURL masks the password in a Redis URL for logging
func maskRedisURL(url string) string {
	at := strings.LastIndex(url, "@")
	if at < 0 {
		return url
	}
	credStart := 0
	if i := strings.Index(url[:at], "://"); i >= 0 {
		credStart = i + 3
	}
	colon := strings.Index(url[credStart:at], ":")
	if colon < 0 {
		return url
	}
	return url[:credStart+colon+1] + "***" + url[at:]
}
