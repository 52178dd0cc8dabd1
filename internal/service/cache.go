package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"honeymatch/internal/logger"
	"honeymatch/internal/metrics"
)

const embeddingCachePrefix = "honeymatch:embedding:"

// EmbeddingCache stores query embeddings by key. Get returns nil, nil on a miss.
type EmbeddingCache interface {
	Get(ctx context.Context, key string) ([]float32, error)
	Set(ctx context.Context, key string, vec []float32) error
}

// RedisEmbeddingCache keeps embeddings in Redis with a TTL
type RedisEmbeddingCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisEmbeddingCache wraps an existing Redis client
func NewRedisEmbeddingCache(client *redis.Client, ttl time.Duration) *RedisEmbeddingCache {
	return &RedisEmbeddingCache{client: client, ttl: ttl}
}

// NewRedisClient connects to the Redis instance at url and checks it responds
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 500 * time.Millisecond
	opts.WriteTimeout = 500 * time.Millisecond

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// Get implements EmbeddingCache
func (c *RedisEmbeddingCache) Get(ctx context.Context, key string) ([]float32, error) {
	raw, err := c.client.Get(ctx, embeddingCachePrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var vec []float32
	if err := json.Unmarshal(raw, &vec); err != nil {
		return nil, fmt.Errorf("corrupt cached embedding: %w", err)
	}
	return vec, nil
}

// Set implements EmbeddingCache
func (c *RedisEmbeddingCache) Set(ctx context.Context, key string, vec []float32) error {
	raw, err := json.Marshal(vec)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, embeddingCachePrefix+key, raw, c.ttl).Err()
}

// CachedEmbedder serves repeated query texts from an EmbeddingCache.
// Cache failures are logged and never fail the request.
type CachedEmbedder struct {
	next       Embedder
	cache      EmbeddingCache
	dimensions int
	logger     *zap.Logger
}

// NewCachedEmbedder wraps next with cache lookups. dimensions is the
// configured output size and is part of every key.
func NewCachedEmbedder(next Embedder, cache EmbeddingCache, dimensions int, l *zap.Logger) *CachedEmbedder {
	return &CachedEmbedder{next: next, cache: cache, dimensions: dimensions, logger: logger.OrNop(l)}
}

// Name implements Embedder
func (e *CachedEmbedder) Name() string {
	return e.next.Name()
}

// Close releases the wrapped embedder
func (e *CachedEmbedder) Close() error {
	return closeNext(e.next)
}

// Embed implements Embedder
func (e *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := CacheKey(e.next.Name(), e.dimensions, text)

	vec, err := e.cache.Get(ctx, key)
	switch {
	case err != nil:
		metrics.EmbeddingCacheTotal.WithLabelValues("error").Inc()
		e.logger.Warn("embedding cache read failed", zap.Error(err))
	case len(vec) > 0:
		metrics.EmbeddingCacheTotal.WithLabelValues("hit").Inc()
		return vec, nil
	default:
		metrics.EmbeddingCacheTotal.WithLabelValues("miss").Inc()
	}

	vec, err = e.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if err := e.cache.Set(ctx, key, vec); err != nil {
		e.logger.Warn("embedding cache write failed", zap.Error(err))
	}
	return vec, nil
}

// CacheKey derives a cache key from the embedder identity, the requested
// dimensions and the whitespace-normalized text.
func CacheKey(embedder string, dimensions int, text string) string {
	normalized := strings.Join(strings.Fields(text), " ")
	sum := sha256.Sum256([]byte(normalized))
	return embedder + ":" + strconv.Itoa(dimensions) + ":" + hex.EncodeToString(sum[:])
}
