package exportanalysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// FrontCache is a read-through layer in front of the durable cache column.
// Entries are keyed by analysis version (AnalyzedAt in microseconds), so a
// document built for a replaced version is never served for the new one.
// Misses and failures fall back to the repository.
type FrontCache interface {
	Get(ctx context.Context, analysisID string, version int64, language string) (json.RawMessage, bool, error)
	Set(ctx context.Context, analysisID string, version int64, language string, payload json.RawMessage) error
	Invalidate(ctx context.Context, analysisID string, version int64) error
}

// NopFrontCache never hits.
type NopFrontCache struct{}

func (NopFrontCache) Get(context.Context, string, int64, string) (json.RawMessage, bool, error) {
	return nil, false, nil
}

func (NopFrontCache) Set(context.Context, string, int64, string, json.RawMessage) error { return nil }

func (NopFrontCache) Invalidate(context.Context, string, int64) error { return nil }

// cacheVersion identifies the analysis version a cached document belongs to.
func cacheVersion(a ExportAnalysis) int64 {
	return a.AnalyzedAt.UnixMicro()
}

// RedisRecommendationCache keeps recommendation documents in Redis under
// regrec:{analysisID}:{version}:{language}.
type RedisRecommendationCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisRecommendationCache parses url (redis://...) and builds a cache with entries expiring after ttl.
func NewRedisRecommendationCache(url string, ttl time.Duration) (*RedisRecommendationCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &RedisRecommendationCache{client: redis.NewClient(opts), ttl: ttl}, nil
}

func recommendationKey(analysisID string, version int64, language string) string {
	return fmt.Sprintf("regrec:%s:%d:%s", analysisID, version, language)
}

// Ping checks connectivity.
func (c *RedisRecommendationCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisRecommendationCache) Get(ctx context.Context, analysisID string, version int64, language string) (json.RawMessage, bool, error) {
	raw, err := c.client.Get(ctx, recommendationKey(analysisID, version, language)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	return json.RawMessage(raw), true, nil
}

func (c *RedisRecommendationCache) Set(ctx context.Context, analysisID string, version int64, language string, payload json.RawMessage) error {
	if err := c.client.Set(ctx, recommendationKey(analysisID, version, language), []byte(payload), c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Invalidate drops every language of one analysis version.
func (c *RedisRecommendationCache) Invalidate(ctx context.Context, analysisID string, version int64) error {
	keys := make([]string, 0, len(Languages))
	for _, lang := range Languages {
		keys = append(keys, recommendationKey(analysisID, version, lang))
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Close releases the client.
func (c *RedisRecommendationCache) Close() error {
	return c.client.Close()
}
