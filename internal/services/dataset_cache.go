package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

// DatasetCache keeps the admin dataset between form loads. Misses are never errors.
type DatasetCache interface {
	Get(ctx context.Context, backofficeKey string) (*Dataset, bool)
	Set(ctx context.Context, backofficeKey string, d *Dataset)
	Delete(ctx context.Context, backofficeKey string)
}

type RedisDatasetCache struct {
	rdb *redis.Client
	ttl time.Duration
	log zerolog.Logger
}

func NewRedisDatasetCache(rdb *redis.Client, ttl time.Duration, log zerolog.Logger) *RedisDatasetCache {
	return &RedisDatasetCache{rdb: rdb, ttl: ttl, log: log}
}

// datasetCacheKey never stores the backoffice key itself.
func datasetCacheKey(backofficeKey string) string {
	sum := sha256.Sum256([]byte(backofficeKey))
	return "paygw:ifthenpay:dataset:" + hex.EncodeToString(sum[:8])
}

func (c *RedisDatasetCache) Get(ctx context.Context, backofficeKey string) (*Dataset, bool) {
	raw, err := c.rdb.Get(ctx, datasetCacheKey(backofficeKey)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		c.log.Warn().Err(err).Msg("dataset cache read failed")
		return nil, false
	}

	var d Dataset
	if err := json.Unmarshal(raw, &d); err != nil {
		c.log.Warn().Err(err).Msg("dataset cache entry is corrupt")
		return nil, false
	}
	return &d, true
}

func (c *RedisDatasetCache) Set(ctx context.Context, backofficeKey string, d *Dataset) {
	raw, err := json.Marshal(d)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, datasetCacheKey(backofficeKey), raw, c.ttl).Err(); err != nil {
		c.log.Warn().Err(err).Msg("dataset cache write failed")
	}
}

func (c *RedisDatasetCache) Delete(ctx context.Context, backofficeKey string) {
	if err := c.rdb.Del(ctx, datasetCacheKey(backofficeKey)).Err(); err != nil {
		c.log.Warn().Err(err).Msg("dataset cache delete failed")
	}
}
