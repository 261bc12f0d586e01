package redisrepo

import (
	"context"
	"errors"
	"forum-backend/internal/repo"
	"time"

	"github.com/redis/go-redis/v9"
)

const versionKeyPrefix = "cache_version:"

type cacheVersions struct {
	rdb *redis.Client
}

func NewCacheVersions(rdb *redis.Client) repo.CacheVersions {
	return &cacheVersions{rdb: rdb}
}

func (c *cacheVersions) Current(ctx context.Context, family string) (int64, error) {
	key := versionKeyPrefix + family
	if err := c.rdb.SetNX(ctx, key, 1, 0).Err(); err != nil {
		return 0, err
	}
	return c.rdb.Get(ctx, key).Int64()
}

func (c *cacheVersions) Bump(ctx context.Context, family string) (int64, error) {
	return c.rdb.Incr(ctx, versionKeyPrefix+family).Result()
}

type cache struct {
	rdb *redis.Client
}

func NewCache(rdb *redis.Client) repo.Cache {
	return &cache{rdb: rdb}
}

func (c *cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (c *cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}
