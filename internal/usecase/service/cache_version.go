package service

import (
	"context"
	"encoding/json"
	"fmt"
	"forum-backend/internal/repo"
	"forum-backend/internal/usecase"
	"strings"
	"time"

	"github.com/labstack/gommon/log"
	"golang.org/x/sync/singleflight"
)

const (
	FeedFamily = "feed"
	// RecentCommentsFamily лента последних комментариев всех постов
	RecentCommentsFamily = "comments:recent"
)

// ThreadFamily семейство кеша дерева комментариев поста
func ThreadFamily(postID int) string {
	return fmt.Sprintf("post:%d:comments", postID)
}

// familyKind метка семейства для метрик, без идентификатора поста
func familyKind(family string) string {
	if strings.HasPrefix(family, "post:") {
		return "thread"
	}
	return family
}

type CacheVersionRegistry struct {
	versions repo.CacheVersions
}

func NewCacheVersionRegistry(versions repo.CacheVersions) usecase.CacheVersions {
	return &CacheVersionRegistry{
		versions: versions,
	}
}

func (r *CacheVersionRegistry) Current(ctx context.Context, family string) (int64, error) {
	return r.versions.Current(ctx, family)
}

func (r *CacheVersionRegistry) Bump(ctx context.Context, family string) (int64, error) {
	version, err := r.versions.Bump(ctx, family)
	if err != nil {
		return 0, err
	}
	cacheVersionBumps.WithLabelValues(familyKind(family)).Inc()
	return version, nil
}

func (r *CacheVersionRegistry) Key(ctx context.Context, family, params string) (string, error) {
	version, err := r.versions.Current(ctx, family)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%d:%s", family, version, params), nil
}

// bumpAll повышает версии семейств. Ошибки только логируются: данные уже закоммичены,
// а устаревший кеш истечет по TTL
func bumpAll(ctx context.Context, versions usecase.CacheVersions, families ...string) {
	for _, family := range families {
		if _, err := versions.Bump(ctx, family); err != nil {
			log.Errorf("Ошибка повышения версии кеша %s: %v", family, err)
		}
	}
}

// cachedReader читает через версионированный кеш. Одновременные промахи по одному ключу
// схлопываются в одну загрузку
type cachedReader struct {
	versions usecase.CacheVersions
	cache    repo.Cache
	ttl      time.Duration
	group    singleflight.Group
}

func newCachedReader(versions usecase.CacheVersions, cache repo.Cache, ttl time.Duration) *cachedReader {
	return &cachedReader{
		versions: versions,
		cache:    cache,
		ttl:      ttl,
	}
}

// readCached загрузка общая для всех ожидающих по ключу, поэтому выполняется без отмены ctx первого запроса
func readCached[T any](ctx context.Context, r *cachedReader, family, params string, load func(ctx context.Context) (T, error)) (T, error) {
	key, err := r.versions.Key(ctx, family, params)
	if err != nil {
		log.Warnf("Версия кеша %s недоступна, читаем из базы: %v", family, err)
		return load(ctx)
	}

	var value T
	if raw, ok, err := r.cache.Get(ctx, key); err != nil {
		log.Warnf("Ошибка чтения кеша %s: %v", key, err)
	} else if ok {
		if err := json.Unmarshal(raw, &value); err == nil {
			cacheRequests.WithLabelValues(familyKind(family), "hit").Inc()
			return value, nil
		}
	}
	cacheRequests.WithLabelValues(familyKind(family), "miss").Inc()

	shared := context.WithoutCancel(ctx)
	loaded, err, _ := r.group.Do(key, func() (interface{}, error) {
		value, err := load(shared)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		if err := r.cache.Set(shared, key, raw, r.ttl); err != nil {
			log.Warnf("Ошибка записи кеша %s: %v", key, err)
		}
		return value, nil
	})
	if err != nil {
		return value, err
	}
	return loaded.(T), nil
}
