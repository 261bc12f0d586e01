package inmemory

import (
	"context"
	"forum-backend/internal/repo"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type CacheVersions struct {
	mu       sync.Mutex
	versions map[string]int64
}

func NewCacheVersions() *CacheVersions {
	return &CacheVersions{versions: make(map[string]int64)}
}

func (c *CacheVersions) Current(ctx context.Context, family string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	version, ok := c.versions[family]
	if !ok {
		version = 1
		c.versions[family] = version
	}
	return version, nil
}

func (c *CacheVersions) Bump(ctx context.Context, family string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	// как INCR: отсутствующий счетчик считается нулем
	c.versions[family]++
	return c.versions[family], nil
}

type cacheItem struct {
	value     []byte
	expiresAt time.Time
}

// LRUCache локальный кеш ограниченного размера со сроком жизни записей
type LRUCache struct {
	lruCache *lru.Cache[string, cacheItem]
}

func NewLRUCache(size int) (repo.Cache, error) {
	l, err := lru.New[string, cacheItem](size)
	if err != nil {
		return nil, err
	}
	return &LRUCache{lruCache: l}, nil
}

func (c *LRUCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	item, ok := c.lruCache.Get(key)
	if !ok {
		return nil, false, nil
	}
	if time.Now().After(item.expiresAt) {
		c.lruCache.Remove(key)
		return nil, false, nil
	}
	return item.value, true, nil
}

func (c *LRUCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.lruCache.Add(key, cacheItem{value: value, expiresAt: time.Now().Add(ttl)})
	return nil
}
