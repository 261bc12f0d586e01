package repo

import (
	"context"
	"time"
)

// CacheVersions счетчики версий семейств кеша
type CacheVersions interface {
	// Current возвращает текущую версию семейства, создавая ее со значением 1, если ее нет
	Current(ctx context.Context, family string) (int64, error)
	// Bump атомарно увеличивает версию семейства и возвращает новое значение
	Bump(ctx context.Context, family string) (int64, error)
}

type Cache interface {
	// Get возвращает значение по ключу. ok = false, если ключа нет или срок жизни истек
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	// Set сохраняет значение на ttl
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
