package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"forum-backend/internal/repo"
	"forum-backend/internal/repo/inmemory"
	"forum-backend/internal/repo/kafka"
	"forum-backend/internal/repo/redisrepo"
	"forum-backend/internal/usecase/service"
	"forum-backend/pkg/connector"

	"github.com/labstack/gommon/log"
	"github.com/redis/go-redis/v9"
)

var (
	ErrRedisRequired    = errors.New("REDIS_ADDR is required for this mode")
	ErrUnknownWriteMode = errors.New("unknown WRITE_QUEUE_MODE")
)

// OpenRedis подключается к Redis, если задан адрес. Без адреса возвращает nil
func OpenRedis(ctx context.Context, cfg *Config) (*redis.Client, error) {
	if cfg.RedisAddr == "" {
		return nil, nil
	}
	return connector.GetRedisConnector(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
}

// OpenWriteLog открывает лог записи для режима WRITE_QUEUE_MODE. В режиме direct возвращает nil
func OpenWriteLog(cfg *Config, rdb *redis.Client) (repo.WriteLog, error) {
	switch cfg.WriteQueueMode {
	case service.WriteModeRedis:
		if rdb == nil {
			return nil, ErrRedisRequired
		}
		return redisrepo.NewStreamWriteLog(rdb, cfg.WriteStreamKey, cfg.WriteStreamGroup, cfg.WriteClaimIdle), nil
	case service.WriteModeKafka:
		writeLog, err := kafka.NewWriteLogKafkaRepository(kafka.Config{
			Brokers:           cfg.KafkaBrokers,
			Topic:             cfg.WriteStreamKey,
			Group:             cfg.WriteStreamGroup,
			Partitions:        cfg.KafkaTopicPartitions,
			ReplicationFactor: cfg.KafkaReplicationFactor,
		})
		if err != nil {
			return nil, err
		}
		return writeLog, nil
	default:
		return nil, nil
	}
}

// OpenCache выбирает хранилище версий и кеш. Версии общие для шлюза и воркеров, поэтому при
// наличии Redis они всегда хранятся в нем. Версии в памяти процесса допустимы только в режиме direct:
// иначе повышения версий воркером не дойдут до шлюза
func OpenCache(cfg *Config, rdb *redis.Client) (repo.CacheVersions, repo.Cache, error) {
	if rdb == nil {
		if cfg.Queued() {
			return nil, nil, fmt.Errorf("%w: версии кеша должны быть общими для шлюза и воркера", ErrRedisRequired)
		}
		log.Warn("Redis не настроен: версии кеша и кеш хранятся в памяти процесса")
		cache, err := inmemory.NewLRUCache(cfg.CacheSize)
		if err != nil {
			return nil, nil, err
		}
		return inmemory.NewCacheVersions(), cache, nil
	}

	versions := redisrepo.NewCacheVersions(rdb)
	if cfg.CacheBackend == "memory" {
		cache, err := inmemory.NewLRUCache(cfg.CacheSize)
		if err != nil {
			return nil, nil, err
		}
		return versions, cache, nil
	}
	return versions, redisrepo.NewCache(rdb), nil
}
