package bootstrap

import (
	"context"
	"forum-backend/internal/repo/inmemory"
	"forum-backend/internal/repo/redisrepo"
	"forum-backend/internal/usecase/service"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("WRITE_QUEUE_MODE", "")
	t.Setenv("WRITE_BLOCK", "")
	t.Setenv("CORS_ALLOW_ORIGINS", "")
	t.Setenv("KAFKA_TOPIC_PARTITIONS", "")
	t.Setenv("KAFKA_REPLICATION_FACTOR", "")

	cfg := LoadConfig()
	assert.Equal(t, service.WriteModeRedis, cfg.WriteQueueMode)
	assert.Equal(t, 3, cfg.KafkaTopicPartitions)
	assert.Equal(t, 3, cfg.KafkaReplicationFactor)
	assert.Equal(t, "forum-write-events", cfg.WriteStreamKey)
	assert.Equal(t, 5*time.Second, cfg.WriteBlock)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORSAllowOrigins)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("WRITE_QUEUE_MODE", "Redis")
	t.Setenv("WRITE_BATCH_SIZE", "50")
	t.Setenv("WRITE_BLOCK", "2")
	t.Setenv("WRITE_CLAIM_IDLE", "1500ms")
	t.Setenv("CACHE_TTL", "garbage")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("KAFKA_TOPIC_PARTITIONS", "12")
	t.Setenv("KAFKA_REPLICATION_FACTOR", "1")

	cfg := LoadConfig()
	assert.Equal(t, service.WriteModeRedis, cfg.WriteQueueMode)
	assert.Equal(t, 50, cfg.WriteBatchSize)
	assert.Equal(t, 2*time.Second, cfg.WriteBlock)
	assert.Equal(t, 1500*time.Millisecond, cfg.WriteClaimIdle)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 12, cfg.KafkaTopicPartitions)
	assert.Equal(t, 1, cfg.KafkaReplicationFactor)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{name: "direct without redis", cfg: Config{WriteQueueMode: service.WriteModeDirect}},
		{name: "redis with redis", cfg: Config{WriteQueueMode: service.WriteModeRedis, RedisAddr: "localhost:6379"}},
		{name: "kafka with redis", cfg: Config{WriteQueueMode: service.WriteModeKafka, RedisAddr: "localhost:6379"}},
		{name: "redis without redis", cfg: Config{WriteQueueMode: service.WriteModeRedis}, wantErr: ErrRedisRequired},
		{name: "kafka without redis", cfg: Config{WriteQueueMode: service.WriteModeKafka}, wantErr: ErrRedisRequired},
		{name: "unknown mode", cfg: Config{WriteQueueMode: "rabbit", RedisAddr: "localhost:6379"}, wantErr: ErrUnknownWriteMode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestOpenWriteLog(t *testing.T) {
	writeLog, err := OpenWriteLog(&Config{WriteQueueMode: service.WriteModeDirect}, nil)
	require.NoError(t, err)
	assert.Nil(t, writeLog)

	_, err = OpenWriteLog(&Config{WriteQueueMode: service.WriteModeRedis}, nil)
	assert.ErrorIs(t, err, ErrRedisRequired)
}

func TestOpenCache(t *testing.T) {
	versions, cache, err := OpenCache(&Config{CacheSize: 10}, nil)
	require.NoError(t, err)
	assert.IsType(t, &inmemory.CacheVersions{}, versions)
	assert.IsType(t, &inmemory.LRUCache{}, cache)

	server := miniredis.RunT(t)
	cfg := &Config{RedisAddr: server.Addr(), CacheSize: 10, CacheBackend: "memory"}
	rdb, err := OpenRedis(context.Background(), cfg)
	require.NoError(t, err)
	defer rdb.Close()

	versions, cache, err = OpenCache(cfg, rdb)
	require.NoError(t, err)
	assert.IsType(t, &inmemory.LRUCache{}, cache)
	assert.IsType(t, redisrepo.NewCacheVersions(rdb), versions)

	writeLog, err := OpenWriteLog(&Config{WriteQueueMode: service.WriteModeRedis, WriteStreamKey: "s", WriteStreamGroup: "g"}, rdb)
	require.NoError(t, err)
	require.NoError(t, writeLog.EnsureGroup(context.Background()))
}

func TestOpenCache_QueuedModeNeedsRedis(t *testing.T) {
	for _, mode := range []string{service.WriteModeRedis, service.WriteModeKafka} {
		_, _, err := OpenCache(&Config{WriteQueueMode: mode, CacheSize: 10}, nil)
		assert.ErrorIs(t, err, ErrRedisRequired, mode)
	}
}

func TestOpenCache_VersionsSharedBetweenProcesses(t *testing.T) {
	server := miniredis.RunT(t)
	ctx := context.Background()
	cfg := &Config{WriteQueueMode: service.WriteModeKafka, RedisAddr: server.Addr(), CacheSize: 10}

	// шлюз и воркер открывают кеш независимо, но видят одни версии
	gatewayRedis, err := OpenRedis(ctx, cfg)
	require.NoError(t, err)
	defer gatewayRedis.Close()
	workerRedis, err := OpenRedis(ctx, cfg)
	require.NoError(t, err)
	defer workerRedis.Close()

	gatewayVersions, _, err := OpenCache(cfg, gatewayRedis)
	require.NoError(t, err)
	workerVersions, _, err := OpenCache(cfg, workerRedis)
	require.NoError(t, err)

	gateway := service.NewCacheVersionRegistry(gatewayVersions)
	worker := service.NewCacheVersionRegistry(workerVersions)
	family := service.ThreadFamily(7)

	before, err := gateway.Current(ctx, family)
	require.NoError(t, err)
	_, err = worker.Bump(ctx, family)
	require.NoError(t, err)
	after, err := gateway.Current(ctx, family)
	require.NoError(t, err)
	assert.Equal(t, before+1, after)
}

func TestOpenWriteLog_Kafka(t *testing.T) {
	writeLog, err := OpenWriteLog(&Config{
		WriteQueueMode:   service.WriteModeKafka,
		KafkaBrokers:     []string{"localhost:9092"},
		WriteStreamKey:   "forum-write-events",
		WriteStreamGroup: "forum-write-workers",
	}, nil)
	require.NoError(t, err)
	require.NotNil(t, writeLog)
	require.NoError(t, writeLog.Close())

	_, err = OpenWriteLog(&Config{WriteQueueMode: service.WriteModeKafka, WriteStreamKey: "t", WriteStreamGroup: "g"}, nil)
	assert.Error(t, err)
}
