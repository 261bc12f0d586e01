package bootstrap

import (
	"fmt"
	"forum-backend/internal/usecase/service"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/gommon/log"
)

type Config struct {
	DBConnectDSN  string
	MigrationsDir string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	KafkaBrokers           []string
	KafkaTopicPartitions   int
	KafkaReplicationFactor int

	WriteQueueMode      string
	WriteStreamKey      string
	WriteStreamGroup    string
	WriteStreamConsumer string
	WriteBatchSize      int
	WriteBlock          time.Duration
	WriteClaimIdle      time.Duration
	FeedRefreshInterval time.Duration

	CacheBackend string
	CacheTTL     time.Duration
	CacheSize    int

	JWTSecret        string
	HTTPAddr         string
	MetricsAddr      string
	CORSAllowOrigins []string
}

// LoadConfig читает настройки из переменных окружения. Неверные значения заменяются значениями по умолчанию
func LoadConfig() *Config {
	return &Config{
		DBConnectDSN:  getEnv("DB_CONNECT_DSN", "user=root dbname=defaultdb sslmode=disable port=26257"),
		MigrationsDir: getEnv("MIGRATIONS_DIR", "./migrations"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getInt("REDIS_DB", 0),

		KafkaBrokers:           splitList(getEnv("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopicPartitions:   getInt("KAFKA_TOPIC_PARTITIONS", 3),
		KafkaReplicationFactor: getInt("KAFKA_REPLICATION_FACTOR", 3),

		WriteQueueMode:      strings.ToLower(getEnv("WRITE_QUEUE_MODE", "redis")),
		WriteStreamKey:      getEnv("WRITE_STREAM_KEY", "forum-write-events"),
		WriteStreamGroup:    getEnv("WRITE_STREAM_GROUP", "forum-write-workers"),
		WriteStreamConsumer: getEnv("WRITE_STREAM_CONSUMER", defaultConsumer()),
		WriteBatchSize:      getInt("WRITE_BATCH_SIZE", 200),
		WriteBlock:          getDuration("WRITE_BLOCK", 5*time.Second),
		WriteClaimIdle:      getDuration("WRITE_CLAIM_IDLE", time.Minute),
		FeedRefreshInterval: getDuration("FEED_REFRESH_INTERVAL", time.Minute),

		CacheBackend: strings.ToLower(getEnv("CACHE_BACKEND", "redis")),
		CacheTTL:     getDuration("CACHE_TTL", 5*time.Minute),
		CacheSize:    getInt("CACHE_SIZE", 1000),

		JWTSecret:        getEnv("JWT_SECRET", ""),
		HTTPAddr:         getEnv("HTTP_ADDR", "0.0.0.0:80"),
		MetricsAddr:      getEnv("METRICS_ADDR", "0.0.0.0:9100"),
		CORSAllowOrigins: splitList(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:3000")),
	}
}

// Queued сообщает, идут ли записи через лог записи
func (c *Config) Queued() bool {
	return c.WriteQueueMode == service.WriteModeRedis || c.WriteQueueMode == service.WriteModeKafka
}

// Validate проверяет сочетание режима записи и подключений. В режимах с очередью шлюз и воркер
// должны видеть одни и те же версии кеша, поэтому Redis обязателен и для kafka
func (c *Config) Validate() error {
	switch c.WriteQueueMode {
	case service.WriteModeRedis, service.WriteModeKafka:
		if c.RedisAddr == "" {
			return fmt.Errorf("%w: WRITE_QUEUE_MODE=%s", ErrRedisRequired, c.WriteQueueMode)
		}
	case service.WriteModeDirect:
	default:
		return fmt.Errorf("%w: %s", ErrUnknownWriteMode, c.WriteQueueMode)
	}
	return nil
}

func defaultConsumer() string {
	hostname, err := os.Hostname()
	if err != nil {
		return fmt.Sprintf("write-worker-%d", time.Now().Unix())
	}
	return hostname
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		log.Warnf("Неверный формат %s: %s, используется %d", key, raw, fallback)
		return fallback
	}
	return value
}

// getDuration принимает как длительность Go (5s, 1m), так и целое число секунд
func getDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	if seconds, err := strconv.Atoi(raw); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	value, err := time.ParseDuration(raw)
	if err != nil || value <= 0 {
		log.Warnf("Неверный формат %s: %s, используется %s", key, raw, fallback)
		return fallback
	}
	return value
}

func splitList(raw string) []string {
	var result []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			result = append(result, item)
		}
	}
	return result
}
