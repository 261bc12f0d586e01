package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"forum-backend/internal/bootstrap"
	"forum-backend/internal/repo/cockroach"
	"forum-backend/internal/usecase/service"
	"forum-backend/pkg/connector"
	"forum-backend/pkg/goosehelper"

	"github.com/joho/godotenv"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func init() {
	// Загружаем переменные окружения
	err := godotenv.Load()
	if err != nil {
		log.Info(".env файл не обнаружен")
	}
}

func main() {
	if err := run(); err != nil {
		log.Errorf("Воркер очереди записи завершился с ошибкой: %v", err)
		os.Exit(1)
	}
	log.Info("Воркер очереди записи остановлен")
}

func run() error {
	// Настройка контекста для graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := bootstrap.LoadConfig()
	if cfg.WriteQueueMode == service.WriteModeDirect {
		return errors.New("WRITE_QUEUE_MODE=direct: очередь записи выключена, воркеру нечего читать")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	log.Infof("Запуск воркера очереди записи: потребитель %s, режим %s, пачка %d, ожидание %s",
		cfg.WriteStreamConsumer, cfg.WriteQueueMode, cfg.WriteBatchSize, cfg.WriteBlock)

	// Подключение к базе данных и миграции
	dbConn, err := connector.GetCockroachConnector(ctx, cfg.DBConnectDSN)
	if err != nil {
		return fmt.Errorf("ошибка при подключении к базе данных: %w", err)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			log.Errorf("Ошибка при закрытии соединения с базой данных: %v", err)
		}
	}()
	if err := goosehelper.MigrateUp(dbConn.DB, cfg.MigrationsDir); err != nil {
		return fmt.Errorf("ошибка миграций: %w", err)
	}

	rdb, err := bootstrap.OpenRedis(ctx, cfg)
	if err != nil {
		return fmt.Errorf("ошибка при подключении к Redis: %w", err)
	}
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	}

	writeLog, err := bootstrap.OpenWriteLog(cfg, rdb)
	if err != nil {
		return fmt.Errorf("ошибка при открытии лога записи: %w", err)
	}
	if writeLog == nil {
		return fmt.Errorf("неизвестный WRITE_QUEUE_MODE: %s", cfg.WriteQueueMode)
	}
	defer func() { _ = writeLog.Close() }()

	versionStore, _, err := bootstrap.OpenCache(cfg, rdb)
	if err != nil {
		return fmt.Errorf("ошибка при создании кеша: %w", err)
	}

	// Инициализация репозиториев и сервисов
	writeStore := cockroach.NewWriteStore(dbConn)
	ancestors := service.NewAncestorIndex(writeStore)
	versions := service.NewCacheVersionRegistry(versionStore)
	worker := service.NewWriteWorker(writeLog, writeStore, ancestors, versions, service.WriteWorkerConfig{
		Consumer:            cfg.WriteStreamConsumer,
		BatchSize:           cfg.WriteBatchSize,
		Block:               cfg.WriteBlock,
		FeedRefreshInterval: cfg.FeedRefreshInterval,
	})

	// Метрики воркера
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("Сервер метрик завершил работу: %v", err)
		}
	}()

	workerErr := worker.Start(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)
	return workerErr
}
