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
	delivery "forum-backend/internal/delivery/http"
	"forum-backend/internal/delivery/http/utils"
	"forum-backend/internal/repo"
	"forum-backend/internal/repo/cockroach"
	"forum-backend/internal/usecase/service"
	"forum-backend/pkg/connector"
	"forum-backend/pkg/goosehelper"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Info(".env файл не обнаружен")
	}

	// run возвращает ошибку вместо выхода, чтобы отложенные Close успели выполниться
	if err := run(); err != nil {
		log.Errorf("Шлюз завершился с ошибкой: %v", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := bootstrap.LoadConfig()
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET переменная окружения обязательна")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// cockroach
	DBConn, err := connector.GetCockroachConnector(ctx, cfg.DBConnectDSN)
	if err != nil {
		return fmt.Errorf("ошибка при подключении к базе данных: %w", err)
	}
	defer func() {
		if err := DBConn.Close(); err != nil {
			log.Errorf("Ошибка при закрытии соединения с базой данных: %v", err)
		}
	}()
	if err := goosehelper.MigrateUp(DBConn.DB, cfg.MigrationsDir); err != nil {
		return fmt.Errorf("ошибка миграций: %w", err)
	}

	// redis
	rdb, err := bootstrap.OpenRedis(ctx, cfg)
	if err != nil {
		return fmt.Errorf("ошибка при подключении к Redis: %w", err)
	}
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	}

	// Лог записи. Если он недоступен, шлюз все равно стартует и отвечает 503 на запросы записи
	var writeLog repo.WriteLog
	if wl, err := bootstrap.OpenWriteLog(cfg, rdb); err != nil {
		log.Errorf("Лог записи недоступен: %v", err)
	} else if wl != nil {
		writeLog = wl
		defer func() { _ = writeLog.Close() }()
	}

	versionStore, cache, err := bootstrap.OpenCache(cfg, rdb)
	if err != nil {
		return fmt.Errorf("ошибка при создании кеша: %w", err)
	}

	// запускаем сервисы репозиториев (подключение к базе данных)
	writeStore := cockroach.NewWriteStore(DBConn)
	readStore := cockroach.NewReadStore(DBConn)
	notificationStore := cockroach.NewNotificationStore(DBConn)

	// запускаем сервисы usecase (бизнес-логика)
	versions := service.NewCacheVersionRegistry(versionStore)
	ancestors := service.NewAncestorIndex(writeStore)
	writeQueue := service.NewWriteQueue(cfg.WriteQueueMode, writeLog)
	commentUseCase := service.NewComment(writeStore, readStore, ancestors, versions, cache, cfg.CacheTTL)
	voteUseCase := service.NewVote(writeStore, ancestors, versions)
	feedUseCase := service.NewFeed(readStore, versions, cache, cfg.CacheTTL)
	notificationUseCase := service.NewNotification(notificationStore)
	log.Infof("Режим записи: %s, очередь включена: %t", cfg.WriteQueueMode, writeQueue.Enabled())

	// запускаем сервисы delivery (обработка запросов)
	authManager := utils.NewAuthManager([]byte(cfg.JWTSecret), time.Hour*24*365)
	commentDelivery := delivery.NewComment(commentUseCase, voteUseCase, writeQueue, authManager)
	postDelivery := delivery.NewPost(authManager, feedUseCase, voteUseCase, writeQueue)
	ancestorDelivery := delivery.NewAncestor(ancestors, authManager)
	notificationDelivery := delivery.NewNotification(notificationUseCase, authManager)

	// REST API
	echoServer := echo.New()
	echoServer.HideBanner = true

	// Не более 1 МБ
	echoServer.Use(middleware.BodyLimit("1M"))
	// gzip на прием
	echoServer.Use(middleware.Decompress())
	// gzip на отдачу
	echoServer.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
	}))
	// request id
	echoServer.Use(middleware.RequestID())
	echoServer.Use(middleware.Recover())

	// CORS
	echoServer.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.CORSAllowOrigins,
		AllowMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderAccept,
			echo.HeaderContentType,
			echo.HeaderAuthorization,
			echo.HeaderCookie,
		},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Endpoints
	echoServer.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	api := echoServer.Group("/api")
	// comments и голоса за комментарии
	commentDelivery.Configure(api)
	// лента и голоса за посты
	posts := api.Group("/posts")
	postDelivery.Configure(posts)
	// обслуживание индекса предков
	ancestorsGroup := api.Group("/comments/ancestors")
	ancestorDelivery.Configure(ancestorsGroup)
	// notifications
	notifications := api.Group("/notifications")
	notificationDelivery.Configure(notifications)

	serverErr := make(chan error, 1)
	go func(server *echo.Echo) {
		if err := server.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}(echoServer)

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		return fmt.Errorf("сервер завершил свою работу по причине: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		time.Duration(10)*time.Second,
	)
	defer cancel()
	if err := echoServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("во время выключения сервера возникла ошибка: %w", err)
	}
	return nil
}
