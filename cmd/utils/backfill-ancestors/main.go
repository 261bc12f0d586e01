package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"forum-backend/internal/bootstrap"
	"forum-backend/internal/repo/cockroach"
	"forum-backend/internal/usecase/service"
	"forum-backend/pkg/connector"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	os.Exit(run())
}

// run возвращает код выхода: 2 для неверных аргументов, 1 если хотя бы один пост не перестроен
func run() int {
	dsn := flag.String("dsn", "", "строка подключения к базе (по умолчанию DB_CONNECT_DSN)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Использование: %s [-dsn DSN] POST_ID [POST_ID...]\n", os.Args[0])
		fmt.Fprintln(os.Stderr, "Перестраивает ребра предков всех комментариев указанных постов")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		return 2
	}

	postIDs := make([]int, 0, flag.NArg())
	for _, arg := range flag.Args() {
		postID, err := strconv.Atoi(arg)
		if err != nil || postID <= 0 {
			fmt.Fprintf(os.Stderr, "Неверный ID поста: %s\n", arg)
			return 2
		}
		postIDs = append(postIDs, postID)
	}

	cfg := bootstrap.LoadConfig()
	if *dsn != "" {
		cfg.DBConnectDSN = *dsn
	}

	ctx := context.Background()
	dbConn, err := connector.GetCockroachConnector(ctx, cfg.DBConnectDSN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка при подключении к базе данных: %v\n", err)
		return 1
	}
	defer func() { _ = dbConn.Close() }()

	ancestors := service.NewAncestorIndex(cockroach.NewWriteStore(dbConn))
	code := 0
	for _, postID := range postIDs {
		result, err := ancestors.Backfill(ctx, postID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Пост %d: %v\n", postID, err)
			code = 1
			continue
		}
		fmt.Printf("Пост %d: комментариев %d, ребер %d\n", result.PostID, result.Comments, result.Edges)
	}
	return code
}
