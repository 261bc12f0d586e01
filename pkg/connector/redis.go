package connector

import (
	"context"
	"forum-backend/pkg/retry"
	"time"

	"github.com/redis/go-redis/v9"
)

func GetRedisConnector(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
		// XREADGROUP блокируется до WRITE_BLOCK, таймаут чтения должен быть больше
		ReadTimeout: 10 * time.Second,
	})
	err := retry.Retry(ctx, func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})
	if err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}
