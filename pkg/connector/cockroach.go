package connector

import (
	"context"
	"forum-backend/pkg/retry"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

func GetCockroachConnector(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", dsn) // cockroach работает с драйвером postgres
	if err != nil {
		return nil, err
	}
	if err = retry.Retry(ctx, db.PingContext); err != nil {
		_ = db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(0)
	return db, nil
}
