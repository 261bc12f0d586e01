package repo

import (
	"context"
	"errors"
	"forum-backend/internal/entity"
	"time"
)

// WriteLog надежный упорядоченный лог отложенных записей с группой потребителей.
// Каждая запись выдается одному потребителю группы и выдается повторно, пока не подтверждена
type WriteLog interface {
	// EnsureGroup создает группу потребителей, если ее еще нет
	EnsureGroup(ctx context.Context) error
	// Append добавляет запись в конец лога и возвращает ее ID
	Append(ctx context.Context, fields map[string]string) (string, error)
	// Fetch ждет не дольше block и возвращает до count записей для потребителя consumer
	Fetch(ctx context.Context, consumer string, count int, block time.Duration) ([]*entity.WriteLogEntry, error)
	// Ack подтверждает обработку записей
	Ack(ctx context.Context, ids ...string) error
	// Release возвращает неподтвержденные записи в лог для повторной выдачи
	Release(ctx context.Context, consumer string, ids ...string) error
	Close() error
}

var (
	ErrWriteLogClosed = errors.New("write log is closed")
)
