package usecase

import (
	"context"
	"errors"
	"forum-backend/internal/entity"
)

type WriteQueue interface {
	// Enabled сообщает, уходят ли записи в очередь. Если нет, запросы применяются синхронно
	Enabled() bool
	// Enqueue присваивает событию новый request_id, добавляет его в лог и сразу возвращает request_id.
	// Мутация применится позже воркером
	Enqueue(ctx context.Context, event *entity.WriteEvent) (string, error)
}

var (
	ErrQueueDisabled    = errors.New("write queue is disabled")
	ErrQueueUnavailable = errors.New("write queue is unavailable")
)
