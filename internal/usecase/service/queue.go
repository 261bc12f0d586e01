package service

import (
	"context"
	"fmt"
	"forum-backend/internal/entity"
	"forum-backend/internal/repo"
	"forum-backend/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/gommon/log"
)

// Режимы записи
const (
	WriteModeRedis  = "redis"
	WriteModeKafka  = "kafka"
	WriteModeDirect = "direct"
)

type WriteQueue struct {
	mode     string
	writeLog repo.WriteLog
}

// NewWriteQueue writeLog может быть nil, если лог не удалось подключить: тогда Enqueue вернет ErrQueueUnavailable
func NewWriteQueue(mode string, writeLog repo.WriteLog) usecase.WriteQueue {
	return &WriteQueue{
		mode:     mode,
		writeLog: writeLog,
	}
}

func (q *WriteQueue) Enabled() bool {
	return q.mode == WriteModeRedis || q.mode == WriteModeKafka
}

func (q *WriteQueue) Enqueue(ctx context.Context, event *entity.WriteEvent) (string, error) {
	if !q.Enabled() {
		return "", usecase.ErrQueueDisabled
	}
	if q.writeLog == nil {
		enqueueErrors.Inc()
		return "", usecase.ErrQueueUnavailable
	}

	event.RequestID = uuid.NewString()
	if _, err := q.writeLog.Append(ctx, event.Fields()); err != nil {
		enqueueErrors.Inc()
		log.Errorf("Ошибка добавления события %s в очередь записи: %v", event.Type, err)
		return "", fmt.Errorf("%w: %v", usecase.ErrQueueUnavailable, err)
	}
	enqueuedEvents.WithLabelValues(string(event.Type)).Inc()
	return event.RequestID, nil
}
