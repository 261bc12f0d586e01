package redisrepo

import (
	"context"
	"errors"
	"fmt"
	"forum-backend/internal/entity"
	"forum-backend/internal/repo"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// StreamWriteLog лог записи поверх Redis Streams с группой потребителей
type StreamWriteLog struct {
	rdb       *redis.Client
	stream    string
	group     string
	claimIdle time.Duration

	mu sync.Mutex
	// retryPending потребители, которым нужно перечитать свои неподтвержденные записи
	retryPending map[string]bool
}

// NewStreamWriteLog создает лог. При claimIdle > 0 записи, висящие у других потребителей дольше claimIdle,
// забираются через XAUTOCLAIM
func NewStreamWriteLog(rdb *redis.Client, stream, group string, claimIdle time.Duration) repo.WriteLog {
	return &StreamWriteLog{
		rdb:          rdb,
		stream:       stream,
		group:        group,
		claimIdle:    claimIdle,
		retryPending: make(map[string]bool),
	}
}

func (l *StreamWriteLog) EnsureGroup(ctx context.Context) error {
	err := l.rdb.XGroupCreateMkStream(ctx, l.stream, l.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

func (l *StreamWriteLog) Append(ctx context.Context, fields map[string]string) (string, error) {
	values := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		values[k] = v
	}
	return l.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: l.stream,
		Values: values,
	}).Result()
}

func (l *StreamWriteLog) Fetch(ctx context.Context, consumer string, count int, block time.Duration) ([]*entity.WriteLogEntry, error) {
	if l.takeRetry(consumer) {
		entries, err := l.read(ctx, consumer, "0", count, -1)
		if err != nil {
			return nil, err
		}
		if len(entries) > 0 {
			l.markRetry(consumer)
			return entries, nil
		}
	}

	if l.claimIdle > 0 {
		messages, _, err := l.rdb.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   l.stream,
			Group:    l.group,
			Consumer: consumer,
			MinIdle:  l.claimIdle,
			Start:    "0-0",
			Count:    int64(count),
		}).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("xautoclaim: %w", err)
		}
		if len(messages) > 0 {
			return toEntries(messages), nil
		}
	}

	if block <= 0 {
		block = -1
	}
	return l.read(ctx, consumer, ">", count, block)
}

func (l *StreamWriteLog) read(ctx context.Context, consumer, start string, count int, block time.Duration) ([]*entity.WriteLogEntry, error) {
	streams, err := l.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    l.group,
		Consumer: consumer,
		Streams:  []string{l.stream, start},
		Count:    int64(count),
		Block:    block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("xreadgroup: %w", err)
	}
	var entries []*entity.WriteLogEntry
	for _, stream := range streams {
		entries = append(entries, toEntries(stream.Messages)...)
	}
	return entries, nil
}

func (l *StreamWriteLog) Ack(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	return l.rdb.XAck(ctx, l.stream, l.group, ids...).Err()
}

// Release оставляет записи в списке ожидающих потребителя и помечает, что при следующем Fetch
// их нужно выдать заново. Записи упавшего потребителя заберет XAUTOCLAIM
func (l *StreamWriteLog) Release(ctx context.Context, consumer string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	l.markRetry(consumer)
	return nil
}

func (l *StreamWriteLog) Close() error {
	return nil
}

func (l *StreamWriteLog) markRetry(consumer string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.retryPending[consumer] = true
}

func (l *StreamWriteLog) takeRetry(consumer string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	retry := l.retryPending[consumer]
	delete(l.retryPending, consumer)
	return retry
}

func toEntries(messages []redis.XMessage) []*entity.WriteLogEntry {
	entries := make([]*entity.WriteLogEntry, 0, len(messages))
	for _, message := range messages {
		fields := make(map[string]string, len(message.Values))
		for k, v := range message.Values {
			fields[k] = fmt.Sprint(v)
		}
		entries = append(entries, &entity.WriteLogEntry{ID: message.ID, Fields: fields})
	}
	return entries
}
