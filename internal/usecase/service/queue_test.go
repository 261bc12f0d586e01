package service

import (
	"context"
	"forum-backend/internal/entity"
	"forum-backend/internal/repo/inmemory"
	"forum-backend/internal/usecase"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteQueue_Enqueue(t *testing.T) {
	writeLog := inmemory.NewWriteLog()
	queue := NewWriteQueue(WriteModeRedis, writeLog)
	require.True(t, queue.Enabled())

	event := entity.NewPostVoteEvent(1, 2, false)
	requestID, err := queue.Enqueue(context.Background(), event)
	require.NoError(t, err)
	_, err = uuid.Parse(requestID)
	assert.NoError(t, err)
	assert.Equal(t, requestID, event.RequestID)

	entries, err := writeLog.Fetch(context.Background(), "test", 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, requestID, entries[0].Fields[entity.FieldRequestID])
	assert.Equal(t, "post.vote.add", entries[0].Fields[entity.FieldType])
}

func TestWriteQueue_Disabled(t *testing.T) {
	queue := NewWriteQueue(WriteModeDirect, inmemory.NewWriteLog())
	assert.False(t, queue.Enabled())

	_, err := queue.Enqueue(context.Background(), entity.NewPostVoteEvent(1, 2, false))
	assert.ErrorIs(t, err, usecase.ErrQueueDisabled)
}

func TestWriteQueue_Unavailable(t *testing.T) {
	_, err := NewWriteQueue(WriteModeKafka, nil).Enqueue(context.Background(), entity.NewPostVoteEvent(1, 2, false))
	assert.ErrorIs(t, err, usecase.ErrQueueUnavailable)

	writeLog := inmemory.NewWriteLog()
	require.NoError(t, writeLog.Close())
	_, err = NewWriteQueue(WriteModeRedis, writeLog).Enqueue(context.Background(), entity.NewPostVoteEvent(1, 2, false))
	assert.ErrorIs(t, err, usecase.ErrQueueUnavailable)
}
