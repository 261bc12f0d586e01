package redisrepo

import (
	"context"
	"forum-backend/internal/entity"
	"forum-backend/internal/repo"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	server := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func newTestWriteLog(t *testing.T, claimIdle time.Duration) repo.WriteLog {
	t.Helper()
	writeLog := NewStreamWriteLog(newTestRedis(t), "forum-write-events", "forum-write-workers", claimIdle)
	require.NoError(t, writeLog.EnsureGroup(context.Background()))
	return writeLog
}

func TestStreamWriteLog_EnsureGroupIsIdempotent(t *testing.T) {
	writeLog := newTestWriteLog(t, 0)
	assert.NoError(t, writeLog.EnsureGroup(context.Background()))
}

func TestStreamWriteLog_AppendFetchAck(t *testing.T) {
	writeLog := newTestWriteLog(t, 0)
	ctx := context.Background()

	event := entity.NewCommentAddEvent(1, 2, nil, "hello")
	event.RequestID = "req-1"
	id, err := writeLog.Append(ctx, event.Fields())
	require.NoError(t, err)

	entries, err := writeLog.Fetch(ctx, "worker-1", 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, id, entries[0].ID)

	parsed := entries[0].Event()
	assert.Equal(t, entity.CommentAddEvent, parsed.Type)
	assert.Equal(t, "req-1", parsed.RequestID)
	assert.Equal(t, 1, parsed.UserID)
	assert.Equal(t, 2, parsed.PostID)
	assert.Nil(t, parsed.ParentID)
	assert.Equal(t, "hello", parsed.Text)

	require.NoError(t, writeLog.Ack(ctx, id))
	entries, err = writeLog.Fetch(ctx, "worker-1", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStreamWriteLog_FetchRespectsCount(t *testing.T) {
	writeLog := newTestWriteLog(t, 0)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := writeLog.Append(ctx, map[string]string{entity.FieldType: "post.vote.add"})
		require.NoError(t, err)
	}

	first, err := writeLog.Fetch(ctx, "worker-1", 3, 0)
	require.NoError(t, err)
	assert.Len(t, first, 3)
	second, err := writeLog.Fetch(ctx, "worker-2", 3, 0)
	require.NoError(t, err)
	assert.Len(t, second, 2)
	assert.NotEqual(t, first[0].ID, second[0].ID)
}

func TestStreamWriteLog_ReleaseRedelivers(t *testing.T) {
	writeLog := newTestWriteLog(t, 0)
	ctx := context.Background()
	id, err := writeLog.Append(ctx, map[string]string{entity.FieldType: "post.vote.add", entity.FieldRequestID: "req-1"})
	require.NoError(t, err)

	entries, err := writeLog.Fetch(ctx, "worker-1", 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.NoError(t, writeLog.Release(ctx, "worker-1", id))

	again, err := writeLog.Fetch(ctx, "worker-1", 10, 0)
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, id, again[0].ID)
	assert.Equal(t, "req-1", again[0].Fields[entity.FieldRequestID])

	require.NoError(t, writeLog.Ack(ctx, id))
	empty, err := writeLog.Fetch(ctx, "worker-1", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestStreamWriteLog_ClaimsIdleEntries(t *testing.T) {
	writeLog := newTestWriteLog(t, 10*time.Millisecond)
	ctx := context.Background()
	id, err := writeLog.Append(ctx, map[string]string{entity.FieldType: "post.vote.add"})
	require.NoError(t, err)

	entries, err := writeLog.Fetch(ctx, "crashed", 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	time.Sleep(50 * time.Millisecond)
	claimed, err := writeLog.Fetch(ctx, "survivor", 10, 0)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, id, claimed[0].ID)
}
