package service

import (
	"context"
	"errors"
	"forum-backend/internal/entity"
	"forum-backend/internal/repo"
	"forum-backend/internal/repo/inmemory"
	"forum-backend/internal/usecase"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var errStoreDown = errors.New("store is down")

type testEnv struct {
	store     *inmemory.Store
	writeLog  *inmemory.WriteLog
	versions  usecase.CacheVersions
	ancestors *AncestorIndex
	cache     repo.Cache
	comments  usecase.Comment
	votes     usecase.Vote
	queue     usecase.WriteQueue

	author *entity.User
	reader *entity.User
	post   *entity.Post
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := inmemory.NewStore()
	cache, err := inmemory.NewLRUCache(128)
	require.NoError(t, err)

	env := &testEnv{
		store:     store,
		writeLog:  inmemory.NewWriteLog(),
		versions:  NewCacheVersionRegistry(inmemory.NewCacheVersions()),
		ancestors: NewAncestorIndex(store),
		cache:     cache,
	}
	env.comments = NewComment(store, store, env.ancestors, env.versions, cache, time.Minute)
	env.votes = NewVote(store, env.ancestors, env.versions)
	env.queue = NewWriteQueue(WriteModeRedis, env.writeLog)

	env.author = store.AddUser("author")
	env.reader = store.AddUser("reader")
	env.post = store.AddPost(env.author.ID, "Hello, forum")
	return env
}

func (e *testEnv) newWorker(consumer string) *WriteWorker {
	return e.newWorkerWithStore(consumer, e.store)
}

func (e *testEnv) newWorkerWithStore(consumer string, store repo.WriteStore) *WriteWorker {
	return NewWriteWorker(e.writeLog, store, NewAncestorIndex(store), e.versions, WriteWorkerConfig{
		Consumer:  consumer,
		BatchSize: 100,
		Block:     10 * time.Millisecond,
	})
}

func (e *testEnv) enqueue(t *testing.T, event *entity.WriteEvent) string {
	t.Helper()
	requestID, err := e.queue.Enqueue(context.Background(), event)
	require.NoError(t, err)
	return requestID
}

// addComment синхронно добавляет комментарий
func (e *testEnv) addComment(t *testing.T, userID int, parentID *int, text string) *entity.Comment {
	t.Helper()
	comment, err := e.comments.AddComment(context.Background(), &entity.AddCommentRequest{
		UserID:   userID,
		PostID:   e.post.ID,
		ParentID: parentID,
		Text:     text,
	})
	require.NoError(t, err)
	return comment
}

// chain создает цепочку ответов заданной длины: первый комментарий верхнего уровня
func (e *testEnv) chain(t *testing.T, length int) []*entity.Comment {
	t.Helper()
	var comments []*entity.Comment
	var parentID *int
	for i := 0; i < length; i++ {
		comment := e.addComment(t, e.author.ID, parentID, "comment")
		comments = append(comments, comment)
		id := comment.ID
		parentID = &id
	}
	return comments
}

func (e *testEnv) version(t *testing.T, family string) int64 {
	t.Helper()
	version, err := e.versions.Current(context.Background(), family)
	require.NoError(t, err)
	return version
}

func (e *testEnv) commentPoints(t *testing.T, id int) int {
	t.Helper()
	comment, ok := e.store.Comment(id)
	require.True(t, ok)
	return comment.Points
}

func (e *testEnv) postPoints(t *testing.T) int {
	t.Helper()
	post, ok := e.store.Post(e.post.ID)
	require.True(t, ok)
	return post.Points
}

// flakyStore отказывает в транзакции, пока выставлен down
type flakyStore struct {
	repo.WriteStore
	down atomic.Bool
}

func (s *flakyStore) InTx(ctx context.Context, fn func(tx repo.WriteTx) error) error {
	if s.down.Load() {
		return errStoreDown
	}
	return s.WriteStore.InTx(ctx, fn)
}

// brokenNotificationsStore падает в середине транзакции, после вставки комментариев
type brokenNotificationsStore struct {
	repo.WriteStore
}

type brokenNotificationsTx struct {
	repo.WriteTx
}

func (brokenNotificationsTx) InsertNotifications([]*entity.Notification) error {
	return errStoreDown
}

func (s *brokenNotificationsStore) InTx(ctx context.Context, fn func(tx repo.WriteTx) error) error {
	return s.WriteStore.InTx(ctx, func(tx repo.WriteTx) error {
		return fn(brokenNotificationsTx{WriteTx: tx})
	})
}

// brokenVersions хранилище версий, которое всегда недоступно
type brokenVersions struct{}

func (brokenVersions) Current(context.Context, string) (int64, error) { return 0, errStoreDown }
func (brokenVersions) Bump(context.Context, string) (int64, error)    { return 0, errStoreDown }
func (brokenVersions) Key(context.Context, string, string) (string, error) {
	return "", errStoreDown
}
