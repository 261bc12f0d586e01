package cockroach

import (
	"context"
	"database/sql"
	"errors"
	"forum-backend/internal/entity"
	"forum-backend/internal/repo"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return sqlx.NewDb(db, "postgres"), mock
}

// inTx выполняет fn в транзакции и проверяет, что все ожидаемые запросы выполнены
func inTx(t *testing.T, db *sqlx.DB, mock sqlmock.Sqlmock, fn func(tx repo.WriteTx) error) error {
	t.Helper()
	err := NewWriteStore(db).InTx(context.Background(), fn)
	require.NoError(t, mock.ExpectationsWereMet())
	return err
}

func TestWriteTx_ClaimRequests(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO queued_write_requests (request_id,event_type) VALUES ($1,$2),($3,$4)")+
		".*"+regexp.QuoteMeta("ON CONFLICT (request_id) DO NOTHING RETURNING request_id")).
		WithArgs("req-1", "comment.add", "req-2", "post.vote.add").
		WillReturnRows(sqlmock.NewRows([]string{"request_id"}).AddRow("req-2"))
	mock.ExpectCommit()

	var claimed []string
	err := inTx(t, db, mock, func(tx repo.WriteTx) error {
		var err error
		claimed, err = tx.ClaimRequests([]*entity.IdempotencyRecord{
			{RequestID: "req-1", EventType: entity.CommentAddEvent},
			{RequestID: "req-2", EventType: entity.PostVoteAddEvent},
		})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"req-2"}, claimed)
}

func TestWriteTx_InsertVotesReturnsOnlyNew(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO comment_votes (user_id,comment_id) VALUES ($1,$2),($3,$4)")+
		".*"+regexp.QuoteMeta("ON CONFLICT (user_id, comment_id) DO NOTHING RETURNING user_id, comment_id AS target_id")).
		WithArgs(1, 10, 2, 10).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "target_id"}).AddRow(2, 10))
	mock.ExpectCommit()

	var inserted []entity.VoteKey
	err := inTx(t, db, mock, func(tx repo.WriteTx) error {
		var err error
		inserted, err = tx.InsertCommentVotes([]entity.VoteKey{{UserID: 1, TargetID: 10}, {UserID: 2, TargetID: 10}})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, []entity.VoteKey{{UserID: 2, TargetID: 10}}, inserted)
}

func TestWriteTx_DeletePostVotes(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM votes WHERE")+
		".*"+regexp.QuoteMeta("post_id = $1 AND user_id = $2")+
		".* OR .*"+regexp.QuoteMeta("post_id = $3 AND user_id = $4")+
		".*"+regexp.QuoteMeta("RETURNING user_id, post_id AS target_id")).
		WithArgs(5, 1, 6, 1).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "target_id"}).AddRow(1, 6))
	mock.ExpectCommit()

	var deleted []entity.VoteKey
	err := inTx(t, db, mock, func(tx repo.WriteTx) error {
		var err error
		deleted, err = tx.DeletePostVotes([]entity.VoteKey{{UserID: 1, TargetID: 5}, {UserID: 1, TargetID: 6}})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, []entity.VoteKey{{UserID: 1, TargetID: 6}}, deleted)
}

func TestWriteTx_RefreshPoints(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE comments c SET points = CASE WHEN EXISTS (SELECT 1 FROM comment_ancestors s WHERE s.descendant_comment_id = c.id)") +
		".*" + regexp.QuoteMeta("WHERE ca.ancestor_comment_id = c.id)") +
		".*" + regexp.QuoteMeta("ELSE (SELECT COUNT(*) FROM comment_votes cv WHERE cv.comment_id = c.id) END WHERE c.id = ANY($1)")).
		WithArgs(pq.Array([]int64{3, 4})).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE posts p SET points = (SELECT COUNT(*) FROM votes v WHERE v.post_id = p.id)") +
		".*" + regexp.QuoteMeta("WHERE p.id = ANY($1)")).
		WithArgs(pq.Array([]int64{7})).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := inTx(t, db, mock, func(tx repo.WriteTx) error {
		if err := tx.RefreshCommentPoints([]int{3, 4}); err != nil {
			return err
		}
		// пустые наборы не доходят до базы
		if err := tx.RefreshCommentPoints(nil); err != nil {
			return err
		}
		return tx.RefreshPostPoints([]int{7})
	})
	require.NoError(t, err)
}

func TestWriteTx_UpdateCommentText(t *testing.T) {
	db, mock := newMockDB(t)
	updateQuery := regexp.QuoteMeta("UPDATE comments SET text = $1, updated_at = now() WHERE id = $2 AND is_deleted = $3 RETURNING id, text, user_id")

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery(updateQuery).
		WithArgs("fixed", 9, false).
		WillReturnRows(sqlmock.NewRows(commentColumns).
			AddRow(9, "fixed", 1, 2, nil, 9, false, 3, now, now))
	mock.ExpectCommit()

	var edited *entity.Comment
	err := inTx(t, db, mock, func(tx repo.WriteTx) error {
		var err error
		edited, err = tx.UpdateCommentText(9, "fixed")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, "fixed", edited.Text)
	assert.Equal(t, 1, edited.AuthorID)
	assert.Nil(t, edited.ParentID)
	require.NotNil(t, edited.RootID)
	assert.Equal(t, 9, *edited.RootID)

	db, mock = newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectQuery(updateQuery).
		WithArgs("fixed", 404, false).
		WillReturnRows(sqlmock.NewRows(commentColumns))
	mock.ExpectRollback()

	err = inTx(t, db, mock, func(tx repo.WriteTx) error {
		_, err := tx.UpdateCommentText(404, "fixed")
		return err
	})
	assert.ErrorIs(t, err, repo.ErrCommentNotFound)
}

func TestWriteStore_InTxRollsBackOnError(t *testing.T) {
	db, mock := newMockDB(t)
	failure := errors.New("boom")
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM comment_ancestors WHERE descendant_comment_id IN ($1,$2)")).
		WithArgs(1, 2).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectRollback()

	err := inTx(t, db, mock, func(tx repo.WriteTx) error {
		deleted, err := tx.DeleteAncestorEdges([]int{1, 2})
		if err != nil {
			return err
		}
		assert.Equal(t, int64(3), deleted)
		return failure
	})
	assert.ErrorIs(t, err, failure)
}

func TestWriteStore_InTxBeginFails(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin().WillReturnError(sql.ErrConnDone)

	called := false
	err := inTx(t, db, mock, func(tx repo.WriteTx) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.False(t, called)
}
