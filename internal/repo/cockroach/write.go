package cockroach

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"forum-backend/internal/entity"
	"forum-backend/internal/repo"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const edgeInsertChunk = 1000

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var (
	commentColumns = []string{"id", "text", "user_id", "post_id", "parent_id", "root_id", "is_deleted", "points", "created_at", "updated_at"}
	postColumns    = []string{"id", "title", "url", "text", "user_id", "points", "created_at"}
	edgeColumns    = []string{"descendant_comment_id", "ancestor_post_id", "ancestor_comment_id", "depth"}
)

type WriteStore struct {
	db *sqlx.DB
}

func NewWriteStore(db *sqlx.DB) repo.WriteStore {
	return &WriteStore{
		db: db,
	}
}

func (s *WriteStore) InTx(ctx context.Context, fn func(tx repo.WriteTx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&writeTx{ctx: ctx, tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

type writeTx struct {
	ctx context.Context
	tx  *sqlx.Tx
}

func (t *writeTx) selectBuilder(dest any, builder sq.Sqlizer) error {
	query, args, err := builder.ToSql()
	if err != nil {
		return err
	}
	return t.tx.SelectContext(t.ctx, dest, query, args...)
}

func (t *writeTx) execBuilder(builder sq.Sqlizer) (int64, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return 0, err
	}
	result, err := t.tx.ExecContext(t.ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (t *writeTx) ClaimRequests(records []*entity.IdempotencyRecord) ([]string, error) {
	if len(records) == 0 {
		return nil, nil
	}
	builder := psql.Insert("queued_write_requests").Columns("request_id", "event_type")
	for _, record := range records {
		builder = builder.Values(record.RequestID, string(record.EventType))
	}
	var claimed []string
	err := t.selectBuilder(&claimed, builder.Suffix("ON CONFLICT (request_id) DO NOTHING RETURNING request_id"))
	if err != nil {
		return nil, fmt.Errorf("claim requests: %w", err)
	}
	return claimed, nil
}

func (t *writeTx) GetUsers(ids []int) (map[int]*entity.User, error) {
	result := make(map[int]*entity.User)
	if len(ids) == 0 {
		return result, nil
	}
	var users []*entity.User
	if err := t.selectBuilder(&users, psql.Select("id", "username").From("users").Where(sq.Eq{"id": ids})); err != nil {
		return nil, err
	}
	for _, user := range users {
		result[user.ID] = user
	}
	return result, nil
}

func (t *writeTx) GetPosts(ids []int) (map[int]*entity.Post, error) {
	result := make(map[int]*entity.Post)
	if len(ids) == 0 {
		return result, nil
	}
	var posts []*entity.Post
	if err := t.selectBuilder(&posts, psql.Select(postColumns...).From("posts").Where(sq.Eq{"id": ids})); err != nil {
		return nil, err
	}
	for _, post := range posts {
		result[post.ID] = post
	}
	return result, nil
}

func (t *writeTx) GetComments(ids []int) (map[int]*entity.Comment, error) {
	result := make(map[int]*entity.Comment)
	if len(ids) == 0 {
		return result, nil
	}
	var comments []*entity.Comment
	if err := t.selectBuilder(&comments, psql.Select(commentColumns...).From("comments").Where(sq.Eq{"id": ids})); err != nil {
		return nil, err
	}
	for _, comment := range comments {
		result[comment.ID] = comment
	}
	return result, nil
}

func (t *writeTx) GetPostComments(postID int) ([]*entity.Comment, error) {
	var comments []*entity.Comment
	err := t.selectBuilder(&comments, psql.Select(commentColumns...).
		From("comments").
		Where(sq.Eq{"post_id": postID}).
		OrderBy("id"))
	if err != nil {
		return nil, err
	}
	return comments, nil
}

func (t *writeTx) InsertComments(comments []*entity.Comment) error {
	for _, comment := range comments {
		query, args, err := psql.Insert("comments").
			Columns("text", "user_id", "post_id", "parent_id", "root_id").
			Values(comment.Text, comment.AuthorID, comment.PostID, comment.ParentID, comment.RootID).
			Suffix("RETURNING id, created_at, updated_at").
			ToSql()
		if err != nil {
			return err
		}
		row := t.tx.QueryRowxContext(t.ctx, query, args...)
		if err := row.Scan(&comment.ID, &comment.CreatedAt, &comment.UpdatedAt); err != nil {
			return fmt.Errorf("insert comment: %w", err)
		}
	}
	return nil
}

func (t *writeTx) SetRootsToSelf(ids []int) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := t.execBuilder(psql.Update("comments").
		Set("root_id", sq.Expr("id")).
		Where(sq.Eq{"id": ids, "parent_id": nil, "root_id": nil}))
	return err
}

func (t *writeTx) MarkCommentsDeleted(ids []int) ([]int, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var marked []int
	err := t.selectBuilder(&marked, psql.Update("comments").
		Set("is_deleted", true).
		Set("text", entity.DeletedCommentText).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": ids, "is_deleted": false}).
		Suffix("RETURNING id"))
	if err != nil {
		return nil, err
	}
	return marked, nil
}

func (t *writeTx) UpdateCommentText(id int, text string) (*entity.Comment, error) {
	query, args, err := psql.Update("comments").
		Set("text", text).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": id, "is_deleted": false}).
		Suffix("RETURNING " + strings.Join(commentColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, err
	}
	var comment entity.Comment
	if err := t.tx.GetContext(t.ctx, &comment, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repo.ErrCommentNotFound
		}
		return nil, fmt.Errorf("update comment %d: %w", id, err)
	}
	return &comment, nil
}

func (t *writeTx) GetAncestorEdges(descendantIDs []int) ([]*entity.AncestorEdge, error) {
	if len(descendantIDs) == 0 {
		return nil, nil
	}
	var edges []*entity.AncestorEdge
	err := t.selectBuilder(&edges, psql.Select(edgeColumns...).
		From("comment_ancestors").
		Where(sq.Eq{"descendant_comment_id": descendantIDs}).
		OrderBy("descendant_comment_id", "depth"))
	if err != nil {
		return nil, err
	}
	return edges, nil
}

func (t *writeTx) InsertAncestorEdges(edges []*entity.AncestorEdge) (int64, error) {
	var inserted int64
	for start := 0; start < len(edges); start += edgeInsertChunk {
		end := min(start+edgeInsertChunk, len(edges))
		builder := psql.Insert("comment_ancestors").Columns(edgeColumns...)
		for _, edge := range edges[start:end] {
			if err := edge.Validate(); err != nil {
				return 0, err
			}
			builder = builder.Values(edge.DescendantID, edge.AncestorPostID, edge.AncestorCommentID, edge.Depth)
		}
		rows, err := t.execBuilder(builder.Suffix("ON CONFLICT DO NOTHING"))
		if err != nil {
			return 0, fmt.Errorf("insert ancestor edges: %w", err)
		}
		inserted += rows
	}
	return inserted, nil
}

func (t *writeTx) DeleteAncestorEdges(descendantIDs []int) (int64, error) {
	if len(descendantIDs) == 0 {
		return 0, nil
	}
	return t.execBuilder(psql.Delete("comment_ancestors").Where(sq.Eq{"descendant_comment_id": descendantIDs}))
}

func (t *writeTx) InsertNotifications(notifications []*entity.Notification) error {
	if len(notifications) == 0 {
		return nil
	}
	builder := psql.Insert("notifications").
		Columns("recipient_id", "actor_id", "type", "post_id", "comment_id", "message")
	for _, n := range notifications {
		builder = builder.Values(n.RecipientID, n.ActorID, string(n.Type), n.PostID, n.CommentID, n.Message)
	}
	_, err := t.execBuilder(builder)
	return err
}

func (t *writeTx) InsertPostVotes(keys []entity.VoteKey) ([]entity.VoteKey, error) {
	return t.insertVotes("votes", "post_id", keys)
}

func (t *writeTx) DeletePostVotes(keys []entity.VoteKey) ([]entity.VoteKey, error) {
	return t.deleteVotes("votes", "post_id", keys)
}

func (t *writeTx) InsertCommentVotes(keys []entity.VoteKey) ([]entity.VoteKey, error) {
	return t.insertVotes("comment_votes", "comment_id", keys)
}

func (t *writeTx) DeleteCommentVotes(keys []entity.VoteKey) ([]entity.VoteKey, error) {
	return t.deleteVotes("comment_votes", "comment_id", keys)
}

func (t *writeTx) insertVotes(table, targetColumn string, keys []entity.VoteKey) ([]entity.VoteKey, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	builder := psql.Insert(table).Columns("user_id", targetColumn)
	for _, key := range keys {
		builder = builder.Values(key.UserID, key.TargetID)
	}
	suffix := fmt.Sprintf("ON CONFLICT (user_id, %[1]s) DO NOTHING RETURNING user_id, %[1]s AS target_id", targetColumn)
	var inserted []entity.VoteKey
	if err := t.selectBuilder(&inserted, builder.Suffix(suffix)); err != nil {
		return nil, fmt.Errorf("insert %s: %w", table, err)
	}
	return inserted, nil
}

func (t *writeTx) deleteVotes(table, targetColumn string, keys []entity.VoteKey) ([]entity.VoteKey, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	pairs := sq.Or{}
	for _, key := range keys {
		pairs = append(pairs, sq.Eq{"user_id": key.UserID, targetColumn: key.TargetID})
	}
	var deleted []entity.VoteKey
	err := t.selectBuilder(&deleted, psql.Delete(table).
		Where(pairs).
		Suffix(fmt.Sprintf("RETURNING user_id, %s AS target_id", targetColumn)))
	if err != nil {
		return nil, fmt.Errorf("delete %s: %w", table, err)
	}
	return deleted, nil
}

func (t *writeTx) RefreshPostPoints(postIDs []int) error {
	if len(postIDs) == 0 {
		return nil
	}
	_, err := t.tx.ExecContext(t.ctx, `
		UPDATE posts p
		SET points = (SELECT COUNT(*) FROM votes v WHERE v.post_id = p.id)
			+ (SELECT COUNT(*)
			   FROM comment_votes cv
			   JOIN comments c ON c.id = cv.comment_id
			   WHERE c.post_id = p.id)
		WHERE p.id = ANY($1)
	`, pq.Array(toInt64s(postIDs)))
	return err
}

func (t *writeTx) RefreshCommentPoints(commentIDs []int) error {
	if len(commentIDs) == 0 {
		return nil
	}
	// комментарий без ребер получает только собственные голоса, как в ApplyPointDelta
	_, err := t.tx.ExecContext(t.ctx, `
		UPDATE comments c
		SET points = CASE
			WHEN EXISTS (SELECT 1 FROM comment_ancestors s WHERE s.descendant_comment_id = c.id)
			THEN (SELECT COUNT(*)
				FROM comment_votes cv
				JOIN comment_ancestors ca ON ca.descendant_comment_id = cv.comment_id
				WHERE ca.ancestor_comment_id = c.id)
			ELSE (SELECT COUNT(*) FROM comment_votes cv WHERE cv.comment_id = c.id)
		END
		WHERE c.id = ANY($1)
	`, pq.Array(toInt64s(commentIDs)))
	return err
}

func (t *writeTx) AddCommentPoints(ids []int, delta int) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	return t.execBuilder(psql.Update("comments").
		Set("points", sq.Expr("points + ?", delta)).
		Where(sq.Eq{"id": ids}))
}

func (t *writeTx) AddPostPoints(ids []int, delta int) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	return t.execBuilder(psql.Update("posts").
		Set("points", sq.Expr("points + ?", delta)).
		Where(sq.Eq{"id": ids}))
}

func toInt64s(ids []int) []int64 {
	result := make([]int64, len(ids))
	for i, id := range ids {
		result[i] = int64(id)
	}
	return result
}
