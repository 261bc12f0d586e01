package cockroach

import (
	"context"
	"database/sql"
	"errors"
	"forum-backend/internal/entity"
	"forum-backend/internal/repo"

	"github.com/jmoiron/sqlx"
)

type ReadStore struct {
	db *sqlx.DB
}

func NewReadStore(db *sqlx.DB) repo.ReadStore {
	return &ReadStore{
		db: db,
	}
}

func (r *ReadStore) GetPost(ctx context.Context, postID int) (*entity.Post, error) {
	var post entity.Post
	err := r.db.GetContext(ctx, &post, `
		SELECT id, title, url, text, user_id, points, created_at
		FROM posts
		WHERE id = $1
	`, postID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repo.ErrPostNotFound
		}
		return nil, err
	}
	return &post, nil
}

type threadRow struct {
	entity.Comment
	Username sql.NullString `db:"username"`
}

func (r *ReadStore) GetThreadComments(ctx context.Context, postID int) ([]*entity.CommentNode, error) {
	var rows []*threadRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT c.id, c.text, c.user_id, c.post_id, c.parent_id, c.root_id, c.is_deleted, c.points,
		       c.created_at, c.updated_at, u.username
		FROM comments c
		LEFT JOIN users u ON u.id = c.user_id
		WHERE c.post_id = $1
		ORDER BY c.id
	`, postID)
	if err != nil {
		return nil, err
	}

	nodes := make([]*entity.CommentNode, 0, len(rows))
	for _, row := range rows {
		comment := row.Comment
		nodes = append(nodes, &entity.CommentNode{
			Comment:  &comment,
			Username: row.Username.String,
		})
	}
	return nodes, nil
}

func (r *ReadStore) GetFeed(ctx context.Context, skip, limit int) ([]*entity.Post, error) {
	posts := make([]*entity.Post, 0, limit)
	err := r.db.SelectContext(ctx, &posts, `
		SELECT id, title, url, text, user_id, points, created_at
		FROM posts
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`, limit, skip)
	if err != nil {
		return nil, err
	}
	return posts, nil
}

type recentCommentRow struct {
	entity.Comment
	Username  sql.NullString `db:"username"`
	PostTitle string         `db:"post_title"`
}

func (r *ReadStore) GetRecentComments(ctx context.Context, skip, limit int) ([]*entity.RecentComment, error) {
	var rows []*recentCommentRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT c.id, c.text, c.user_id, c.post_id, c.parent_id, c.root_id, c.is_deleted, c.points,
		       c.created_at, c.updated_at, u.username, p.title AS post_title
		FROM comments c
		JOIN posts p ON p.id = c.post_id
		LEFT JOIN users u ON u.id = c.user_id
		WHERE NOT c.is_deleted
		ORDER BY c.created_at DESC, c.id DESC
		LIMIT $1 OFFSET $2
	`, limit, skip)
	if err != nil {
		return nil, err
	}

	result := make([]*entity.RecentComment, 0, len(rows))
	for _, row := range rows {
		comment := row.Comment
		result = append(result, &entity.RecentComment{
			Comment:   &comment,
			Username:  row.Username.String,
			PostTitle: row.PostTitle,
		})
	}
	return result, nil
}
