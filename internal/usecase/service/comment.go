package service

import (
	"context"
	"errors"
	"fmt"
	"forum-backend/internal/entity"
	"forum-backend/internal/repo"
	"forum-backend/internal/usecase"
	"strings"
	"time"
)

type Comment struct {
	store     repo.WriteStore
	readStore repo.ReadStore
	applier   *writeApplier
	versions  usecase.CacheVersions
	reader    *cachedReader
}

func NewComment(
	store repo.WriteStore,
	readStore repo.ReadStore,
	ancestors *AncestorIndex,
	versions usecase.CacheVersions,
	cache repo.Cache,
	cacheTTL time.Duration,
) usecase.Comment {
	return &Comment{
		store:     store,
		readStore: readStore,
		applier:   newWriteApplier(ancestors),
		versions:  versions,
		reader:    newCachedReader(versions, cache, cacheTTL),
	}
}

func (c *Comment) AddComment(ctx context.Context, request *entity.AddCommentRequest) (*entity.Comment, error) {
	var draft *commentDraft
	err := c.store.InTx(ctx, func(tx repo.WriteTx) error {
		posts, err := tx.GetPosts([]int{request.PostID})
		if err != nil {
			return err
		}
		post, ok := posts[request.PostID]
		if !ok {
			return usecase.ErrPostNotFound
		}

		users, err := tx.GetUsers([]int{request.UserID})
		if err != nil {
			return err
		}
		user, ok := users[request.UserID]
		if !ok {
			return usecase.ErrUserNotFound
		}

		var parent *entity.Comment
		if request.ParentID != nil {
			parents, err := tx.GetComments([]int{*request.ParentID})
			if err != nil {
				return err
			}
			parent, ok = parents[*request.ParentID]
			if !ok || parent.PostID != post.ID {
				return usecase.ErrParentNotFound
			}
		}

		event := entity.NewCommentAddEvent(request.UserID, request.PostID, request.ParentID, request.Text)
		draft = newDraft(event, post, parent, user.Username)
		return c.applier.persistComments(tx, []*commentDraft{draft})
	})
	if err != nil {
		return nil, err
	}

	bumpAll(ctx, c.versions, ThreadFamily(request.PostID), RecentCommentsFamily)
	return draft.comment, nil
}

func (c *Comment) DeleteComment(ctx context.Context, request *entity.DeleteCommentRequest) error {
	var postID int
	var changed bool
	err := c.store.InTx(ctx, func(tx repo.WriteTx) error {
		comments, err := tx.GetComments([]int{request.CommentID})
		if err != nil {
			return err
		}
		comment, ok := comments[request.CommentID]
		if !ok {
			return usecase.ErrCommentNotFound
		}
		if comment.AuthorID != request.UserID {
			return usecase.ErrUserForbidden
		}
		postID = comment.PostID
		marked, err := tx.MarkCommentsDeleted([]int{comment.ID})
		if err != nil {
			return err
		}
		changed = len(marked) > 0
		return nil
	})
	if err != nil {
		return err
	}

	if changed {
		bumpAll(ctx, c.versions, ThreadFamily(postID), RecentCommentsFamily)
	}
	return nil
}

// EditComment редактирование всегда синхронное, в очередь записи оно не попадает
func (c *Comment) EditComment(ctx context.Context, request *entity.EditCommentRequest) (*entity.Comment, error) {
	var edited *entity.Comment
	err := c.store.InTx(ctx, func(tx repo.WriteTx) error {
		comments, err := tx.GetComments([]int{request.CommentID})
		if err != nil {
			return err
		}
		comment, ok := comments[request.CommentID]
		if !ok || comment.IsDeleted {
			return usecase.ErrCommentNotFound
		}
		if comment.AuthorID != request.UserID {
			return usecase.ErrUserForbidden
		}
		edited, err = tx.UpdateCommentText(comment.ID, strings.TrimSpace(request.Text))
		return err
	})
	if err != nil {
		if errors.Is(err, repo.ErrCommentNotFound) {
			return nil, usecase.ErrCommentNotFound
		}
		return nil, err
	}

	bumpAll(ctx, c.versions, ThreadFamily(edited.PostID), RecentCommentsFamily)
	return edited, nil
}

func (c *Comment) GetThread(ctx context.Context, request *entity.GetThreadRequest) (*entity.Thread, error) {
	return readCached(ctx, c.reader, ThreadFamily(request.PostID), "tree", func(ctx context.Context) (*entity.Thread, error) {
		if _, err := c.readStore.GetPost(ctx, request.PostID); err != nil {
			if errors.Is(err, repo.ErrPostNotFound) {
				return nil, usecase.ErrPostNotFound
			}
			return nil, err
		}
		nodes, err := c.readStore.GetThreadComments(ctx, request.PostID)
		if err != nil {
			return nil, err
		}
		return &entity.Thread{PostID: request.PostID, Comments: buildTree(nodes)}, nil
	})
}

func (c *Comment) GetRecentComments(ctx context.Context, request *entity.GetRecentCommentsRequest) (*entity.RecentComments, error) {
	request.Normalize()
	params := fmt.Sprintf("skip:%d:limit:%d", request.Skip, request.Limit)
	return readCached(ctx, c.reader, RecentCommentsFamily, params, func(ctx context.Context) (*entity.RecentComments, error) {
		comments, err := c.readStore.GetRecentComments(ctx, request.Skip, request.Limit)
		if err != nil {
			return nil, err
		}
		return &entity.RecentComments{Comments: comments, Skip: request.Skip, Limit: request.Limit}, nil
	})
}

// buildTree собирает плоский список в дерево. Комментарии с потерянным родителем поднимаются на верхний уровень
func buildTree(nodes []*entity.CommentNode) []*entity.CommentNode {
	byID := make(map[int]*entity.CommentNode, len(nodes))
	for _, node := range nodes {
		node.Children = []*entity.CommentNode{}
		byID[node.ID] = node
	}
	roots := []*entity.CommentNode{}
	for _, node := range nodes {
		if node.ParentID != nil {
			if parent, ok := byID[*node.ParentID]; ok {
				parent.Children = append(parent.Children, node)
				continue
			}
		}
		roots = append(roots, node)
	}
	return roots
}
