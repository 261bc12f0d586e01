package service

import (
	"context"
	"forum-backend/internal/entity"
	"forum-backend/internal/repo"
	"forum-backend/internal/usecase"
)

type Vote struct {
	store     repo.WriteStore
	ancestors *AncestorIndex
	versions  usecase.CacheVersions
}

func NewVote(store repo.WriteStore, ancestors *AncestorIndex, versions usecase.CacheVersions) usecase.Vote {
	return &Vote{
		store:     store,
		ancestors: ancestors,
		versions:  versions,
	}
}

func voteResult(changed bool) *entity.VoteResult {
	return &entity.VoteResult{Status: "ok", Changed: changed}
}

func pointDelta(remove bool) int {
	if remove {
		return -1
	}
	return 1
}

func (v *Vote) VotePost(ctx context.Context, request *entity.VoteRequest) (*entity.VoteResult, error) {
	var changed bool
	err := v.store.InTx(ctx, func(tx repo.WriteTx) error {
		posts, err := tx.GetPosts([]int{request.TargetID})
		if err != nil {
			return err
		}
		if _, ok := posts[request.TargetID]; !ok {
			return usecase.ErrPostNotFound
		}
		users, err := tx.GetUsers([]int{request.UserID})
		if err != nil {
			return err
		}
		if _, ok := users[request.UserID]; !ok {
			return usecase.ErrUserNotFound
		}

		key := []entity.VoteKey{{UserID: request.UserID, TargetID: request.TargetID}}
		var affected []entity.VoteKey
		if request.Remove {
			affected, err = tx.DeletePostVotes(key)
		} else {
			affected, err = tx.InsertPostVotes(key)
		}
		if err != nil {
			return err
		}
		changed = len(affected) > 0
		if !changed {
			return nil
		}
		_, err = tx.AddPostPoints([]int{request.TargetID}, pointDelta(request.Remove))
		return err
	})
	if err != nil {
		return nil, err
	}

	if changed {
		bumpAll(ctx, v.versions, FeedFamily)
	}
	return voteResult(changed), nil
}

func (v *Vote) VoteComment(ctx context.Context, request *entity.VoteRequest) (*entity.VoteResult, error) {
	var changed bool
	var postID int
	err := v.store.InTx(ctx, func(tx repo.WriteTx) error {
		comments, err := tx.GetComments([]int{request.TargetID})
		if err != nil {
			return err
		}
		comment, ok := comments[request.TargetID]
		if !ok {
			return usecase.ErrCommentNotFound
		}
		postID = comment.PostID
		users, err := tx.GetUsers([]int{request.UserID})
		if err != nil {
			return err
		}
		if _, ok := users[request.UserID]; !ok {
			return usecase.ErrUserNotFound
		}

		key := []entity.VoteKey{{UserID: request.UserID, TargetID: request.TargetID}}
		var affected []entity.VoteKey
		if request.Remove {
			affected, err = tx.DeleteCommentVotes(key)
		} else {
			affected, err = tx.InsertCommentVotes(key)
		}
		if err != nil {
			return err
		}
		changed = len(affected) > 0
		if !changed {
			return nil
		}
		_, err = v.ancestors.ApplyPointDelta(tx, request.TargetID, pointDelta(request.Remove))
		return err
	})
	if err != nil {
		return nil, err
	}

	if changed {
		bumpAll(ctx, v.versions, ThreadFamily(postID), RecentCommentsFamily, FeedFamily)
	}
	return voteResult(changed), nil
}
