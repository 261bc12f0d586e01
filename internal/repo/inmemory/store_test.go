package inmemory

import (
	"context"
	"errors"
	"forum-backend/internal/entity"
	"forum-backend/internal/repo"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_InTxRollsBack(t *testing.T) {
	store := NewStore()
	user := store.AddUser("alice")
	post := store.AddPost(user.ID, "Post")
	failure := errors.New("boom")

	err := store.InTx(context.Background(), func(tx repo.WriteTx) error {
		_, err := tx.ClaimRequests([]*entity.IdempotencyRecord{{RequestID: "req-1", EventType: entity.CommentAddEvent}})
		require.NoError(t, err)
		require.NoError(t, tx.InsertComments([]*entity.Comment{{Text: "x", AuthorID: user.ID, PostID: post.ID}}))
		return failure
	})
	assert.ErrorIs(t, err, failure)
	assert.Equal(t, 0, store.CommentCount())
	assert.Equal(t, 0, store.ClaimedRequests())
}

func TestStore_ClaimRequests(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	records := []*entity.IdempotencyRecord{
		{RequestID: "req-1", EventType: entity.PostVoteAddEvent},
		{RequestID: "req-2", EventType: entity.PostVoteAddEvent},
	}

	var claimed []string
	require.NoError(t, store.InTx(ctx, func(tx repo.WriteTx) error {
		var err error
		claimed, err = tx.ClaimRequests(records)
		return err
	}))
	assert.Equal(t, []string{"req-1", "req-2"}, claimed)

	require.NoError(t, store.InTx(ctx, func(tx repo.WriteTx) error {
		var err error
		claimed, err = tx.ClaimRequests(append(records, &entity.IdempotencyRecord{RequestID: "req-3", EventType: entity.PostVoteAddEvent}))
		return err
	}))
	assert.Equal(t, []string{"req-3"}, claimed)
	assert.Equal(t, 3, store.ClaimedRequests())
}

func TestStore_ForeignKeys(t *testing.T) {
	store := NewStore()
	user := store.AddUser("alice")

	err := store.InTx(context.Background(), func(tx repo.WriteTx) error {
		return tx.InsertComments([]*entity.Comment{{Text: "x", AuthorID: user.ID, PostID: 404}})
	})
	assert.ErrorIs(t, err, ErrForeignKey)

	err = store.InTx(context.Background(), func(tx repo.WriteTx) error {
		_, err := tx.InsertPostVotes([]entity.VoteKey{{UserID: user.ID, TargetID: 404}})
		return err
	})
	assert.ErrorIs(t, err, ErrForeignKey)
}

func TestStore_RefreshIsIdempotent(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	user := store.AddUser("alice")
	voter := store.AddUser("bob")
	post := store.AddPost(user.ID, "Post")

	var parent, child *entity.Comment
	require.NoError(t, store.InTx(ctx, func(tx repo.WriteTx) error {
		parent = &entity.Comment{Text: "parent", AuthorID: user.ID, PostID: post.ID}
		if err := tx.InsertComments([]*entity.Comment{parent}); err != nil {
			return err
		}
		parentID := parent.ID
		child = &entity.Comment{Text: "child", AuthorID: user.ID, PostID: post.ID, ParentID: &parentID}
		if err := tx.InsertComments([]*entity.Comment{child}); err != nil {
			return err
		}
		_, err := tx.InsertAncestorEdges([]*entity.AncestorEdge{
			entity.NewSelfEdge(parent.ID),
			entity.NewPostEdge(parent.ID, post.ID, 1),
			entity.NewSelfEdge(child.ID),
			entity.NewCommentEdge(child.ID, parent.ID, 1),
			entity.NewPostEdge(child.ID, post.ID, 2),
		})
		return err
	}))

	refresh := func() {
		require.NoError(t, store.InTx(ctx, func(tx repo.WriteTx) error {
			if err := tx.RefreshCommentPoints([]int{parent.ID, child.ID}); err != nil {
				return err
			}
			return tx.RefreshPostPoints([]int{post.ID})
		}))
	}
	require.NoError(t, store.InTx(ctx, func(tx repo.WriteTx) error {
		if _, err := tx.InsertCommentVotes([]entity.VoteKey{{UserID: voter.ID, TargetID: child.ID}}); err != nil {
			return err
		}
		_, err := tx.InsertPostVotes([]entity.VoteKey{{UserID: voter.ID, TargetID: post.ID}})
		return err
	}))

	for i := 0; i < 2; i++ {
		refresh()
		storedParent, _ := store.Comment(parent.ID)
		storedChild, _ := store.Comment(child.ID)
		storedPost, _ := store.Post(post.ID)
		assert.Equal(t, 1, storedParent.Points)
		assert.Equal(t, 1, storedChild.Points)
		assert.Equal(t, 2, storedPost.Points)
	}
}

func TestStore_InsertAncestorEdgesSkipsExisting(t *testing.T) {
	store := NewStore()
	user := store.AddUser("alice")
	post := store.AddPost(user.ID, "Post")

	var inserted []int64
	require.NoError(t, store.InTx(context.Background(), func(tx repo.WriteTx) error {
		comment := &entity.Comment{Text: "x", AuthorID: user.ID, PostID: post.ID}
		if err := tx.InsertComments([]*entity.Comment{comment}); err != nil {
			return err
		}
		edges := []*entity.AncestorEdge{entity.NewSelfEdge(comment.ID), entity.NewPostEdge(comment.ID, post.ID, 1)}
		for i := 0; i < 2; i++ {
			n, err := tx.InsertAncestorEdges(edges)
			if err != nil {
				return err
			}
			inserted = append(inserted, n)
		}
		return nil
	}))
	assert.Equal(t, []int64{2, 0}, inserted)
}

func TestStore_RefreshWithoutEdgesKeepsOwnVotes(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	user := store.AddUser("alice")
	voter := store.AddUser("bob")
	post := store.AddPost(user.ID, "Post")

	var legacy *entity.Comment
	require.NoError(t, store.InTx(ctx, func(tx repo.WriteTx) error {
		// комментарий из старой схемы: ребер предков еще нет
		legacy = &entity.Comment{Text: "legacy", AuthorID: user.ID, PostID: post.ID}
		if err := tx.InsertComments([]*entity.Comment{legacy}); err != nil {
			return err
		}
		if _, err := tx.InsertCommentVotes([]entity.VoteKey{
			{UserID: voter.ID, TargetID: legacy.ID},
			{UserID: user.ID, TargetID: legacy.ID},
		}); err != nil {
			return err
		}
		return tx.RefreshCommentPoints([]int{legacy.ID})
	}))

	stored, ok := store.Comment(legacy.ID)
	require.True(t, ok)
	assert.Equal(t, 2, stored.Points)
}

func TestStore_UpdateCommentText(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	user := store.AddUser("alice")
	post := store.AddPost(user.ID, "Post")

	var comment *entity.Comment
	require.NoError(t, store.InTx(ctx, func(tx repo.WriteTx) error {
		comment = &entity.Comment{Text: "draft", AuthorID: user.ID, PostID: post.ID}
		return tx.InsertComments([]*entity.Comment{comment})
	}))

	var updated *entity.Comment
	require.NoError(t, store.InTx(ctx, func(tx repo.WriteTx) error {
		var err error
		updated, err = tx.UpdateCommentText(comment.ID, "final")
		return err
	}))
	assert.Equal(t, "final", updated.Text)
	stored, _ := store.Comment(comment.ID)
	assert.Equal(t, "final", stored.Text)

	err := store.InTx(ctx, func(tx repo.WriteTx) error {
		if _, err := tx.MarkCommentsDeleted([]int{comment.ID}); err != nil {
			return err
		}
		_, err := tx.UpdateCommentText(comment.ID, "again")
		return err
	})
	assert.ErrorIs(t, err, repo.ErrCommentNotFound)

	err = store.InTx(ctx, func(tx repo.WriteTx) error {
		_, err := tx.UpdateCommentText(404, "nobody")
		return err
	})
	assert.ErrorIs(t, err, repo.ErrCommentNotFound)
}

func TestStore_GetRecentComments(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	user := store.AddUser("alice")
	post := store.AddPost(user.ID, "Post")

	var ids []int
	require.NoError(t, store.InTx(ctx, func(tx repo.WriteTx) error {
		for _, text := range []string{"one", "two", "three"} {
			comment := &entity.Comment{Text: text, AuthorID: user.ID, PostID: post.ID}
			if err := tx.InsertComments([]*entity.Comment{comment}); err != nil {
				return err
			}
			ids = append(ids, comment.ID)
		}
		_, err := tx.MarkCommentsDeleted([]int{ids[1]})
		return err
	}))

	recent, err := store.GetRecentComments(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, ids[2], recent[0].ID)
	assert.Equal(t, ids[0], recent[1].ID)
	assert.Equal(t, "alice", recent[0].Username)
	assert.Equal(t, "Post", recent[0].PostTitle)

	recent, err = store.GetRecentComments(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, ids[0], recent[0].ID)

	recent, err = store.GetRecentComments(ctx, 5, 10)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestStore_Notifications(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	alice := store.AddUser("alice")
	bob := store.AddUser("bob")

	require.NoError(t, store.InTx(ctx, func(tx repo.WriteTx) error {
		return tx.InsertNotifications([]*entity.Notification{
			{RecipientID: alice.ID, ActorID: bob.ID, Type: entity.CommentOnPost, Message: "first"},
			{RecipientID: alice.ID, ActorID: bob.ID, Type: entity.ReplyToComment, Message: "second"},
			{RecipientID: bob.ID, ActorID: alice.ID, Type: entity.ReplyToComment, Message: "for bob"},
		})
	}))
	before := store.Notifications()

	list, err := store.GetNotifications(ctx, alice.ID, 0, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "second", list[0].Message)
	assert.Equal(t, "bob", list[0].ActorUsername)

	unread, err := store.CountUnread(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, unread)

	require.NoError(t, store.MarkNotificationRead(ctx, list[0].ID, alice.ID))
	assert.ErrorIs(t, store.MarkNotificationRead(ctx, list[1].ID, bob.ID), repo.ErrNotificationNotFound)
	assert.ErrorIs(t, store.MarkNotificationRead(ctx, 404, alice.ID), repo.ErrNotificationNotFound)

	unread, err = store.CountUnread(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, unread)
	// ранее выданные копии не меняются
	assert.False(t, before[1].IsRead)
}
