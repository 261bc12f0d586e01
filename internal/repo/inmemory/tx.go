package inmemory

import (
	"errors"
	"fmt"
	"forum-backend/internal/entity"
	"forum-backend/internal/repo"
	"sort"
	"time"
)

var ErrForeignKey = errors.New("foreign key violation")

type writeTx struct {
	state *state
	now   func() time.Time
}

func (t *writeTx) ClaimRequests(records []*entity.IdempotencyRecord) ([]string, error) {
	var claimed []string
	for _, record := range records {
		if record.RequestID == "" {
			return nil, errors.New("request id is empty")
		}
		if _, ok := t.state.requests[record.RequestID]; ok {
			continue
		}
		t.state.requests[record.RequestID] = record.EventType
		claimed = append(claimed, record.RequestID)
	}
	return claimed, nil
}

func (t *writeTx) GetUsers(ids []int) (map[int]*entity.User, error) {
	result := make(map[int]*entity.User)
	for _, id := range ids {
		if user, ok := t.state.users[id]; ok {
			u := *user
			result[id] = &u
		}
	}
	return result, nil
}

func (t *writeTx) GetPosts(ids []int) (map[int]*entity.Post, error) {
	result := make(map[int]*entity.Post)
	for _, id := range ids {
		if post, ok := t.state.posts[id]; ok {
			p := *post
			result[id] = &p
		}
	}
	return result, nil
}

func (t *writeTx) GetComments(ids []int) (map[int]*entity.Comment, error) {
	result := make(map[int]*entity.Comment)
	for _, id := range ids {
		if comment, ok := t.state.comments[id]; ok {
			c := *comment
			result[id] = &c
		}
	}
	return result, nil
}

func (t *writeTx) GetPostComments(postID int) ([]*entity.Comment, error) {
	var result []*entity.Comment
	for _, comment := range t.state.comments {
		if comment.PostID == postID {
			c := *comment
			result = append(result, &c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (t *writeTx) InsertComments(comments []*entity.Comment) error {
	now := t.now()
	for _, comment := range comments {
		if _, ok := t.state.posts[comment.PostID]; !ok {
			return fmt.Errorf("%w: post %d", ErrForeignKey, comment.PostID)
		}
		if _, ok := t.state.users[comment.AuthorID]; !ok {
			return fmt.Errorf("%w: user %d", ErrForeignKey, comment.AuthorID)
		}
		if comment.ParentID != nil {
			if _, ok := t.state.comments[*comment.ParentID]; !ok {
				return fmt.Errorf("%w: parent comment %d", ErrForeignKey, *comment.ParentID)
			}
		}
		t.state.nextCommentID++
		comment.ID = t.state.nextCommentID
		comment.CreatedAt = now
		comment.UpdatedAt = now
		c := *comment
		t.state.comments[c.ID] = &c
	}
	return nil
}

func (t *writeTx) SetRootsToSelf(ids []int) error {
	for _, id := range ids {
		comment, ok := t.state.comments[id]
		if !ok || comment.ParentID != nil || comment.RootID != nil {
			continue
		}
		rootID := id
		comment.RootID = &rootID
	}
	return nil
}

func (t *writeTx) MarkCommentsDeleted(ids []int) ([]int, error) {
	var marked []int
	now := t.now()
	for _, id := range ids {
		comment, ok := t.state.comments[id]
		if !ok || comment.IsDeleted {
			continue
		}
		comment.IsDeleted = true
		comment.Text = entity.DeletedCommentText
		comment.UpdatedAt = now
		marked = append(marked, id)
	}
	return marked, nil
}

func (t *writeTx) UpdateCommentText(id int, text string) (*entity.Comment, error) {
	comment, ok := t.state.comments[id]
	if !ok || comment.IsDeleted {
		return nil, repo.ErrCommentNotFound
	}
	comment.Text = text
	comment.UpdatedAt = t.now()
	c := *comment
	return &c, nil
}

func (t *writeTx) GetAncestorEdges(descendantIDs []int) ([]*entity.AncestorEdge, error) {
	var result []*entity.AncestorEdge
	for _, id := range uniqueInts(descendantIDs) {
		result = append(result, sortedEdges(t.state.edges[id])...)
	}
	return result, nil
}

func (t *writeTx) InsertAncestorEdges(edges []*entity.AncestorEdge) (int64, error) {
	var inserted int64
	for _, edge := range edges {
		if err := edge.Validate(); err != nil {
			return 0, err
		}
		if _, ok := t.state.comments[edge.DescendantID]; !ok {
			return 0, fmt.Errorf("%w: descendant comment %d", ErrForeignKey, edge.DescendantID)
		}
		if hasEdge(t.state.edges[edge.DescendantID], edge) {
			continue
		}
		e := *edge
		t.state.edges[edge.DescendantID] = append(t.state.edges[edge.DescendantID], &e)
		inserted++
	}
	return inserted, nil
}

func (t *writeTx) DeleteAncestorEdges(descendantIDs []int) (int64, error) {
	var deleted int64
	for _, id := range uniqueInts(descendantIDs) {
		deleted += int64(len(t.state.edges[id]))
		delete(t.state.edges, id)
	}
	return deleted, nil
}

func (t *writeTx) InsertNotifications(notifications []*entity.Notification) error {
	now := t.now()
	for _, notification := range notifications {
		t.state.nextNotificationID++
		notification.ID = t.state.nextNotificationID
		notification.CreatedAt = now
		n := *notification
		t.state.notifications = append(t.state.notifications, &n)
	}
	return nil
}

func (t *writeTx) InsertPostVotes(keys []entity.VoteKey) ([]entity.VoteKey, error) {
	return t.insertVotes(t.state.postVotes, keys, func(id int) bool {
		_, ok := t.state.posts[id]
		return ok
	})
}

func (t *writeTx) DeletePostVotes(keys []entity.VoteKey) ([]entity.VoteKey, error) {
	return deleteVotes(t.state.postVotes, keys), nil
}

func (t *writeTx) InsertCommentVotes(keys []entity.VoteKey) ([]entity.VoteKey, error) {
	return t.insertVotes(t.state.commentVotes, keys, func(id int) bool {
		_, ok := t.state.comments[id]
		return ok
	})
}

func (t *writeTx) DeleteCommentVotes(keys []entity.VoteKey) ([]entity.VoteKey, error) {
	return deleteVotes(t.state.commentVotes, keys), nil
}

func (t *writeTx) insertVotes(votes map[entity.VoteKey]struct{}, keys []entity.VoteKey, targetExists func(int) bool) ([]entity.VoteKey, error) {
	var inserted []entity.VoteKey
	for _, key := range keys {
		if _, ok := t.state.users[key.UserID]; !ok {
			return nil, fmt.Errorf("%w: user %d", ErrForeignKey, key.UserID)
		}
		if !targetExists(key.TargetID) {
			return nil, fmt.Errorf("%w: vote target %d", ErrForeignKey, key.TargetID)
		}
		if _, ok := votes[key]; ok {
			continue
		}
		votes[key] = struct{}{}
		inserted = append(inserted, key)
	}
	return inserted, nil
}

func deleteVotes(votes map[entity.VoteKey]struct{}, keys []entity.VoteKey) []entity.VoteKey {
	var deleted []entity.VoteKey
	for _, key := range keys {
		if _, ok := votes[key]; !ok {
			continue
		}
		delete(votes, key)
		deleted = append(deleted, key)
	}
	return deleted
}

func (t *writeTx) RefreshPostPoints(postIDs []int) error {
	for _, id := range uniqueInts(postIDs) {
		post, ok := t.state.posts[id]
		if !ok {
			continue
		}
		points := 0
		for key := range t.state.postVotes {
			if key.TargetID == id {
				points++
			}
		}
		for key := range t.state.commentVotes {
			if comment, ok := t.state.comments[key.TargetID]; ok && comment.PostID == id {
				points++
			}
		}
		post.Points = points
	}
	return nil
}

func (t *writeTx) RefreshCommentPoints(commentIDs []int) error {
	for _, id := range uniqueInts(commentIDs) {
		comment, ok := t.state.comments[id]
		if !ok {
			continue
		}
		points := 0
		indexed := len(t.state.edges[id]) > 0
		for key := range t.state.commentVotes {
			if !indexed {
				if key.TargetID == id {
					points++
				}
				continue
			}
			for _, edge := range t.state.edges[key.TargetID] {
				if edge.AncestorCommentID != nil && *edge.AncestorCommentID == id {
					points++
					break
				}
			}
		}
		comment.Points = points
	}
	return nil
}

func (t *writeTx) AddCommentPoints(ids []int, delta int) (int64, error) {
	var rows int64
	for _, id := range uniqueInts(ids) {
		if comment, ok := t.state.comments[id]; ok {
			comment.Points += delta
			rows++
		}
	}
	return rows, nil
}

func (t *writeTx) AddPostPoints(ids []int, delta int) (int64, error) {
	var rows int64
	for _, id := range uniqueInts(ids) {
		if post, ok := t.state.posts[id]; ok {
			post.Points += delta
			rows++
		}
	}
	return rows, nil
}

func hasEdge(edges []*entity.AncestorEdge, edge *entity.AncestorEdge) bool {
	for _, existing := range edges {
		if edge.AncestorCommentID != nil && existing.AncestorCommentID != nil &&
			*edge.AncestorCommentID == *existing.AncestorCommentID {
			return true
		}
		if edge.AncestorPostID != nil && existing.AncestorPostID != nil &&
			*edge.AncestorPostID == *existing.AncestorPostID {
			return true
		}
	}
	return false
}

func uniqueInts(ids []int) []int {
	seen := make(map[int]struct{}, len(ids))
	result := make([]int, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result
}
