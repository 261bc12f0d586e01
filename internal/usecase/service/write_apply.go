package service

import (
	"forum-backend/internal/entity"
	"forum-backend/internal/repo"
	"sort"
	"strings"
)

// commentDraft новый комментарий вместе с уже проверенными постом, родителем и автором
type commentDraft struct {
	comment  *entity.Comment
	post     *entity.Post
	parent   *entity.Comment
	username string
}

// writeApplier применяет события внутри одной транзакции. Используется воркером и синхронным путем записи
type writeApplier struct {
	ancestors *AncestorIndex
}

func newWriteApplier(ancestors *AncestorIndex) *writeApplier {
	return &writeApplier{
		ancestors: ancestors,
	}
}

// newDraft собирает комментарий. Корень ответа наследуется от родителя
func newDraft(event *entity.WriteEvent, post *entity.Post, parent *entity.Comment, username string) *commentDraft {
	comment := &entity.Comment{
		Text:     strings.TrimSpace(event.Text),
		AuthorID: event.UserID,
		PostID:   post.ID,
	}
	if parent != nil {
		parentID := parent.ID
		comment.ParentID = &parentID
		rootID := parent.ID
		if parent.RootID != nil {
			rootID = *parent.RootID
		}
		comment.RootID = &rootID
	}
	return &commentDraft{comment: comment, post: post, parent: parent, username: username}
}

// persistComments вставляет комментарии, проставляет корни верхнему уровню, строит ребра предков и уведомления
func (a *writeApplier) persistComments(tx repo.WriteTx, drafts []*commentDraft) error {
	if len(drafts) == 0 {
		return nil
	}
	comments := make([]*entity.Comment, 0, len(drafts))
	for _, draft := range drafts {
		comments = append(comments, draft.comment)
	}
	if err := tx.InsertComments(comments); err != nil {
		return err
	}

	var topLevel []int
	for _, comment := range comments {
		if comment.ParentID == nil {
			rootID := comment.ID
			comment.RootID = &rootID
			topLevel = append(topLevel, comment.ID)
		}
	}
	if err := tx.SetRootsToSelf(topLevel); err != nil {
		return err
	}

	if _, err := a.ancestors.CreateEdges(tx, comments); err != nil {
		return err
	}

	var notifications []*entity.Notification
	for _, draft := range drafts {
		notifications = append(notifications, entity.NewCommentNotifications(draft.comment, draft.post, draft.parent, draft.username)...)
	}
	return tx.InsertNotifications(notifications)
}

// Apply принимает пачку событий: убирает повторы request_id, закрепляет их в журнале идемпотентности
// и применяет принятые события в фиксированном порядке типов. Ошибки проверки ссылок не ошибки пачки:
// такие события отбрасываются
func (a *writeApplier) Apply(tx repo.WriteTx, events []*entity.WriteEvent) (*entity.BatchResult, error) {
	result := &entity.BatchResult{Entries: len(events)}

	seen := make(map[string]struct{}, len(events))
	var records []*entity.IdempotencyRecord
	var candidates []*entity.WriteEvent
	for _, event := range events {
		// request_id длиннее колонки журнала уронил бы всю транзакцию и пачка выдавалась бы снова
		if event.RequestID == "" || len(event.RequestID) > entity.MaxRequestIDLength || !event.Type.IsValid() {
			result.Dropped++
			continue
		}
		if _, ok := seen[event.RequestID]; ok {
			result.Duplicates++
			continue
		}
		seen[event.RequestID] = struct{}{}
		records = append(records, &entity.IdempotencyRecord{RequestID: event.RequestID, EventType: event.Type})
		candidates = append(candidates, event)
	}

	claimedIDs, err := tx.ClaimRequests(records)
	if err != nil {
		return nil, err
	}
	claimed := make(map[string]struct{}, len(claimedIDs))
	for _, id := range claimedIDs {
		claimed[id] = struct{}{}
	}

	byType := make(map[entity.WriteEventType][]*entity.WriteEvent)
	for _, event := range candidates {
		if _, ok := claimed[event.RequestID]; !ok {
			result.Duplicates++
			continue
		}
		result.Claimed++
		byType[event.Type] = append(byType[event.Type], event)
	}

	threadPosts := make(map[int]struct{})
	changedPosts := make(map[int]struct{})
	changedComments := make(map[int]struct{})

	for _, eventType := range entity.WriteEventApplyOrder {
		batch := byType[eventType]
		if len(batch) == 0 {
			continue
		}
		var dropped int
		switch eventType {
		case entity.CommentAddEvent:
			var added []*entity.Comment
			added, dropped, err = a.applyCommentAdds(tx, batch)
			for _, comment := range added {
				threadPosts[comment.PostID] = struct{}{}
			}
			result.CommentsAdded += len(added)
		case entity.CommentDeleteEvent:
			var marked []*entity.Comment
			marked, dropped, err = a.applyCommentDeletes(tx, batch)
			for _, comment := range marked {
				threadPosts[comment.PostID] = struct{}{}
			}
			result.CommentsMarked += len(marked)
		case entity.PostVoteAddEvent, entity.PostVoteRemoveEvent:
			var changed []entity.VoteKey
			changed, dropped, err = a.applyPostVotes(tx, batch, eventType == entity.PostVoteRemoveEvent)
			for _, key := range changed {
				changedPosts[key.TargetID] = struct{}{}
			}
			result.VotesChanged += len(changed)
		case entity.CommentVoteAddEvent, entity.CommentVoteRemoveEvent:
			var changed []entity.VoteKey
			changed, dropped, err = a.applyCommentVotes(tx, batch, eventType == entity.CommentVoteRemoveEvent)
			for _, key := range changed {
				changedComments[key.TargetID] = struct{}{}
			}
			result.VotesChanged += len(changed)
		}
		if err != nil {
			return nil, err
		}
		result.Dropped += dropped
	}

	votedThreads, err := a.refreshPoints(tx, keys(changedPosts), keys(changedComments))
	if err != nil {
		return nil, err
	}
	for _, postID := range votedThreads {
		threadPosts[postID] = struct{}{}
	}

	result.ThreadPostIDs = keys(threadPosts)
	return result, nil
}

func (a *writeApplier) applyCommentAdds(tx repo.WriteTx, events []*entity.WriteEvent) ([]*entity.Comment, int, error) {
	var postIDs, parentIDs, userIDs []int
	for _, event := range events {
		postIDs = append(postIDs, event.PostID)
		userIDs = append(userIDs, event.UserID)
		if event.ParentID != nil {
			parentIDs = append(parentIDs, *event.ParentID)
		}
	}
	posts, err := tx.GetPosts(postIDs)
	if err != nil {
		return nil, 0, err
	}
	parents, err := tx.GetComments(parentIDs)
	if err != nil {
		return nil, 0, err
	}
	users, err := tx.GetUsers(userIDs)
	if err != nil {
		return nil, 0, err
	}

	dropped := 0
	var drafts []*commentDraft
	for _, event := range events {
		post, postOK := posts[event.PostID]
		user, userOK := users[event.UserID]
		if !postOK || !userOK || strings.TrimSpace(event.Text) == "" {
			dropped++
			continue
		}
		var parent *entity.Comment
		if event.ParentID != nil {
			p, ok := parents[*event.ParentID]
			if !ok || p.PostID != event.PostID {
				dropped++
				continue
			}
			parent = p
		}
		drafts = append(drafts, newDraft(event, post, parent, user.Username))
	}

	if err := a.persistComments(tx, drafts); err != nil {
		return nil, 0, err
	}
	added := make([]*entity.Comment, 0, len(drafts))
	for _, draft := range drafts {
		added = append(added, draft.comment)
	}
	return added, dropped, nil
}

func (a *writeApplier) applyCommentDeletes(tx repo.WriteTx, events []*entity.WriteEvent) ([]*entity.Comment, int, error) {
	var ids []int
	for _, event := range events {
		ids = append(ids, event.CommentID)
	}
	comments, err := tx.GetComments(ids)
	if err != nil {
		return nil, 0, err
	}

	dropped := 0
	var toMark []int
	for _, event := range events {
		comment, ok := comments[event.CommentID]
		if !ok || comment.AuthorID != event.UserID || comment.IsDeleted {
			dropped++
			continue
		}
		toMark = append(toMark, comment.ID)
	}

	markedIDs, err := tx.MarkCommentsDeleted(toMark)
	if err != nil {
		return nil, 0, err
	}
	marked := make([]*entity.Comment, 0, len(markedIDs))
	for _, id := range markedIDs {
		marked = append(marked, comments[id])
	}
	return marked, dropped, nil
}

func (a *writeApplier) applyPostVotes(tx repo.WriteTx, events []*entity.WriteEvent, remove bool) ([]entity.VoteKey, int, error) {
	voteKeys := uniqueVoteKeys(events, func(event *entity.WriteEvent) int { return event.PostID })
	if remove {
		deleted, err := tx.DeletePostVotes(voteKeys)
		return deleted, 0, err
	}

	var postIDs, userIDs []int
	for _, key := range voteKeys {
		postIDs = append(postIDs, key.TargetID)
		userIDs = append(userIDs, key.UserID)
	}
	posts, err := tx.GetPosts(postIDs)
	if err != nil {
		return nil, 0, err
	}
	users, err := tx.GetUsers(userIDs)
	if err != nil {
		return nil, 0, err
	}
	valid, dropped := filterVoteKeys(voteKeys, func(key entity.VoteKey) bool {
		_, postOK := posts[key.TargetID]
		_, userOK := users[key.UserID]
		return postOK && userOK
	})
	inserted, err := tx.InsertPostVotes(valid)
	return inserted, dropped, err
}

func (a *writeApplier) applyCommentVotes(tx repo.WriteTx, events []*entity.WriteEvent, remove bool) ([]entity.VoteKey, int, error) {
	voteKeys := uniqueVoteKeys(events, func(event *entity.WriteEvent) int { return event.CommentID })
	if remove {
		deleted, err := tx.DeleteCommentVotes(voteKeys)
		return deleted, 0, err
	}

	var commentIDs, userIDs []int
	for _, key := range voteKeys {
		commentIDs = append(commentIDs, key.TargetID)
		userIDs = append(userIDs, key.UserID)
	}
	comments, err := tx.GetComments(commentIDs)
	if err != nil {
		return nil, 0, err
	}
	users, err := tx.GetUsers(userIDs)
	if err != nil {
		return nil, 0, err
	}
	valid, dropped := filterVoteKeys(voteKeys, func(key entity.VoteKey) bool {
		_, commentOK := comments[key.TargetID]
		_, userOK := users[key.UserID]
		return commentOK && userOK
	})
	inserted, err := tx.InsertCommentVotes(valid)
	return inserted, dropped, err
}

// refreshPoints пересчитывает очки с нуля: у комментариев, за которые голосовали, у всех их
// комментариев-предков и у постов, затронутых прямо или через комментарии. Возвращает посты,
// в деревьях которых изменились очки комментариев
func (a *writeApplier) refreshPoints(tx repo.WriteTx, postIDs, commentIDs []int) ([]int, error) {
	posts := make(map[int]struct{}, len(postIDs))
	for _, id := range postIDs {
		posts[id] = struct{}{}
	}
	comments := make(map[int]struct{}, len(commentIDs))
	threads := make(map[int]struct{})

	if len(commentIDs) > 0 {
		edges, err := tx.GetAncestorEdges(commentIDs)
		if err != nil {
			return nil, err
		}
		ancestorComments, ancestorPosts := entity.SplitAncestors(edges)
		for _, id := range ancestorComments {
			comments[id] = struct{}{}
		}
		for _, id := range ancestorPosts {
			posts[id] = struct{}{}
		}
		// комментарии без ребер тоже пересчитываются вместе со своими постами
		voted, err := tx.GetComments(commentIDs)
		if err != nil {
			return nil, err
		}
		for _, comment := range voted {
			comments[comment.ID] = struct{}{}
			posts[comment.PostID] = struct{}{}
			threads[comment.PostID] = struct{}{}
		}
	}

	if err := tx.RefreshCommentPoints(keys(comments)); err != nil {
		return nil, err
	}
	if err := tx.RefreshPostPoints(keys(posts)); err != nil {
		return nil, err
	}
	return keys(threads), nil
}

func uniqueVoteKeys(events []*entity.WriteEvent, target func(*entity.WriteEvent) int) []entity.VoteKey {
	seen := make(map[entity.VoteKey]struct{}, len(events))
	var result []entity.VoteKey
	for _, event := range events {
		key := entity.VoteKey{UserID: event.UserID, TargetID: target(event)}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, key)
	}
	return result
}

func filterVoteKeys(voteKeys []entity.VoteKey, valid func(entity.VoteKey) bool) ([]entity.VoteKey, int) {
	var result []entity.VoteKey
	dropped := 0
	for _, key := range voteKeys {
		if !valid(key) {
			dropped++
			continue
		}
		result = append(result, key)
	}
	return result, dropped
}

func keys(set map[int]struct{}) []int {
	result := make([]int, 0, len(set))
	for id := range set {
		result = append(result, id)
	}
	sort.Ints(result)
	return result
}
