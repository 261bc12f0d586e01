package inmemory

import (
	"context"
	"forum-backend/internal/entity"
	"forum-backend/internal/repo"
	"sort"
	"sync"
	"time"
)

type state struct {
	users         map[int]*entity.User
	posts         map[int]*entity.Post
	comments      map[int]*entity.Comment
	edges         map[int][]*entity.AncestorEdge
	postVotes     map[entity.VoteKey]struct{}
	commentVotes  map[entity.VoteKey]struct{}
	notifications []*entity.Notification
	requests      map[string]entity.WriteEventType

	nextUserID         int
	nextPostID         int
	nextCommentID      int
	nextNotificationID int
}

func newState() *state {
	return &state{
		users:        make(map[int]*entity.User),
		posts:        make(map[int]*entity.Post),
		comments:     make(map[int]*entity.Comment),
		edges:        make(map[int][]*entity.AncestorEdge),
		postVotes:    make(map[entity.VoteKey]struct{}),
		commentVotes: make(map[entity.VoteKey]struct{}),
		requests:     make(map[string]entity.WriteEventType),
	}
}

// clone копия состояния для транзакции. Ребра и уведомления после вставки не меняются, поэтому копируются только срезы
func (s *state) clone() *state {
	c := newState()
	for id, user := range s.users {
		u := *user
		c.users[id] = &u
	}
	for id, post := range s.posts {
		p := *post
		c.posts[id] = &p
	}
	for id, comment := range s.comments {
		cm := *comment
		c.comments[id] = &cm
	}
	for id, edges := range s.edges {
		c.edges[id] = append([]*entity.AncestorEdge(nil), edges...)
	}
	for key := range s.postVotes {
		c.postVotes[key] = struct{}{}
	}
	for key := range s.commentVotes {
		c.commentVotes[key] = struct{}{}
	}
	for id, eventType := range s.requests {
		c.requests[id] = eventType
	}
	c.notifications = append([]*entity.Notification(nil), s.notifications...)
	c.nextUserID = s.nextUserID
	c.nextPostID = s.nextPostID
	c.nextCommentID = s.nextCommentID
	c.nextNotificationID = s.nextNotificationID
	return c
}

// Store хранилище в памяти. Транзакции выполняются последовательно над копией состояния,
// копия становится текущим состоянием только при успешном завершении
type Store struct {
	mu    sync.RWMutex
	state *state
	now   func() time.Time
}

func NewStore() *Store {
	return &Store{
		state: newState(),
		now:   time.Now,
	}
}

func (s *Store) InTx(ctx context.Context, fn func(tx repo.WriteTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(&writeTx{state: work, now: s.now}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.state = work
	return nil
}

// AddUser добавляет пользователя
func (s *Store) AddUser(username string) *entity.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.nextUserID++
	user := &entity.User{ID: s.state.nextUserID, Username: username}
	s.state.users[user.ID] = user
	u := *user
	return &u
}

// AddPost добавляет пост
func (s *Store) AddPost(authorID int, title string) *entity.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.nextPostID++
	post := &entity.Post{ID: s.state.nextPostID, Title: title, AuthorID: authorID, CreatedAt: s.now()}
	s.state.posts[post.ID] = post
	p := *post
	return &p
}

func (s *Store) Comment(id int) (*entity.Comment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	comment, ok := s.state.comments[id]
	if !ok {
		return nil, false
	}
	c := *comment
	return &c, true
}

func (s *Store) Post(id int) (*entity.Post, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	post, ok := s.state.posts[id]
	if !ok {
		return nil, false
	}
	p := *post
	return &p, true
}

// AncestorEdges ребра комментария по возрастанию глубины
func (s *Store) AncestorEdges(commentID int) []*entity.AncestorEdge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedEdges(s.state.edges[commentID])
}

func (s *Store) Notifications() []*entity.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*entity.Notification(nil), s.state.notifications...)
}

// ClaimedRequests число принятых request_id
func (s *Store) ClaimedRequests() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.state.requests)
}

func (s *Store) CommentCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.state.comments)
}

func (s *Store) GetPost(ctx context.Context, postID int) (*entity.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	post, ok := s.Post(postID)
	if !ok {
		return nil, repo.ErrPostNotFound
	}
	return post, nil
}

func (s *Store) GetThreadComments(ctx context.Context, postID int) ([]*entity.CommentNode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var nodes []*entity.CommentNode
	for _, comment := range s.state.comments {
		if comment.PostID != postID {
			continue
		}
		c := *comment
		node := &entity.CommentNode{Comment: &c}
		if user, ok := s.state.users[c.AuthorID]; ok {
			node.Username = user.Username
		}
		nodes = append(nodes, node)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	return nodes, nil
}

func (s *Store) GetFeed(ctx context.Context, skip, limit int) ([]*entity.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	posts := make([]*entity.Post, 0, len(s.state.posts))
	for _, post := range s.state.posts {
		p := *post
		posts = append(posts, &p)
	}
	sort.Slice(posts, func(i, j int) bool {
		if posts[i].CreatedAt.Equal(posts[j].CreatedAt) {
			return posts[i].ID > posts[j].ID
		}
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})
	return page(posts, skip, limit), nil
}

func (s *Store) GetRecentComments(ctx context.Context, skip, limit int) ([]*entity.RecentComment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*entity.RecentComment
	for _, comment := range s.state.comments {
		post, ok := s.state.posts[comment.PostID]
		if comment.IsDeleted || !ok {
			continue
		}
		c := *comment
		recent := &entity.RecentComment{Comment: &c, PostTitle: post.Title}
		if user, ok := s.state.users[c.AuthorID]; ok {
			recent.Username = user.Username
		}
		result = append(result, recent)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return page(result, skip, limit), nil
}

func (s *Store) GetNotifications(ctx context.Context, recipientID, skip, limit int) ([]*entity.Notification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*entity.Notification
	for _, notification := range s.state.notifications {
		if notification.RecipientID != recipientID {
			continue
		}
		actor, ok := s.state.users[notification.ActorID]
		if !ok {
			continue
		}
		n := *notification
		n.ActorUsername = actor.Username
		result = append(result, &n)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return page(result, skip, limit), nil
}

func (s *Store) MarkNotificationRead(ctx context.Context, notificationID, recipientID int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, notification := range s.state.notifications {
		if notification.ID == notificationID && notification.RecipientID == recipientID {
			// копия: срез уведомлений разделяется с копиями состояния
			n := *notification
			n.IsRead = true
			s.state.notifications[i] = &n
			return nil
		}
	}
	return repo.ErrNotificationNotFound
}

func (s *Store) CountUnread(ctx context.Context, recipientID int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, notification := range s.state.notifications {
		if notification.RecipientID == recipientID && !notification.IsRead {
			count++
		}
	}
	return count, nil
}

func page[T any](items []T, skip, limit int) []T {
	if skip >= len(items) {
		return []T{}
	}
	items = items[skip:]
	if limit < len(items) {
		items = items[:limit]
	}
	return items
}

func sortedEdges(edges []*entity.AncestorEdge) []*entity.AncestorEdge {
	result := make([]*entity.AncestorEdge, 0, len(edges))
	for _, edge := range edges {
		e := *edge
		result = append(result, &e)
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].Depth < result[j].Depth })
	return result
}
