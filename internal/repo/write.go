package repo

import (
	"context"
	"errors"
	"forum-backend/internal/entity"
)

type WriteStore interface {
	// InTx выполняет fn в одной транзакции. Если fn вернула ошибку, все изменения откатываются
	InTx(ctx context.Context, fn func(tx WriteTx) error) error
}

// WriteTx операции хранилища, доступные внутри транзакции. Все методы работают пачками
type WriteTx interface {
	// ClaimRequests вставляет отметки идемпотентности, пропуская уже существующие. Возвращает принятые request_id
	ClaimRequests(records []*entity.IdempotencyRecord) ([]string, error)

	// GetUsers возвращает существующих пользователей по ID
	GetUsers(ids []int) (map[int]*entity.User, error)
	// GetPosts возвращает существующие посты по ID
	GetPosts(ids []int) (map[int]*entity.Post, error)
	// GetComments возвращает существующие комментарии по ID
	GetComments(ids []int) (map[int]*entity.Comment, error)
	// GetPostComments возвращает все комментарии поста по возрастанию ID
	GetPostComments(postID int) ([]*entity.Comment, error)

	// InsertComments вставляет комментарии и проставляет им ID и время создания
	InsertComments(comments []*entity.Comment) error
	// SetRootsToSelf проставляет root_id = id комментариям верхнего уровня, у которых корень не задан
	SetRootsToSelf(ids []int) error
	// MarkCommentsDeleted помечает комментарии удаленными и возвращает ID тех, что действительно изменились
	MarkCommentsDeleted(ids []int) ([]int, error)
	// UpdateCommentText меняет текст неудаленного комментария и возвращает его новое состояние.
	// Для удаленного или отсутствующего комментария возвращает ErrCommentNotFound
	UpdateCommentText(id int, text string) (*entity.Comment, error)

	// GetAncestorEdges возвращает ребра предков указанных комментариев
	GetAncestorEdges(descendantIDs []int) ([]*entity.AncestorEdge, error)
	// InsertAncestorEdges вставляет ребра, пропуская существующие. Возвращает число вставленных
	InsertAncestorEdges(edges []*entity.AncestorEdge) (int64, error)
	// DeleteAncestorEdges удаляет все ребра указанных комментариев
	DeleteAncestorEdges(descendantIDs []int) (int64, error)

	// InsertNotifications добавляет уведомления
	InsertNotifications(notifications []*entity.Notification) error

	// InsertPostVotes вставляет голоса за посты, пропуская существующие. Возвращает вставленные пары
	InsertPostVotes(keys []entity.VoteKey) ([]entity.VoteKey, error)
	// DeletePostVotes удаляет голоса за посты. Возвращает удаленные пары
	DeletePostVotes(keys []entity.VoteKey) ([]entity.VoteKey, error)
	// InsertCommentVotes вставляет голоса за комментарии, пропуская существующие
	InsertCommentVotes(keys []entity.VoteKey) ([]entity.VoteKey, error)
	// DeleteCommentVotes удаляет голоса за комментарии
	DeleteCommentVotes(keys []entity.VoteKey) ([]entity.VoteKey, error)

	// RefreshPostPoints пересчитывает очки постов с нуля: прямые голоса плюс голоса за все комментарии поста
	RefreshPostPoints(postIDs []int) error
	// RefreshCommentPoints пересчитывает очки комментариев с нуля: голоса за комментарий и всех его потомков.
	// Комментарий без ребер предков получает только собственные голоса
	RefreshCommentPoints(commentIDs []int) error
	// AddCommentPoints прибавляет delta к очкам комментариев. Возвращает число измененных строк
	AddCommentPoints(ids []int, delta int) (int64, error)
	// AddPostPoints прибавляет delta к очкам постов. Возвращает число измененных строк
	AddPostPoints(ids []int, delta int) (int64, error)
}

type ReadStore interface {
	// GetPost возвращает пост по ID
	GetPost(ctx context.Context, postID int) (*entity.Post, error)
	// GetThreadComments возвращает комментарии поста вместе с именами авторов по возрастанию ID
	GetThreadComments(ctx context.Context, postID int) ([]*entity.CommentNode, error)
	// GetFeed возвращает страницу ленты, новые посты первыми
	GetFeed(ctx context.Context, skip, limit int) ([]*entity.Post, error)
	// GetRecentComments возвращает страницу неудаленных комментариев всех постов, новые первыми
	GetRecentComments(ctx context.Context, skip, limit int) ([]*entity.RecentComment, error)
}

type NotificationStore interface {
	// GetNotifications возвращает уведомления получателя с именами авторов, новые первыми
	GetNotifications(ctx context.Context, recipientID, skip, limit int) ([]*entity.Notification, error)
	// MarkNotificationRead отмечает уведомление прочитанным. Чужое или отсутствующее уведомление это ErrNotificationNotFound
	MarkNotificationRead(ctx context.Context, notificationID, recipientID int) error
	// CountUnread число непрочитанных уведомлений получателя
	CountUnread(ctx context.Context, recipientID int) (int, error)
}

var (
	ErrPostNotFound         = errors.New("post not found")
	ErrCommentNotFound      = errors.New("comment not found")
	ErrNotificationNotFound = errors.New("notification not found")
)
