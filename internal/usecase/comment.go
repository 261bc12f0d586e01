package usecase

import (
	"context"
	"errors"
	"forum-backend/internal/entity"
)

type Comment interface {
	// AddComment сразу сохраняет комментарий, строит его ребра предков и уведомления
	AddComment(ctx context.Context, request *entity.AddCommentRequest) (*entity.Comment, error)
	// DeleteComment помечает комментарий удаленным. Удалить можно только свой комментарий
	DeleteComment(ctx context.Context, request *entity.DeleteCommentRequest) error
	// EditComment меняет текст своего комментария. Удаленный комментарий не редактируется
	EditComment(ctx context.Context, request *entity.EditCommentRequest) (*entity.Comment, error)
	// GetThread возвращает дерево комментариев поста
	GetThread(ctx context.Context, request *entity.GetThreadRequest) (*entity.Thread, error)
	// GetRecentComments возвращает последние комментарии всех постов
	GetRecentComments(ctx context.Context, request *entity.GetRecentCommentsRequest) (*entity.RecentComments, error)
}

type Notification interface {
	GetNotifications(ctx context.Context, request *entity.GetNotificationsRequest) ([]*entity.Notification, error)
	// MarkRead отмечает уведомление пользователя прочитанным
	MarkRead(ctx context.Context, request *entity.MarkNotificationReadRequest) error
	UnreadCount(ctx context.Context, userID int) (*entity.UnreadCount, error)
}

type Vote interface {
	// VotePost ставит или снимает голос за пост
	VotePost(ctx context.Context, request *entity.VoteRequest) (*entity.VoteResult, error)
	// VoteComment ставит или снимает голос за комментарий и каскадно меняет очки предков
	VoteComment(ctx context.Context, request *entity.VoteRequest) (*entity.VoteResult, error)
}

type Feed interface {
	GetFeed(ctx context.Context, request *entity.GetFeedRequest) (*entity.Feed, error)
}

type Ancestor interface {
	// Backfill перестраивает ребра предков всех комментариев поста
	Backfill(ctx context.Context, postID int) (*entity.BackfillResult, error)
}

type CacheVersions interface {
	// Current текущая версия семейства кеша
	Current(ctx context.Context, family string) (int64, error)
	// Bump делает все ключи семейства недостижимыми
	Bump(ctx context.Context, family string) (int64, error)
	// Key строит ключ вида family:version:params
	Key(ctx context.Context, family, params string) (string, error)
}

var (
	ErrPostNotFound    = errors.New("post not found")
	ErrCommentNotFound = errors.New("comment not found")
	ErrParentNotFound  = errors.New("parent comment not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrUserForbidden   = errors.New("forbidden")

	ErrNotificationNotFound = errors.New("notification not found")
)
