package entity

import (
	"fmt"
	"time"
)

const (
	DefaultNotificationsLimit = 20
	MaxNotificationsLimit     = 100
)

type NotificationType string

const (
	CommentOnPost  NotificationType = "comment_on_post"
	ReplyToComment NotificationType = "reply_to_comment"
)

type Notification struct {
	ID          int              `json:"id" db:"id"`
	RecipientID int              `json:"recipient_id" db:"recipient_id"`
	ActorID     int              `json:"actor_id" db:"actor_id"`
	Type        NotificationType `json:"type" db:"type"`
	PostID      int              `json:"post_id" db:"post_id"`
	CommentID   int              `json:"comment_id" db:"comment_id"`
	Message     string           `json:"message" db:"message"`
	IsRead      bool             `json:"is_read" db:"is_read"`
	CreatedAt   time.Time        `json:"created_at" db:"created_at"`

	// ActorUsername заполняется только при чтении
	ActorUsername string `json:"actor_username,omitempty" db:"actor_username"`
}

type GetNotificationsRequest struct {
	UserID int `json:"-"`
	Skip   int `query:"skip"`
	Limit  int `query:"limit"`
}

func (r *GetNotificationsRequest) Normalize() {
	r.Skip, r.Limit = normalizePage(r.Skip, r.Limit, DefaultNotificationsLimit, MaxNotificationsLimit)
}

type MarkNotificationReadRequest struct {
	UserID         int `json:"-"`
	NotificationID int `json:"-"`
}

type UnreadCount struct {
	UnreadCount int `json:"unread_count"`
}

// NewCommentNotifications строит уведомления о новом комментарии: автору поста и автору родительского
// комментария. Себе уведомления не отправляются
func NewCommentNotifications(comment *Comment, post *Post, parent *Comment, actorName string) []*Notification {
	var result []*Notification
	if post != nil && post.AuthorID != comment.AuthorID {
		result = append(result, &Notification{
			RecipientID: post.AuthorID,
			ActorID:     comment.AuthorID,
			Type:        CommentOnPost,
			PostID:      comment.PostID,
			CommentID:   comment.ID,
			Message:     fmt.Sprintf("%s commented on your post '%s'", actorName, post.Title),
		})
	}
	if parent != nil && parent.AuthorID != comment.AuthorID {
		result = append(result, &Notification{
			RecipientID: parent.AuthorID,
			ActorID:     comment.AuthorID,
			Type:        ReplyToComment,
			PostID:      comment.PostID,
			CommentID:   comment.ID,
			Message:     fmt.Sprintf("%s replied to your comment", actorName),
		})
	}
	return result
}
