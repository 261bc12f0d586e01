package entity

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	DeletedCommentText  = "[deleted]"
	MaxCommentTextRunes = 10000
)

type Comment struct {
	ID        int       `json:"id" db:"id"`
	Text      string    `json:"text" db:"text"`
	AuthorID  int       `json:"author_id" db:"user_id"`
	PostID    int       `json:"post_id" db:"post_id"`
	ParentID  *int      `json:"parent_id" db:"parent_id"`
	RootID    *int      `json:"root_id" db:"root_id"`
	IsDeleted bool      `json:"is_deleted" db:"is_deleted"`
	Points    int       `json:"points" db:"points"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// CommentNode комментарий в дереве обсуждения
type CommentNode struct {
	*Comment
	Username string         `json:"username"`
	Children []*CommentNode `json:"children"`
}

type Thread struct {
	PostID   int            `json:"post_id"`
	Comments []*CommentNode `json:"comments"`
}

type AddCommentRequest struct {
	UserID   int    `json:"-"`
	PostID   int    `json:"-"`
	ParentID *int   `json:"parent_id"`
	Text     string `json:"text"`
}

func validateText(raw string) error {
	text := strings.TrimSpace(raw)
	if text == "" {
		return errors.New("text is empty")
	}
	if utf8.RuneCountInString(text) > MaxCommentTextRunes {
		return errors.New("text is too long")
	}
	return nil
}

func (r *AddCommentRequest) IsValid() error {
	if err := validateText(r.Text); err != nil {
		return err
	}
	if r.PostID <= 0 {
		return errors.New("post id is invalid")
	}
	if r.ParentID != nil && *r.ParentID <= 0 {
		return errors.New("parent id is invalid")
	}
	return nil
}

type DeleteCommentRequest struct {
	UserID    int `json:"-"`
	CommentID int `json:"-"`
}

type EditCommentRequest struct {
	UserID    int    `json:"-"`
	CommentID int    `json:"-"`
	Text      string `json:"text"`
}

func (r *EditCommentRequest) IsValid() error {
	if err := validateText(r.Text); err != nil {
		return err
	}
	if r.CommentID <= 0 {
		return errors.New("comment id is invalid")
	}
	return nil
}

type GetThreadRequest struct {
	PostID int `json:"-"`
}

// RecentComment комментарий в общей ленте последних комментариев
type RecentComment struct {
	*Comment
	Username  string `json:"username"`
	PostTitle string `json:"post_title"`
}

type RecentComments struct {
	Comments []*RecentComment `json:"comments"`
	Skip     int              `json:"skip"`
	Limit    int              `json:"limit"`
}

type GetRecentCommentsRequest struct {
	Skip  int `query:"skip"`
	Limit int `query:"limit"`
}

func (r *GetRecentCommentsRequest) Normalize() {
	r.Skip, r.Limit = normalizePage(r.Skip, r.Limit, DefaultFeedLimit, MaxFeedLimit)
}
