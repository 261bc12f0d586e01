package entity

import (
	"time"
)

const (
	DefaultFeedLimit = 30
	MaxFeedLimit     = 100
)

type Post struct {
	ID        int       `json:"id" db:"id"`
	Title     string    `json:"title" db:"title"`
	URL       *string   `json:"url" db:"url"`
	Text      *string   `json:"text" db:"text"`
	AuthorID  int       `json:"author_id" db:"user_id"`
	Points    int       `json:"points" db:"points"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type Feed struct {
	Posts []*Post `json:"posts"`
	Skip  int     `json:"skip"`
	Limit int     `json:"limit"`
}

type GetFeedRequest struct {
	Skip  int `query:"skip"`
	Limit int `query:"limit"`
}

// Normalize приводит параметры пагинации к допустимым значениям
func (r *GetFeedRequest) Normalize() {
	r.Skip, r.Limit = normalizePage(r.Skip, r.Limit, DefaultFeedLimit, MaxFeedLimit)
}

func normalizePage(skip, limit, defaultLimit, maxLimit int) (int, int) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return skip, limit
}
