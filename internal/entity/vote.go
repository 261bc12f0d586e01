package entity

// VoteKey пара (пользователь, цель голоса). Цель это пост или комментарий в зависимости от таблицы
type VoteKey struct {
	UserID   int `db:"user_id"`
	TargetID int `db:"target_id"`
}

type VoteRequest struct {
	UserID   int  `json:"-"`
	TargetID int  `json:"-"`
	Remove   bool `json:"-"`
}

// PointDeltaResult сколько строк затронул каскад изменения очков
type PointDeltaResult struct {
	CommentRows int64 `json:"comment_rows"`
	PostRows    int64 `json:"post_rows"`
}

type VoteResult struct {
	Status  string `json:"status"`
	Changed bool   `json:"changed"`
}
