package entity

import (
	"strconv"
)

type WriteEventType string

const (
	CommentAddEvent        WriteEventType = "comment.add"
	CommentDeleteEvent     WriteEventType = "comment.delete"
	PostVoteAddEvent       WriteEventType = "post.vote.add"
	PostVoteRemoveEvent    WriteEventType = "post.vote.remove"
	CommentVoteAddEvent    WriteEventType = "comment.vote.add"
	CommentVoteRemoveEvent WriteEventType = "comment.vote.remove"
)

// WriteEventApplyOrder порядок, в котором воркер применяет события одной пачки
var WriteEventApplyOrder = []WriteEventType{
	CommentAddEvent,
	CommentDeleteEvent,
	PostVoteAddEvent,
	PostVoteRemoveEvent,
	CommentVoteAddEvent,
	CommentVoteRemoveEvent,
}

func (t WriteEventType) IsValid() bool {
	for _, known := range WriteEventApplyOrder {
		if t == known {
			return true
		}
	}
	return false
}

// MaxRequestIDLength длина колонки request_id в журнале идемпотентности
const MaxRequestIDLength = 64

// Ключи полей события в логе записи
const (
	FieldType      = "type"
	FieldRequestID = "request_id"
	FieldUserID    = "user_id"
	FieldPostID    = "post_id"
	FieldParentID  = "parent_id"
	FieldCommentID = "comment_id"
	FieldText      = "text"
)

// WriteEvent отложенная мутация. После постановки в очередь не изменяется
type WriteEvent struct {
	RequestID string         `json:"request_id" msgpack:"request_id"`
	Type      WriteEventType `json:"type" msgpack:"type"`
	UserID    int            `json:"user_id" msgpack:"user_id"`
	PostID    int            `json:"post_id,omitempty" msgpack:"post_id"`
	ParentID  *int           `json:"parent_id,omitempty" msgpack:"parent_id"`
	CommentID int            `json:"comment_id,omitempty" msgpack:"comment_id"`
	Text      string         `json:"text,omitempty" msgpack:"text"`

	// EntryID идентификатор записи в логе, заполняется при чтении
	EntryID string `json:"-" msgpack:"-"`
}

func NewCommentAddEvent(userID, postID int, parentID *int, text string) *WriteEvent {
	return &WriteEvent{Type: CommentAddEvent, UserID: userID, PostID: postID, ParentID: parentID, Text: text}
}

func NewCommentDeleteEvent(userID, commentID int) *WriteEvent {
	return &WriteEvent{Type: CommentDeleteEvent, UserID: userID, CommentID: commentID}
}

func NewPostVoteEvent(userID, postID int, remove bool) *WriteEvent {
	eventType := PostVoteAddEvent
	if remove {
		eventType = PostVoteRemoveEvent
	}
	return &WriteEvent{Type: eventType, UserID: userID, PostID: postID}
}

func NewCommentVoteEvent(userID, commentID int, remove bool) *WriteEvent {
	eventType := CommentVoteAddEvent
	if remove {
		eventType = CommentVoteRemoveEvent
	}
	return &WriteEvent{Type: eventType, UserID: userID, CommentID: commentID}
}

// Fields возвращает плоский набор полей для записи в лог. Поля, не относящиеся к типу события, опускаются
func (e *WriteEvent) Fields() map[string]string {
	fields := map[string]string{
		FieldType:   string(e.Type),
		FieldUserID: strconv.Itoa(e.UserID),
	}
	if e.RequestID != "" {
		fields[FieldRequestID] = e.RequestID
	}
	switch e.Type {
	case CommentAddEvent:
		fields[FieldPostID] = strconv.Itoa(e.PostID)
		fields[FieldText] = e.Text
		if e.ParentID != nil {
			fields[FieldParentID] = strconv.Itoa(*e.ParentID)
		}
	case PostVoteAddEvent, PostVoteRemoveEvent:
		fields[FieldPostID] = strconv.Itoa(e.PostID)
	case CommentDeleteEvent, CommentVoteAddEvent, CommentVoteRemoveEvent:
		fields[FieldCommentID] = strconv.Itoa(e.CommentID)
	}
	return fields
}

// ParseWriteEvent восстанавливает событие из полей записи лога.
// Нечисловые идентификаторы превращаются в 0: такое событие не пройдет проверку ссылок и будет отброшено
func ParseWriteEvent(entryID string, fields map[string]string) *WriteEvent {
	event := &WriteEvent{
		EntryID:   entryID,
		RequestID: fields[FieldRequestID],
		Type:      WriteEventType(fields[FieldType]),
		UserID:    parseID(fields[FieldUserID]),
		PostID:    parseID(fields[FieldPostID]),
		CommentID: parseID(fields[FieldCommentID]),
		Text:      fields[FieldText],
	}
	if raw, ok := fields[FieldParentID]; ok && raw != "" {
		parentID := parseID(raw)
		event.ParentID = &parentID
	}
	return event
}

func parseID(raw string) int {
	id, err := strconv.Atoi(raw)
	if err != nil || id < 0 {
		return 0
	}
	return id
}

// WriteLogEntry запись лога в том виде, в котором ее вернул бэкенд
type WriteLogEntry struct {
	ID     string
	Fields map[string]string
}

// Event разбирает запись в событие
func (e *WriteLogEntry) Event() *WriteEvent {
	return ParseWriteEvent(e.ID, e.Fields)
}

// IdempotencyRecord отметка о том, что запрос уже был принят воркером
type IdempotencyRecord struct {
	RequestID string         `db:"request_id"`
	EventType WriteEventType `db:"event_type"`
}

type WriteResult struct {
	Status    string `json:"status"`
	RequestID string `json:"request_id"`
}

// BatchResult итог обработки одной пачки
type BatchResult struct {
	Entries        int `json:"entries"`
	Claimed        int `json:"claimed"`
	Duplicates     int `json:"duplicates"`
	Dropped        int `json:"dropped"`
	CommentsAdded  int `json:"comments_added"`
	CommentsMarked int `json:"comments_deleted"`
	VotesChanged   int `json:"votes_changed"`
	// ThreadPostIDs посты, у которых изменилось дерево комментариев или очки его комментариев
	ThreadPostIDs []int `json:"thread_post_ids"`
	// AckedEntryIDs записи, которые можно подтверждать после коммита
	AckedEntryIDs []string `json:"-"`
}
