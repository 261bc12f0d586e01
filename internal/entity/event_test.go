package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteEvent_FieldsOmitsAbsentValues(t *testing.T) {
	event := NewCommentAddEvent(7, 3, nil, "hello")
	event.RequestID = "req-1"

	fields := event.Fields()
	assert.Equal(t, map[string]string{
		FieldType:      "comment.add",
		FieldRequestID: "req-1",
		FieldUserID:    "7",
		FieldPostID:    "3",
		FieldText:      "hello",
	}, fields)
	_, hasParent := fields[FieldParentID]
	assert.False(t, hasParent)
	_, hasComment := fields[FieldCommentID]
	assert.False(t, hasComment)
}

func TestWriteEvent_ParseReply(t *testing.T) {
	parentID := 11
	event := NewCommentAddEvent(7, 3, &parentID, "reply")
	event.RequestID = "req-2"

	parsed := ParseWriteEvent("1-0", event.Fields())
	require.NotNil(t, parsed.ParentID)
	assert.Equal(t, 11, *parsed.ParentID)
	assert.Equal(t, CommentAddEvent, parsed.Type)
	assert.Equal(t, "1-0", parsed.EntryID)
	assert.Equal(t, "req-2", parsed.RequestID)
}

func TestParseWriteEvent_MalformedIDsBecomeZero(t *testing.T) {
	parsed := ParseWriteEvent("5-0", map[string]string{
		FieldType:      "comment.vote.add",
		FieldRequestID: "req-3",
		FieldUserID:    "abc",
		FieldCommentID: "-4",
		FieldParentID:  "x",
	})

	assert.Equal(t, 0, parsed.UserID)
	assert.Equal(t, 0, parsed.CommentID)
	require.NotNil(t, parsed.ParentID)
	assert.Equal(t, 0, *parsed.ParentID)
}

func TestWriteEventType_IsValid(t *testing.T) {
	for _, eventType := range WriteEventApplyOrder {
		assert.True(t, eventType.IsValid(), eventType)
	}
	assert.False(t, WriteEventType("post.delete").IsValid())
	assert.False(t, WriteEventType("").IsValid())
}

func TestVoteEvents(t *testing.T) {
	assert.Equal(t, PostVoteRemoveEvent, NewPostVoteEvent(1, 2, true).Type)
	assert.Equal(t, PostVoteAddEvent, NewPostVoteEvent(1, 2, false).Type)
	assert.Equal(t, CommentVoteRemoveEvent, NewCommentVoteEvent(1, 2, true).Type)

	fields := NewCommentVoteEvent(1, 2, false).Fields()
	assert.Equal(t, "2", fields[FieldCommentID])
	_, hasPost := fields[FieldPostID]
	assert.False(t, hasPost)
}
