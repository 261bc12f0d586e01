package http

import (
	"encoding/json"
	"fmt"
	"forum-backend/internal/entity"
	"forum-backend/internal/usecase/service"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotification_Endpoints(t *testing.T) {
	server := newTestServer(t, service.WriteModeDirect, nil)
	bob := server.store.AddUser("bob")
	for _, text := range []string{"first", "second"} {
		rec := server.doAs(t, bob.ID, http.MethodPost, "/api/posts/1/comments", fmt.Sprintf(`{"text":%q}`, text))
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := server.do(t, http.MethodGet, "/api/notifications", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	var notifications []*entity.Notification
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &notifications))
	require.Len(t, notifications, 2)
	assert.Equal(t, "bob", notifications[0].ActorUsername)
	assert.Equal(t, entity.CommentOnPost, notifications[0].Type)

	rec = server.do(t, http.MethodGet, "/api/notifications?skip=1&limit=1", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &notifications))
	assert.Len(t, notifications, 1)

	var count entity.UnreadCount
	rec = server.do(t, http.MethodGet, "/api/notifications/unread/count", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &count))
	assert.Equal(t, 2, count.UnreadCount)

	target := fmt.Sprintf("/api/notifications/%d/read", notifications[0].ID)
	assert.Equal(t, http.StatusNotFound, server.doAs(t, bob.ID, http.MethodPut, target, "").Code)
	assert.Equal(t, http.StatusOK, server.do(t, http.MethodPut, target, "", true).Code)
	assert.Equal(t, http.StatusNotFound, server.do(t, http.MethodPut, "/api/notifications/404/read", "", true).Code)
	assert.Equal(t, http.StatusBadRequest, server.do(t, http.MethodPut, "/api/notifications/abc/read", "", true).Code)

	rec = server.do(t, http.MethodGet, "/api/notifications/unread/count", "", true)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &count))
	assert.Equal(t, 1, count.UnreadCount)
}

func TestNotification_RequiresAuth(t *testing.T) {
	server := newTestServer(t, service.WriteModeDirect, nil)

	assert.Equal(t, http.StatusUnauthorized, server.do(t, http.MethodGet, "/api/notifications", "", false).Code)
	assert.Equal(t, http.StatusUnauthorized, server.do(t, http.MethodGet, "/api/notifications/unread/count", "", false).Code)
	assert.Equal(t, http.StatusUnauthorized, server.do(t, http.MethodPut, "/api/notifications/1/read", "", false).Code)
}
