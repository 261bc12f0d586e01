package http

import (
	"errors"
	"forum-backend/internal/delivery/http/utils"
	"forum-backend/internal/entity"
	"forum-backend/internal/usecase"
	"net/http"

	"github.com/labstack/echo/v4"
)

type Notification struct {
	notificationUseCase usecase.Notification
	authManager         utils.Auth
}

func NewNotification(notificationUseCase usecase.Notification, authManager utils.Auth) *Notification {
	return &Notification{
		notificationUseCase: notificationUseCase,
		authManager:         authManager,
	}
}

func (n *Notification) Configure(server *echo.Group) {
	server.GET("", n.GetNotifications)
	server.GET("/unread/count", n.GetUnreadCount)
	server.PUT("/:notification_id/read", n.MarkRead)
}

func (n *Notification) GetNotifications(c echo.Context) error {
	userID, err := n.authManager.CheckAuthFromContext(c)
	if err != nil {
		return unauthorized(c)
	}
	request := &entity.GetNotificationsRequest{}
	if err := utils.ReadQuery(c, request); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "Неверный формат запроса",
		})
	}
	request.UserID = userID

	notifications, err := n.notificationUseCase.GetNotifications(c.Request().Context(), request)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(http.StatusOK, notifications)
}

func (n *Notification) MarkRead(c echo.Context) error {
	userID, err := n.authManager.CheckAuthFromContext(c)
	if err != nil {
		return unauthorized(c)
	}
	notificationID, err := utils.ReadPathID(c, "notification_id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "Неверный ID уведомления",
		})
	}

	err = n.notificationUseCase.MarkRead(c.Request().Context(), &entity.MarkNotificationReadRequest{
		UserID:         userID,
		NotificationID: notificationID,
	})
	switch {
	case errors.Is(err, usecase.ErrNotificationNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{
			"error": "Уведомление не найдено",
		})
	case err != nil:
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"status": "ok",
	})
}

func (n *Notification) GetUnreadCount(c echo.Context) error {
	userID, err := n.authManager.CheckAuthFromContext(c)
	if err != nil {
		return unauthorized(c)
	}
	count, err := n.notificationUseCase.UnreadCount(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(http.StatusOK, count)
}
