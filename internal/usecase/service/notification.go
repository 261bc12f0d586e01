package service

import (
	"context"
	"errors"
	"forum-backend/internal/entity"
	"forum-backend/internal/repo"
	"forum-backend/internal/usecase"
)

// Notification чтение уведомлений, которые пишут AddComment и воркер очереди записи
type Notification struct {
	store repo.NotificationStore
}

func NewNotification(store repo.NotificationStore) usecase.Notification {
	return &Notification{
		store: store,
	}
}

func (n *Notification) GetNotifications(ctx context.Context, request *entity.GetNotificationsRequest) ([]*entity.Notification, error) {
	request.Normalize()
	return n.store.GetNotifications(ctx, request.UserID, request.Skip, request.Limit)
}

func (n *Notification) MarkRead(ctx context.Context, request *entity.MarkNotificationReadRequest) error {
	err := n.store.MarkNotificationRead(ctx, request.NotificationID, request.UserID)
	if errors.Is(err, repo.ErrNotificationNotFound) {
		return usecase.ErrNotificationNotFound
	}
	return err
}

func (n *Notification) UnreadCount(ctx context.Context, userID int) (*entity.UnreadCount, error) {
	count, err := n.store.CountUnread(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &entity.UnreadCount{UnreadCount: count}, nil
}
