package cockroach

import (
	"context"
	"fmt"
	"forum-backend/internal/entity"
	"forum-backend/internal/repo"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

type NotificationStore struct {
	db *sqlx.DB
}

func NewNotificationStore(db *sqlx.DB) repo.NotificationStore {
	return &NotificationStore{
		db: db,
	}
}

func (s *NotificationStore) GetNotifications(ctx context.Context, recipientID, skip, limit int) ([]*entity.Notification, error) {
	query, args, err := psql.Select(
		"n.id", "n.recipient_id", "n.actor_id", "n.type", "n.post_id", "n.comment_id",
		"n.message", "n.is_read", "n.created_at", "u.username AS actor_username",
	).
		From("notifications n").
		Join("users u ON u.id = n.actor_id").
		Where(sq.Eq{"n.recipient_id": recipientID}).
		OrderBy("n.created_at DESC", "n.id DESC").
		Limit(uint64(limit)).
		Offset(uint64(skip)).
		ToSql()
	if err != nil {
		return nil, err
	}
	notifications := make([]*entity.Notification, 0, limit)
	if err := s.db.SelectContext(ctx, &notifications, query, args...); err != nil {
		return nil, fmt.Errorf("select notifications: %w", err)
	}
	return notifications, nil
}

func (s *NotificationStore) MarkNotificationRead(ctx context.Context, notificationID, recipientID int) error {
	query, args, err := psql.Update("notifications").
		Set("is_read", true).
		Where(sq.Eq{"id": notificationID, "recipient_id": recipientID}).
		ToSql()
	if err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("mark notification %d read: %w", notificationID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return repo.ErrNotificationNotFound
	}
	return nil
}

func (s *NotificationStore) CountUnread(ctx context.Context, recipientID int) (int, error) {
	query, args, err := psql.Select("COUNT(*)").
		From("notifications").
		Where(sq.Eq{"recipient_id": recipientID, "is_read": false}).
		ToSql()
	if err != nil {
		return 0, err
	}
	var count int
	if err := s.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}
