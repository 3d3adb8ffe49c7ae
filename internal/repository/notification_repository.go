package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/univlab/campus-api/internal/models"
)

// NotificationRepository handles persistence of notifications.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository constructs the repository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// BulkCreate inserts all notifications in a single batch statement so that
// fan-out latency stays bounded for large enrollment sets.
func (r *NotificationRepository) BulkCreate(ctx context.Context, notifications []models.Notification) (int, error) {
	if len(notifications) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	for i := range notifications {
		if notifications[i].ID == "" {
			notifications[i].ID = uuid.NewString()
		}
		if notifications[i].CreatedAt.IsZero() {
			notifications[i].CreatedAt = now
		}
	}
	const query = `INSERT INTO notifications (id, recipient_id, sender_id, title, message, type, read, read_at, related_model, related_id, expires_at, created_at)
VALUES (:id, :recipient_id, :sender_id, :title, :message, :type, :read, :read_at, :related_model, :related_id, :expires_at, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, notifications); err != nil {
		return 0, fmt.Errorf("bulk create notifications: %w", err)
	}
	return len(notifications), nil
}

// List returns non-expired notifications for a recipient, newest first.
func (r *NotificationRepository) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, error) {
	query := `SELECT id, recipient_id, sender_id, title, message, type, read, read_at, related_model, related_id, expires_at, created_at
FROM notifications WHERE recipient_id = $1 AND expires_at > NOW()`
	args := []interface{}{filter.RecipientID}
	if filter.UnreadOnly {
		query += " AND read = FALSE"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 50
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d OFFSET %d", size, (page-1)*size)

	var notifications []models.Notification
	if err := r.db.SelectContext(ctx, &notifications, query, args...); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return notifications, nil
}

// CountUnread returns the number of unread, non-expired notifications.
func (r *NotificationRepository) CountUnread(ctx context.Context, recipientID string) (int, error) {
	const query = `SELECT COUNT(*) FROM notifications WHERE recipient_id = $1 AND read = FALSE AND expires_at > NOW()`
	var count int
	if err := r.db.GetContext(ctx, &count, query, recipientID); err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

// MarkRead marks a single notification as read, scoped to its recipient.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, recipientID string) (bool, error) {
	const query = `UPDATE notifications SET read = TRUE, read_at = $3 WHERE id = $1 AND recipient_id = $2 AND read = FALSE`
	result, err := r.db.ExecContext(ctx, query, id, recipientID, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("mark notification read: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark notification read result: %w", err)
	}
	return affected > 0, nil
}

// MarkAllRead marks every unread notification for a recipient as read.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, recipientID string) (int, error) {
	const query = `UPDATE notifications SET read = TRUE, read_at = $2 WHERE recipient_id = $1 AND read = FALSE`
	result, err := r.db.ExecContext(ctx, query, recipientID, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read result: %w", err)
	}
	return int(affected), nil
}

// DeleteExpired purges notifications past their retention window.
func (r *NotificationRepository) DeleteExpired(ctx context.Context) (int, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM notifications WHERE expires_at <= NOW()")
	if err != nil {
		return 0, fmt.Errorf("delete expired notifications: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired notifications result: %w", err)
	}
	return int(affected), nil
}
