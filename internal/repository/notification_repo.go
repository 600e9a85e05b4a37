package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"learnquest/internal/database"
	"learnquest/internal/models"
)

// NotificationRepository stores the user-visible award feed
type NotificationRepository struct {
	db database.DBTX
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db database.DBTX) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create inserts a notification
func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	query := `
		INSERT INTO notifications (id, child_id, kind, title, message, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query, n.ID, n.ChildID, string(n.Kind), n.Title, n.Message, n.Payload, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

// ListByChild returns a child's notifications, newest first
func (r *NotificationRepository) ListByChild(ctx context.Context, childID string, unreadOnly bool, limit int) ([]models.Notification, error) {
	query := `
		SELECT id, child_id, kind, title, message, payload, created_at, read_at
		FROM notifications
		WHERE child_id = ?
	`
	if unreadOnly {
		query += " AND read_at IS NULL"
	}
	query += " ORDER BY created_at DESC LIMIT ?"

	rows, err := r.db.QueryContext(ctx, query, childID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	var notifications []models.Notification
	for rows.Next() {
		var n models.Notification
		var kind string
		var readAt sql.NullTime
		if err := rows.Scan(&n.ID, &n.ChildID, &kind, &n.Title, &n.Message, &n.Payload, &n.CreatedAt, &readAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.Kind = models.EventKind(kind)
		if readAt.Valid {
			n.ReadAt = &readAt.Time
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// MarkRead marks one of a child's notifications as read. It returns false if
// no unread notification with that ID belongs to the child.
func (r *NotificationRepository) MarkRead(ctx context.Context, childID, id string, readAt time.Time) (bool, error) {
	query := "UPDATE notifications SET read_at = ? WHERE id = ? AND child_id = ? AND read_at IS NULL"
	result, err := r.db.ExecContext(ctx, query, readAt, id, childID)
	if err != nil {
		return false, fmt.Errorf("failed to mark notification read: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}
