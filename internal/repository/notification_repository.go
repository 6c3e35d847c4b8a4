package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/hubso/backend/internal/apperrors"
	"github.com/hubso/backend/internal/database"
	"github.com/hubso/backend/internal/models"
)

// NotificationRepository is the durable side of the fan-out: the
// real-time push is best effort, these rows are what a reconnecting
// client fetches.
type NotificationRepository struct {
	db *database.DB
}

func NewNotificationRepository(db *database.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create persists a notification record
func (r *NotificationRepository) Create(notification *models.Notification) error {
	if len(notification.Data) == 0 {
		notification.Data = json.RawMessage(`{}`)
	}

	query := `
		INSERT INTO notifications (id, user_id, type, data, community_id, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id, created_at
	`

	err := r.db.QueryRow(
		query,
		notification.ID,
		notification.UserID,
		notification.Type,
		[]byte(notification.Data),
		notification.CommunityID,
	).Scan(&notification.ID, &notification.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	return nil
}

// ListByUser returns the newest notifications for a user plus the
// unread total
func (r *NotificationRepository) ListByUser(userID uuid.UUID, limit int) ([]models.Notification, int, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, user_id, type, data, community_id, read_at, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.Query(query, userID, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	notifications := []models.Notification{}
	for rows.Next() {
		var n models.Notification
		var data []byte
		err := rows.Scan(&n.ID, &n.UserID, &n.Type, &data, &n.CommunityID, &n.ReadAt, &n.CreatedAt)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.Data = json.RawMessage(data)
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate notifications: %w", err)
	}

	unread, err := r.UnreadCount(userID)
	if err != nil {
		return nil, 0, err
	}

	return notifications, unread, nil
}

// UnreadCount returns the number of unread notifications for a user
func (r *NotificationRepository) UnreadCount(userID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read_at IS NULL`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

// MarkRead marks a single notification read. Only the owner's rows
// resolve.
func (r *NotificationRepository) MarkRead(notificationID, userID uuid.UUID) error {
	result, err := r.db.Exec(
		`UPDATE notifications SET read_at = NOW() WHERE id = $1 AND user_id = $2 AND read_at IS NULL`,
		notificationID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		// Either unknown, someone else's, or already read: distinguish
		var exists bool
		if err := r.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM notifications WHERE id = $1 AND user_id = $2)`, notificationID, userID).Scan(&exists); err != nil && err != sql.ErrNoRows {
			return fmt.Errorf("failed to check notification: %w", err)
		}
		if !exists {
			return apperrors.NotFound("notification not found")
		}
	}

	return nil
}

// MarkAllRead marks every unread notification for a user and returns
// the count updated
func (r *NotificationRepository) MarkAllRead(userID uuid.UUID) (int64, error) {
	result, err := r.db.Exec(
		`UPDATE notifications SET read_at = NOW() WHERE user_id = $1 AND read_at IS NULL`,
		userID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}

	return result.RowsAffected()
}
