package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/najdeno/internal/model"
)

// CreateNotification stores a notification.
func CreateNotification(ctx context.Context, db *sql.DB, n model.Notification) error {
	return insertNotification(ctx, db, n)
}

func insertNotification(ctx context.Context, ex execer, n model.Notification) error {
	_, err := ex.ExecContext(ctx,
		`INSERT INTO notifications (id, recipient_id, type, title, message, related_item_id, created_at, read)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.RecipientID, string(n.Type), n.Title, n.Message, nullString(n.RelatedItemID), n.CreatedAt.UTC(), n.Read,
	)
	if err != nil {
		return fmt.Errorf("creating notification: %w", err)
	}
	return nil
}

// ListNotifications returns a user's notifications, newest first.
// A limit of zero returns all of them.
func ListNotifications(ctx context.Context, db *sql.DB, recipientID string, limit int) ([]model.Notification, error) {
	query := `SELECT id, recipient_id, type, title, message, related_item_id, created_at, read
	          FROM notifications WHERE recipient_id = ?
	          ORDER BY created_at DESC, id`
	args := []any{recipientID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	defer rows.Close()

	var notes []model.Notification
	for rows.Next() {
		var n model.Notification
		var typ string
		var related sql.NullString
		if err := rows.Scan(&n.ID, &n.RecipientID, &typ, &n.Title, &n.Message, &related, &n.CreatedAt, &n.Read); err != nil {
			return nil, fmt.Errorf("scanning notification: %w", err)
		}
		n.Type = model.NotificationType(typ)
		n.RelatedItemID = related.String
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

// CountUnread returns the number of unread notifications for a user.
func CountUnread(ctx context.Context, db *sql.DB, recipientID string) (int, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE recipient_id = ? AND read = 0`, recipientID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting unread notifications: %w", err)
	}
	return n, nil
}

// MarkNotificationRead marks one of the recipient's notifications as read.
// It reports false if no such notification belongs to the recipient.
func MarkNotificationRead(ctx context.Context, db *sql.DB, id, recipientID string) (bool, error) {
	result, err := db.ExecContext(ctx,
		`UPDATE notifications SET read = 1 WHERE id = ? AND recipient_id = ?`, id, recipientID,
	)
	if err != nil {
		return false, fmt.Errorf("marking notification read: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking update: %w", err)
	}
	return n > 0, nil
}

// MarkAllNotificationsRead marks every unread notification of the recipient
// as read and returns how many changed.
func MarkAllNotificationsRead(ctx context.Context, db *sql.DB, recipientID string) (int64, error) {
	result, err := db.ExecContext(ctx,
		`UPDATE notifications SET read = 1 WHERE recipient_id = ? AND read = 0`, recipientID,
	)
	if err != nil {
		return 0, fmt.Errorf("marking notifications read: %w", err)
	}
	return result.RowsAffected()
}
