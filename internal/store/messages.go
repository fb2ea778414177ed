package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/najdeno/internal/model"
)

// AppendMessage adds a message to an item's chat log, assigning the next
// sequence number in the same transaction.
func AppendMessage(ctx context.Context, db *sql.DB, m model.Message) (*model.Message, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM messages WHERE item_id = ?`, m.ItemID,
	).Scan(&m.Seq); err != nil {
		return nil, fmt.Errorf("assigning message sequence: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO messages (item_id, seq, sender_id, sender_name, text, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		m.ItemID, m.Seq, m.SenderID, m.SenderName, m.Text, m.CreatedAt.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("storing message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing message: %w", err)
	}
	return &m, nil
}

// ListMessages returns an item's messages with seq greater than afterSeq,
// in order.
func ListMessages(ctx context.Context, db *sql.DB, itemID string, afterSeq int64) ([]model.Message, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT item_id, seq, sender_id, sender_name, text, created_at
		 FROM messages WHERE item_id = ? AND seq > ? ORDER BY seq`, itemID, afterSeq,
	)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	var msgs []model.Message
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ItemID, &m.Seq, &m.SenderID, &m.SenderName, &m.Text, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
