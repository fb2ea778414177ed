package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/najdeno/internal/model"
)

// CommitTransition writes next's lifecycle fields if the stored item is
// still in expected status, and records the transition and its
// notifications in the same transaction. It returns the item's new version,
// or ErrStale if the item moved on or no longer exists.
func CommitTransition(ctx context.Context, db *sql.DB, expected model.Status, next model.Item, t model.Transition, notes []model.Notification) (version int64, err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var claimDesc, claimMarks sql.NullString
	if next.ClaimProof != nil {
		claimDesc = sql.NullString{String: next.ClaimProof.Description, Valid: true}
		claimMarks = nullString(next.ClaimProof.IdentifyingMarks)
	}

	err = tx.QueryRowContext(ctx,
		`UPDATE items SET status = ?, claimant_id = ?, claimant_name = ?, claim_description = ?, claim_marks = ?,
		                  claimant_answer = ?, claimed_at = ?, returned_at = ?, updated_at = ?, version = version + 1
		 WHERE id = ? AND status = ?
		 RETURNING version`,
		string(next.Status), nullString(next.ClaimantID), nullString(next.ClaimantName), claimDesc, claimMarks,
		nullString(next.ClaimantAnswer), nullTime(next.ClaimedAt), nullTime(next.ReturnedAt), next.UpdatedAt.UTC(),
		next.ID, string(expected),
	).Scan(&version)
	if err == sql.ErrNoRows {
		return 0, ErrStale
	}
	if err != nil {
		return 0, fmt.Errorf("updating item status: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO transitions (item_id, event, from_status, to_status, actor_id, at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		next.ID, t.Event, string(expected), string(next.Status), t.ActorID, t.At.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("recording transition: %w", err)
	}

	for _, note := range notes {
		if err := insertNotification(ctx, tx, note); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing transition: %w", err)
	}
	return version, nil
}

// GetItemHistory returns the committed transitions of an item, oldest first.
func GetItemHistory(ctx context.Context, db *sql.DB, itemID string) ([]model.Transition, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, item_id, event, from_status, to_status, actor_id, at
		 FROM transitions WHERE item_id = ?
		 ORDER BY id`, itemID,
	)
	if err != nil {
		return nil, fmt.Errorf("getting item history: %w", err)
	}
	defer rows.Close()

	var history []model.Transition
	for rows.Next() {
		var t model.Transition
		var from, to string
		if err := rows.Scan(&t.ID, &t.ItemID, &t.Event, &from, &to, &t.ActorID, &t.At); err != nil {
			return nil, fmt.Errorf("scanning transition: %w", err)
		}
		t.From = model.Status(from)
		t.To = model.Status(to)
		history = append(history, t)
	}
	return history, rows.Err()
}
