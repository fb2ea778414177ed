package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/najdeno/internal/model"
)

// CreateAlert stores a saved search.
func CreateAlert(ctx context.Context, db *sql.DB, a model.Alert) (*model.Alert, error) {
	_, err := db.ExecContext(ctx,
		`INSERT INTO alerts (id, owner_id, keyword, category, created_at) VALUES (?, ?, ?, ?, ?)`,
		a.ID, a.OwnerID, a.Keyword, string(a.Category), a.CreatedAt.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("creating alert: %w", err)
	}
	return &a, nil
}

// ListAlerts returns a user's alerts, newest first.
func ListAlerts(ctx context.Context, db *sql.DB, ownerID string) ([]model.Alert, error) {
	return queryAlerts(ctx, db,
		`SELECT id, owner_id, keyword, category, created_at FROM alerts
		 WHERE owner_id = ? ORDER BY created_at DESC, id`, ownerID)
}

// ListAlertsForCategory returns alerts on category or on every category.
func ListAlertsForCategory(ctx context.Context, db *sql.DB, category model.Category) ([]model.Alert, error) {
	return queryAlerts(ctx, db,
		`SELECT id, owner_id, keyword, category, created_at FROM alerts
		 WHERE category IN (?, ?) ORDER BY created_at, id`, string(category), string(model.CategoryAll))
}

// DeleteAlert removes one of the owner's alerts. It reports false if the
// alert does not exist or belongs to someone else.
func DeleteAlert(ctx context.Context, db *sql.DB, id, ownerID string) (bool, error) {
	result, err := db.ExecContext(ctx,
		`DELETE FROM alerts WHERE id = ? AND owner_id = ?`, id, ownerID,
	)
	if err != nil {
		return false, fmt.Errorf("deleting alert: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking delete: %w", err)
	}
	return n > 0, nil
}

func queryAlerts(ctx context.Context, db *sql.DB, query string, args ...any) ([]model.Alert, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing alerts: %w", err)
	}
	defer rows.Close()

	var alerts []model.Alert
	for rows.Next() {
		var a model.Alert
		var category string
		if err := rows.Scan(&a.ID, &a.OwnerID, &a.Keyword, &category, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning alert: %w", err)
		}
		a.Category = model.Category(category)
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}
