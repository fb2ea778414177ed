package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/najdeno/internal/model"
	"github.com/erazemk/najdeno/internal/moderation"
)

// AddReport adds the reporter to the item's reporter set, appends the audit
// record and recomputes the hidden flag from the stored set. Reporting the
// same item twice returns ErrDuplicate and changes nothing. Returned items
// cannot be reported (ErrStale).
func AddReport(ctx context.Context, db *sql.DB, r model.Report) (hidden bool, err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var status, name string
	err = tx.QueryRowContext(ctx,
		`SELECT status, name FROM items WHERE id = ?`, r.ItemID,
	).Scan(&status, &name)
	if err == sql.ErrNoRows {
		return false, ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("checking item: %w", err)
	}
	if model.Status(status) == model.StatusReturned {
		return false, ErrStale
	}

	result, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO item_reporters (item_id, reporter_id, reported_at) VALUES (?, ?, ?)`,
		r.ItemID, r.ReporterID, r.CreatedAt.UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("adding reporter: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return false, ErrDuplicate
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO reports (id, item_id, item_name, reporter_id, reason, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.ItemID, name, r.ReporterID, r.Reason, r.CreatedAt.UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("recording report: %w", err)
	}

	var count int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM item_reporters WHERE item_id = ?`, r.ItemID,
	).Scan(&count); err != nil {
		return false, fmt.Errorf("counting reporters: %w", err)
	}
	hidden = moderation.ShouldHide(count)

	if _, err := tx.ExecContext(ctx,
		`UPDATE items SET hidden = ?, version = version + 1 WHERE id = ?`, hidden, r.ItemID,
	); err != nil {
		return false, fmt.Errorf("updating hidden flag: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing report: %w", err)
	}
	return hidden, nil
}

// ListReports returns audit records, newest first, optionally for one item.
func ListReports(ctx context.Context, db *sql.DB, itemID string) ([]model.Report, error) {
	query := `SELECT id, item_id, item_name, reporter_id, reason, created_at FROM reports`
	var args []any
	if itemID != "" {
		query += ` WHERE item_id = ?`
		args = append(args, itemID)
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}
	defer rows.Close()

	var reports []model.Report
	for rows.Next() {
		var r model.Report
		if err := rows.Scan(&r.ID, &r.ItemID, &r.ItemName, &r.ReporterID, &r.Reason, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning report: %w", err)
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}
