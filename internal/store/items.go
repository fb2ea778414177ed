package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/erazemk/najdeno/internal/model"
)

const itemColumns = `id, reporter_id, reporter_name, name, category, description, location, date_found,
	photo_id, photo_url, security_question, needs_review, status,
	claimant_id, claimant_name, claim_description, claim_marks, claimant_answer, claimed_at, returned_at,
	hidden, created_at, updated_at, version`

// CreateItem inserts a new item. The caller assigns the ID and timestamps.
func CreateItem(ctx context.Context, db *sql.DB, item model.Item) (*model.Item, error) {
	_, err := db.ExecContext(ctx,
		`INSERT INTO items (id, reporter_id, reporter_name, name, category, description, location, date_found,
		                    photo_id, photo_url, security_question, needs_review, status, hidden, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		item.ID, item.ReporterID, item.ReporterName, item.Name, string(item.Category),
		nullString(item.Description), item.Location, item.DateFound.UTC(),
		nullString(item.PhotoID), item.PhotoURL, nullString(item.SecurityQuestion), item.NeedsReview,
		string(model.StatusFound), item.CreatedAt.UTC(), item.UpdatedAt.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}
	return GetItem(ctx, db, item.ID)
}

// GetItem returns an item by ID, including its reporter set.
func GetItem(ctx context.Context, db *sql.DB, id string) (*model.Item, error) {
	item, err := scanItem(db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}

	rows, err := db.QueryContext(ctx,
		`SELECT reporter_id FROM item_reporters WHERE item_id = ? ORDER BY reported_at, reporter_id`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("getting item reporters: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var r string
		if err := rows.Scan(&r); err != nil {
			return nil, fmt.Errorf("scanning reporter: %w", err)
		}
		item.ReportedBy = append(item.ReportedBy, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing reporters: %w", err)
	}
	return item, nil
}

// ItemFilter narrows ListItems. Zero fields do not filter.
type ItemFilter struct {
	ReporterID string
	ClaimantID string
	Statuses   []model.Status
	Category   model.Category
	Search     string
	Since      time.Time
	// IncludeHidden keeps items hidden by community reports.
	IncludeHidden bool
	Limit         int
}

// ListItems returns items matching f, newest first. Reporter sets are not
// loaded.
func ListItems(ctx context.Context, db *sql.DB, f ItemFilter) ([]model.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE 1=1`
	var args []any

	if !f.IncludeHidden {
		query += ` AND hidden = 0`
	}
	if f.ReporterID != "" && f.ClaimantID != "" {
		query += ` AND (reporter_id = ? OR claimant_id = ?)`
		args = append(args, f.ReporterID, f.ClaimantID)
	} else if f.ReporterID != "" {
		query += ` AND reporter_id = ?`
		args = append(args, f.ReporterID)
	} else if f.ClaimantID != "" {
		query += ` AND claimant_id = ?`
		args = append(args, f.ClaimantID)
	}
	if len(f.Statuses) > 0 {
		query += ` AND status IN (?` + strings.Repeat(`, ?`, len(f.Statuses)-1) + `)`
		for _, s := range f.Statuses {
			args = append(args, string(s))
		}
	}
	if f.Category != "" && f.Category != model.CategoryAll {
		query += ` AND category = ?`
		args = append(args, string(f.Category))
	}
	if term := strings.TrimSpace(f.Search); term != "" {
		query += ` AND (LOWER(name) LIKE ? ESCAPE '\' OR LOWER(category) LIKE ? ESCAPE '\')`
		p := likePattern(term)
		args = append(args, p, p)
	}
	if !f.Since.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, f.Since.UTC())
	}

	query += ` ORDER BY created_at DESC, id`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// DeleteItem removes an item and its photo if it is still in the expected
// status. Chat messages, notifications and reports are kept.
func DeleteItem(ctx context.Context, db *sql.DB, id string, expected model.Status) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var photoID sql.NullString
	err = tx.QueryRowContext(ctx,
		`SELECT photo_id FROM items WHERE id = ? AND status = ?`, id, string(expected),
	).Scan(&photoID)
	if err == sql.ErrNoRows {
		return ErrStale
	}
	if err != nil {
		return fmt.Errorf("checking item: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM item_reporters WHERE item_id = ?`, id); err != nil {
		return fmt.Errorf("deleting item reporters: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}
	if photoID.Valid {
		if _, err := tx.ExecContext(ctx, `DELETE FROM photos WHERE id = ?`, photoID.String); err != nil {
			return fmt.Errorf("deleting item photo: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing delete: %w", err)
	}
	return nil
}

// CountItemsByStatus returns the number of items in each status.
func CountItemsByStatus(ctx context.Context, db *sql.DB) (map[model.Status]int, error) {
	rows, err := db.QueryContext(ctx, `SELECT status, COUNT(*) FROM items GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("counting items: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.Status]int, len(model.Statuses))
	for _, s := range model.Statuses {
		counts[s] = 0
	}
	for rows.Next() {
		var s string
		var n int
		if err := rows.Scan(&s, &n); err != nil {
			return nil, fmt.Errorf("scanning count: %w", err)
		}
		counts[model.Status(s)] = n
	}
	return counts, rows.Err()
}

func scanItem(row rowScanner) (*model.Item, error) {
	var item model.Item
	var category, status string
	var description, photoID, question sql.NullString
	var claimantID, claimantName, claimDesc, claimMarks, answer sql.NullString
	var claimedAt, returnedAt sql.NullTime

	err := row.Scan(&item.ID, &item.ReporterID, &item.ReporterName, &item.Name, &category, &description,
		&item.Location, &item.DateFound,
		&photoID, &item.PhotoURL, &question, &item.NeedsReview, &status,
		&claimantID, &claimantName, &claimDesc, &claimMarks, &answer, &claimedAt, &returnedAt,
		&item.Hidden, &item.CreatedAt, &item.UpdatedAt, &item.Version)
	if err != nil {
		return nil, err
	}

	item.Category = model.Category(category)
	item.Status = model.Status(status)
	item.Description = description.String
	item.PhotoID = photoID.String
	item.SecurityQuestion = question.String
	item.ClaimantID = claimantID.String
	item.ClaimantName = claimantName.String
	item.ClaimantAnswer = answer.String
	if claimDesc.Valid {
		item.ClaimProof = &model.ClaimProof{Description: claimDesc.String, IdentifyingMarks: claimMarks.String}
	}
	item.ClaimedAt = timePtr(claimedAt)
	item.ReturnedAt = timePtr(returnedAt)
	return &item, nil
}
