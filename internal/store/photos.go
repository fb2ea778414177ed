package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erazemk/najdeno/internal/imaging"
)

// SavePhoto stores a processed photo under id.
func SavePhoto(ctx context.Context, db *sql.DB, id string, p *imaging.ProcessResult, at time.Time) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO photos (id, data, mime, width, height, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, p.Data, p.MIME, p.Width, p.Height, at.UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving photo: %w", err)
	}
	return nil
}

// GetPhoto returns a photo's data and MIME type.
func GetPhoto(ctx context.Context, db *sql.DB, id string) ([]byte, string, error) {
	var data []byte
	var mime string
	err := db.QueryRowContext(ctx,
		`SELECT data, mime FROM photos WHERE id = ?`, id,
	).Scan(&data, &mime)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting photo: %w", err)
	}
	return data, mime, nil
}

// DeletePhoto removes a photo. It is used to discard uploads whose item
// could not be stored.
func DeletePhoto(ctx context.Context, db *sql.DB, id string) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM photos WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting photo: %w", err)
	}
	return nil
}
