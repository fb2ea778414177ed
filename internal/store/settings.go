package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/najdeno/internal/auth"
)

// Settings keys for the per-installation signing keys.
const (
	SettingJWTSecret     = "jwt_secret"
	SettingHandoffSecret = "handoff_secret"
)

// GetSecret retrieves a secret from the settings table, generating and
// storing one on first use. INSERT OR IGNORE followed by a re-SELECT keeps
// concurrent first starts from ending up with different values.
func GetSecret(ctx context.Context, db *sql.DB, key string) (string, error) {
	candidate, err := auth.GenerateID()
	if err != nil {
		return "", fmt.Errorf("generating %s: %w", key, err)
	}

	_, err = db.ExecContext(ctx,
		`INSERT OR IGNORE INTO settings (key, value) VALUES (?, ?)`,
		key, candidate,
	)
	if err != nil {
		return "", fmt.Errorf("storing %s: %w", key, err)
	}

	var secret string
	err = db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?`, key,
	).Scan(&secret)
	if err != nil {
		return "", fmt.Errorf("querying %s: %w", key, err)
	}

	return secret, nil
}

// GetJWTSecret returns the session signing key.
func GetJWTSecret(ctx context.Context, db *sql.DB) (string, error) {
	return GetSecret(ctx, db, SettingJWTSecret)
}

// GetHandoffSecret returns the key used to sign handoff codes.
func GetHandoffSecret(ctx context.Context, db *sql.DB) (string, error) {
	return GetSecret(ctx, db, SettingHandoffSecret)
}
