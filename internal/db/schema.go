package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            TEXT PRIMARY KEY,
    username      TEXT NOT NULL,
    display_name  TEXT NOT NULL DEFAULT '',
    password_hash TEXT NOT NULL,
    role          TEXT NOT NULL DEFAULT 'user' CHECK (role IN ('admin', 'user')),
    created_at    DATETIME NOT NULL,
    deleted_at    DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username_active
    ON users(username) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS photos (
    id         TEXT PRIMARY KEY,
    data       BLOB NOT NULL,
    mime       TEXT NOT NULL,
    width      INTEGER NOT NULL,
    height     INTEGER NOT NULL,
    created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS items (
    id                TEXT PRIMARY KEY,
    reporter_id       TEXT NOT NULL,
    reporter_name     TEXT NOT NULL,
    name              TEXT NOT NULL,
    category          TEXT NOT NULL,
    description       TEXT,
    location          TEXT NOT NULL,
    date_found        DATETIME NOT NULL,
    photo_id          TEXT,
    photo_url         TEXT NOT NULL DEFAULT '',
    security_question TEXT,
    needs_review      INTEGER NOT NULL DEFAULT 0,
    status            TEXT NOT NULL DEFAULT 'found'
                      CHECK (status IN ('found', 'pending_approval', 'claimed', 'verified', 'returned')),
    claimant_id       TEXT,
    claimant_name     TEXT,
    claim_description TEXT,
    claim_marks       TEXT,
    claimant_answer   TEXT,
    claimed_at        DATETIME,
    returned_at       DATETIME,
    hidden            INTEGER NOT NULL DEFAULT 0,
    created_at        DATETIME NOT NULL,
    updated_at        DATETIME NOT NULL,
    version           INTEGER NOT NULL DEFAULT 1,
    CHECK ((claimant_id IS NULL) = (status = 'found')),
    CHECK (claimant_id IS NULL OR claimant_id != reporter_id)
);

CREATE INDEX IF NOT EXISTS idx_items_created ON items(created_at);
CREATE INDEX IF NOT EXISTS idx_items_reporter ON items(reporter_id);
CREATE INDEX IF NOT EXISTS idx_items_claimant ON items(claimant_id);

CREATE TABLE IF NOT EXISTS item_reporters (
    item_id     TEXT NOT NULL REFERENCES items(id) ON DELETE CASCADE,
    reporter_id TEXT NOT NULL,
    reported_at DATETIME NOT NULL,
    PRIMARY KEY (item_id, reporter_id)
);

CREATE TABLE IF NOT EXISTS reports (
    id          TEXT PRIMARY KEY,
    item_id     TEXT NOT NULL,
    item_name   TEXT NOT NULL,
    reporter_id TEXT NOT NULL,
    reason      TEXT NOT NULL,
    created_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS transitions (
    id          INTEGER PRIMARY KEY,
    item_id     TEXT NOT NULL,
    event       TEXT NOT NULL,
    from_status TEXT NOT NULL,
    to_status   TEXT NOT NULL,
    actor_id    TEXT NOT NULL,
    at          DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transitions_item ON transitions(item_id);

CREATE TABLE IF NOT EXISTS notifications (
    id              TEXT PRIMARY KEY,
    recipient_id    TEXT NOT NULL,
    type            TEXT NOT NULL
                    CHECK (type IN ('claim_request', 'claim_alert', 'claim_approved', 'alert_match')),
    title           TEXT NOT NULL,
    message         TEXT NOT NULL,
    related_item_id TEXT,
    created_at      DATETIME NOT NULL,
    read            INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_notifications_recipient ON notifications(recipient_id, created_at);

CREATE TABLE IF NOT EXISTS alerts (
    id         TEXT PRIMARY KEY,
    owner_id   TEXT NOT NULL,
    keyword    TEXT NOT NULL,
    category   TEXT NOT NULL,
    created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_alerts_category ON alerts(category);

CREATE TABLE IF NOT EXISTS messages (
    item_id     TEXT NOT NULL,
    seq         INTEGER NOT NULL,
    sender_id   TEXT NOT NULL,
    sender_name TEXT NOT NULL,
    text        TEXT NOT NULL,
    created_at  DATETIME NOT NULL,
    PRIMARY KEY (item_id, seq)
);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS revoked_tokens (
    jti        TEXT PRIMARY KEY,
    expires_at DATETIME NOT NULL
);
`

// EnsureSchema creates all tables and indexes if they don't already exist.
func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}
