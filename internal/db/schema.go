package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            INTEGER PRIMARY KEY,
    username      TEXT NOT NULL,
    display_name  TEXT NOT NULL DEFAULT '',
    password_hash TEXT NOT NULL,
    role          TEXT NOT NULL DEFAULT 'volunteer' CHECK (role IN ('admin', 'coordinator', 'volunteer')),
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at    DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username_active
    ON users(username) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS items (
    id                   TEXT PRIMARY KEY,
    name                 TEXT NOT NULL,
    item_code            TEXT NOT NULL,
    category             TEXT NOT NULL,
    description          TEXT NOT NULL DEFAULT '',
    image_url            TEXT NOT NULL,
    status               TEXT NOT NULL DEFAULT 'Available' CHECK (status IN ('Available', 'Issued', 'Repair')),
    date_added           DATETIME NOT NULL,
    recipient_name       TEXT,
    recipient_mobile     TEXT,
    issuer_name          TEXT,
    issue_date           DATETIME,
    expected_return_date DATETIME,
    actual_return_date   DATETIME,
    collected_by         TEXT,
    updated_at           DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_items_item_code ON items(item_code);

CREATE TABLE IF NOT EXISTS loan_events (
    id                   TEXT PRIMARY KEY,
    item_id              TEXT NOT NULL,
    item_name            TEXT NOT NULL,
    item_code            TEXT NOT NULL,
    kind                 TEXT NOT NULL CHECK (kind IN ('issued', 'returned')),
    recipient_name       TEXT,
    recipient_mobile     TEXT,
    issuer_name          TEXT,
    collected_by         TEXT,
    issue_date           DATETIME,
    expected_return_date DATETIME,
    return_date          DATETIME,
    recorded_by          TEXT,
    recorded_at          DATETIME NOT NULL
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

// migrations is a list of SQL statements applied in order after schema creation.
// Each migration must be idempotent. Append new migrations at the end.
var migrations = []string{
	// Migration 1: Loan history is looked up per item, newest first.
	`CREATE INDEX IF NOT EXISTS idx_loan_events_item
	     ON loan_events(item_id, recorded_at)`,
	// Migration 2: Status filters on the item list.
	`CREATE INDEX IF NOT EXISTS idx_items_status ON items(status)`,
}

// Migrate creates the schema and runs all migrations.
func Migrate(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	for i, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("running migration %d: %w", i+1, err)
		}
	}

	return nil
}
