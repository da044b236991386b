package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strconv"
)

// Setting keys.
const (
	SettingAuthSecret  = "auth_secret"
	SettingLoanDays    = "default_loan_days"
	SettingCharityName = "charity_name"
)

// DefaultLoanDays prefills the expected return date on the issue form.
const DefaultLoanDays = 14

// GetAuthSecret returns the token signing secret, generating and storing one
// on first use. INSERT OR IGNORE followed by a read keeps concurrent starts
// on the same value.
func GetAuthSecret(ctx context.Context, db *sql.DB) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating auth secret: %w", err)
	}

	_, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO settings (key, value) VALUES (?, ?)`,
		SettingAuthSecret, hex.EncodeToString(buf),
	)
	if err != nil {
		return "", fmt.Errorf("storing auth secret: %w", err)
	}

	secret, err := GetSetting(ctx, db, SettingAuthSecret)
	if err != nil {
		return "", err
	}
	return secret, nil
}

// GetSetting returns a setting value, or "" if it is not set.
func GetSetting(ctx context.Context, db *sql.DB, key string) (string, error) {
	var value string
	err := db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?`, key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("getting setting %s: %w", key, err)
	}
	return value, nil
}

// SetSetting stores a setting value.
func SetSetting(ctx context.Context, db *sql.DB, key, value string) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("setting %s: %w", key, err)
	}
	return nil
}

// GetLoanDays returns the default loan period in days.
func GetLoanDays(ctx context.Context, db *sql.DB) (int, error) {
	v, err := GetSetting(ctx, db, SettingLoanDays)
	if err != nil {
		return 0, err
	}
	days, err := strconv.Atoi(v)
	if err != nil || days <= 0 {
		return DefaultLoanDays, nil
	}
	return days, nil
}
