package store

import (
	"context"
	"testing"

	"github.com/erazemk/izposoja/internal/db"
)

func TestGetAuthSecretGeneratesAndPersists(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	secret1, err := GetAuthSecret(ctx, database)
	if err != nil {
		t.Fatal(err)
	}
	if len(secret1) != 64 { // 32 bytes = 64 hex chars
		t.Fatalf("expected 64 hex chars, got %d", len(secret1))
	}

	secret2, err := GetAuthSecret(ctx, database)
	if err != nil {
		t.Fatal(err)
	}
	if secret1 != secret2 {
		t.Fatalf("expected same secret, got %q and %q", secret1, secret2)
	}
}

func TestSettings(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	v, err := GetSetting(ctx, database, SettingCharityName)
	if err != nil || v != "" {
		t.Fatalf("expected empty unset value, got %q, %v", v, err)
	}

	SetSetting(ctx, database, SettingCharityName, "Karitas")
	SetSetting(ctx, database, SettingCharityName, "Rdeči križ")
	if v, _ := GetSetting(ctx, database, SettingCharityName); v != "Rdeči križ" {
		t.Errorf("expected overwritten value, got %q", v)
	}
}

func TestGetLoanDays(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	if days, _ := GetLoanDays(ctx, database); days != DefaultLoanDays {
		t.Errorf("expected default %d, got %d", DefaultLoanDays, days)
	}

	SetSetting(ctx, database, SettingLoanDays, "21")
	if days, _ := GetLoanDays(ctx, database); days != 21 {
		t.Errorf("expected 21, got %d", days)
	}

	SetSetting(ctx, database, SettingLoanDays, "-3")
	if days, _ := GetLoanDays(ctx, database); days != DefaultLoanDays {
		t.Errorf("expected fallback to default for invalid value, got %d", days)
	}
}
