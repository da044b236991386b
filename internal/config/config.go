// Package config loads izposoja settings from a TOML file, a .env file and
// the environment.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the complete application configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Store    StoreConfig    `toml:"store"`
	Insights InsightsConfig `toml:"insights"`
	Admin    AdminConfig    `toml:"admin"`
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Addr            string   `toml:"addr"`
	LogFile         string   `toml:"log_file"`
	ShutdownTimeout Duration `toml:"shutdown_timeout"`
}

// DatabaseConfig controls the SQLite database holding users, settings and,
// with the sqlite backend, items.
type DatabaseConfig struct {
	Path string `toml:"path"`
}

// StoreConfig selects the item storage backend.
type StoreConfig struct {
	Backend string      `toml:"backend"`
	Mongo   MongoConfig `toml:"mongo"`
}

// MongoConfig configures the mongo backend.
type MongoConfig struct {
	URI      string   `toml:"uri"`
	Database string   `toml:"database"`
	Timeout  Duration `toml:"timeout"`
}

// InsightsConfig configures the insight generator.
type InsightsConfig struct {
	// Provider is "gemini", "rules" or "auto" (gemini when an API key is set).
	Provider    string   `toml:"provider"`
	APIKey      string   `toml:"api_key,omitempty"`
	Model       string   `toml:"model"`
	Timeout     Duration `toml:"timeout"`
	DueSoonDays int      `toml:"due_soon_days"`
}

// AdminConfig controls first-run account creation.
type AdminConfig struct {
	Username string `toml:"username"`
}

// Insight providers.
const (
	ProviderAuto   = "auto"
	ProviderGemini = "gemini"
	ProviderRules  = "rules"
)

// Store backends.
const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
	BackendMongo  = "mongo"
)

// Duration is a time.Duration written as a string such as "30s" in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText formats the duration.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: Duration{5 * time.Second},
		},
		Database: DatabaseConfig{Path: "izposoja.sqlite3"},
		Store: StoreConfig{
			Backend: BackendSQLite,
			Mongo: MongoConfig{
				Database: "izposoja",
				Timeout:  Duration{10 * time.Second},
			},
		},
		Insights: InsightsConfig{
			Provider:    ProviderAuto,
			Timeout:     Duration{30 * time.Second},
			DueSoonDays: 3,
		},
		Admin: AdminConfig{Username: "admin"},
	}
}

// UseGemini reports whether insights should be generated with Gemini.
func (c *InsightsConfig) UseGemini() bool {
	switch c.Provider {
	case ProviderGemini:
		return true
	case ProviderAuto:
		return c.APIKey != ""
	}
	return false
}

// DueSoon is the look-ahead window for upcoming return dates.
func (c *InsightsConfig) DueSoon() time.Duration {
	return time.Duration(c.DueSoonDays) * 24 * time.Hour
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required"))
	}

	switch c.Store.Backend {
	case BackendSQLite, BackendMemory:
	case BackendMongo:
		if c.Store.Mongo.URI == "" {
			errs = append(errs, errors.New("store.mongo.uri is required for the mongo backend"))
		}
		if c.Store.Mongo.Database == "" {
			errs = append(errs, errors.New("store.mongo.database is required for the mongo backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.backend: unknown backend %q", c.Store.Backend))
	}

	switch c.Insights.Provider {
	case ProviderAuto, ProviderRules:
	case ProviderGemini:
		if c.Insights.APIKey == "" {
			errs = append(errs, errors.New("insights.api_key is required for the gemini provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("insights.provider: unknown provider %q", c.Insights.Provider))
	}
	if c.Insights.DueSoonDays < 0 {
		errs = append(errs, errors.New("insights.due_soon_days must not be negative"))
	}

	if c.Admin.Username == "" {
		errs = append(errs, errors.New("admin.username is required"))
	}

	return errors.Join(errs...)
}
