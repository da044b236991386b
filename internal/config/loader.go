package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// DefaultConfigFileName is looked up in the working directory when no path is given.
const DefaultConfigFileName = "izposoja.toml"

// DefaultEnvFileName is loaded into the environment if present.
const DefaultEnvFileName = ".env"

// Environment variables that override file settings.
const (
	EnvAddr        = "IZPOSOJA_ADDR"
	EnvDB          = "IZPOSOJA_DB"
	EnvStore       = "IZPOSOJA_STORE"
	EnvMongoURI    = "IZPOSOJA_MONGO_URI"
	EnvMongoDB     = "IZPOSOJA_MONGO_DB"
	EnvGeminiKey   = "GEMINI_API_KEY"
	EnvGoogleKey   = "GOOGLE_API_KEY"
	EnvInsightsLLM = "IZPOSOJA_INSIGHTS_MODEL"
)

// LoadError represents an error that occurred while loading configuration.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading config from %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Load builds the configuration from, in increasing precedence: defaults,
// the TOML file at explicitPath (or ./izposoja.toml if it exists), and the
// environment after loading ./.env. It returns the file path used, or "" if
// no file was read. The result is not validated so that flags can still
// override it.
func Load(explicitPath string) (*Config, string, error) {
	cfg := Default()

	path := explicitPath
	if path == "" && fileExists(DefaultConfigFileName) {
		path = DefaultConfigFileName
	}
	if path != "" {
		if err := decodeFile(path, cfg); err != nil {
			return nil, "", &LoadError{Path: path, Err: err}
		}
	}

	if err := LoadEnvFile(DefaultEnvFileName); err != nil {
		return nil, "", err
	}
	cfg.ApplyEnv(os.Getenv)

	return cfg, path, nil
}

func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}

	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return fmt.Errorf("parsing TOML: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	return nil
}

// LoadEnvFile loads variables from an env file without overriding variables
// that are already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if !fileExists(path) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return &LoadError{Path: path, Err: err}
	}
	return nil
}

// ApplyEnv overrides settings with non-empty environment variables.
func (c *Config) ApplyEnv(getenv func(string) string) {
	set := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := strings.TrimSpace(getenv(k)); v != "" {
				*dst = v
				return
			}
		}
	}

	set(&c.Server.Addr, EnvAddr)
	set(&c.Database.Path, EnvDB)
	set(&c.Store.Backend, EnvStore)
	set(&c.Store.Mongo.URI, EnvMongoURI)
	set(&c.Store.Mongo.Database, EnvMongoDB)
	set(&c.Insights.APIKey, EnvGeminiKey, EnvGoogleKey)
	set(&c.Insights.Model, EnvInsightsLLM)
	c.Store.Backend = strings.ToLower(c.Store.Backend)
}

// Save writes a configuration to a TOML file. The insights API key is left
// out; it belongs in the environment or .env.
func Save(cfg *Config, path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0640)
	if err != nil {
		return fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString("# izposoja configuration\n\n"); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	out := *cfg
	out.Insights.APIKey = ""
	if err := toml.NewEncoder(f).Encode(out); err != nil {
		return fmt.Errorf("encoding TOML: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
