// Package config loads pressroom configuration from environment variables,
// optionally overlaid with a YAML config file.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// General
	Environment string `envconfig:"ENVIRONMENT" default:"development" yaml:"environment"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" yaml:"log_level"`

	// Storage backend: "file" or "sqlite"
	StorageBackend string `envconfig:"STORAGE_BACKEND" default:"file" yaml:"storage_backend"`
	// DataDir is the base directory for the file backend (one subdir per project).
	DataDir string `envconfig:"DATA_DIR" default:"data/projects" yaml:"data_dir"`
	// SQLitePath is the database path for the sqlite backend.
	SQLitePath string `envconfig:"SQLITE_PATH" default:"data/pressroom.db" yaml:"sqlite_path"`

	// HTTP API
	ListenAddr     string `envconfig:"LISTEN_ADDR" default:":8080" yaml:"listen_addr"`
	CORSOrigins    string `envconfig:"CORS_ORIGINS" yaml:"cors_origins"`
	RateLimitRPS   int    `envconfig:"RATE_LIMIT_RPS" default:"100" yaml:"rate_limit_rps"`
	RateLimitBurst int    `envconfig:"RATE_LIMIT_BURST" default:"200" yaml:"rate_limit_burst"`

	// Auto-save debounce window in milliseconds. 0 disables the debouncer.
	AutoSaveDebounceMs int `envconfig:"AUTOSAVE_DEBOUNCE_MS" default:"2000" yaml:"autosave_debounce_ms"`
}

// UsesSQLite returns true if the sqlite backend is selected.
func (c *Config) UsesSQLite() bool {
	return strings.EqualFold(c.StorageBackend, "sqlite")
}

// Validate checks configuration invariants that envconfig cannot express.
func (c *Config) Validate() error {
	switch strings.ToLower(c.StorageBackend) {
	case "file", "sqlite":
	default:
		return fmt.Errorf("unknown storage backend %q (expected file or sqlite)", c.StorageBackend)
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		return fmt.Errorf("rate limit values must be non-negative")
	}
	return nil
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("PRESSROOM", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var envRefRe = regexp.MustCompile(`\$\{(\w+)\}|\$(\w+)`)

// expandEnv replaces ${VAR} and $VAR references with environment variable
// values. Unset variables expand to "".
func expandEnv(s string) string {
	return envRefRe.ReplaceAllStringFunc(s, func(m string) string {
		name := strings.TrimPrefix(strings.TrimPrefix(m, "${"), "$")
		name = strings.TrimSuffix(name, "}")
		return os.Getenv(name)
	})
}

// LoadFile reads configuration from the environment, then overlays values
// from a YAML file. File values win over environment values; ${VAR}
// references inside file values are expanded.
func LoadFile(path string) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	expanded := expandEnv(string(raw))

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
