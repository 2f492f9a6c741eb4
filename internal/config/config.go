// Package config handles application configuration and environment loading.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultSecretKey is used when SECRET_KEY is unset. It is refused in
// production.
const DefaultSecretKey = "dev-secret-change-in-production"

// ToolbarConfig controls the debug toolbar and its SQL panel. It can be read
// from a YAML file (DEBUG_TB_CONFIG); individual environment variables
// override the file.
type ToolbarConfig struct {
	Enabled          bool     `yaml:"enabled"`
	ReplaceSQLPanel  bool     `yaml:"replace_sql_panel"`
	InternalPackages []string `yaml:"internal_packages"` // extra packages skipped by the call-site resolver
	Panels           []string `yaml:"panels"`            // ordered panel ids; empty means the defaults

	RerunRateLimitRPS   float64 `yaml:"rerun_rate_limit_rps"`
	RerunRateLimitBurst int     `yaml:"rerun_rate_limit_burst"`
}

// Config holds the configuration of the demo server and its debug toolbar.
type Config struct {
	ListenAddr string // HTTP listen address (default ":8080")
	DBDriver   string // "sqlite3" (default) or "duckdb"
	DBDSN      string // database DSN (default "sqlpanel.sqlite" for sqlite3, in-memory for duckdb)
	SecretKey  string // signs re-executable queries
	LogLevel   string // log level: debug, info, warn, error (default "info")
	Env        string // environment: "development" (default) or "production"

	ToolbarConfigFile string
	Toolbar           ToolbarConfig

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsProduction returns true when the server is running in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// NewLogger builds the process logger: text output in development, JSON in
// production.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if c.IsProduction() {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		ListenAddr:        os.Getenv("LISTEN_ADDR"),
		DBDriver:          os.Getenv("DB_DRIVER"),
		DBDSN:             os.Getenv("DB_DSN"),
		SecretKey:         os.Getenv("SECRET_KEY"),
		LogLevel:          os.Getenv("LOG_LEVEL"),
		Env:               os.Getenv("ENV"),
		ToolbarConfigFile: os.Getenv("DEBUG_TB_CONFIG"),
	}

	// The toolbar is on by default outside production.
	cfg.Toolbar = ToolbarConfig{
		Enabled:         !cfg.IsProduction(),
		ReplaceSQLPanel: true,
	}
	if cfg.ToolbarConfigFile != "" {
		if err := LoadToolbarFile(cfg.ToolbarConfigFile, &cfg.Toolbar); err != nil {
			return nil, err
		}
	}

	cfg.Toolbar.Enabled = parseBoolEnvDefault("DEBUG_TB_ENABLED", cfg.Toolbar.Enabled)
	cfg.Toolbar.ReplaceSQLPanel = parseBoolEnvDefault("DEBUG_TB_REPLACE_SQL_PANEL", cfg.Toolbar.ReplaceSQLPanel)
	if v := os.Getenv("DEBUG_TB_INTERNAL_PACKAGES"); v != "" {
		cfg.Toolbar.InternalPackages = splitList(v)
	}
	if v := os.Getenv("DEBUG_TB_PANELS"); v != "" {
		cfg.Toolbar.Panels = splitList(v)
	}

	// Rate limiting of the re-execution endpoints
	if v := os.Getenv("RERUN_RATE_LIMIT_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("RERUN_RATE_LIMIT_RPS: %w", err)
		}
		cfg.Toolbar.RerunRateLimitRPS = f
	}
	if v := os.Getenv("RERUN_RATE_LIMIT_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("RERUN_RATE_LIMIT_BURST: %w", err)
		}
		cfg.Toolbar.RerunRateLimitBurst = n
	}

	// Defaults
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.DBDriver == "" {
		cfg.DBDriver = "sqlite3"
	}
	switch cfg.DBDriver {
	case "sqlite3":
		if cfg.DBDSN == "" {
			cfg.DBDSN = "sqlpanel.sqlite"
		}
	case "duckdb":
	default:
		return nil, fmt.Errorf("DB_DRIVER must be \"sqlite3\" or \"duckdb\", got %q", cfg.DBDriver)
	}
	if cfg.SecretKey == "" {
		cfg.SecretKey = DefaultSecretKey
		cfg.Warnings = append(cfg.Warnings, "SECRET_KEY not set, using insecure default. Set SECRET_KEY outside local development!")
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Toolbar.RerunRateLimitRPS == 0 {
		cfg.Toolbar.RerunRateLimitRPS = 5
	}
	if cfg.Toolbar.RerunRateLimitBurst == 0 {
		cfg.Toolbar.RerunRateLimitBurst = 10
	}
	if cfg.Toolbar.Enabled {
		cfg.Warnings = append(cfg.Warnings, "debug toolbar is enabled: recorded SQL can be re-executed from the browser")
	}

	// Production mode: insecure defaults are fatal errors.
	if cfg.IsProduction() {
		if cfg.Toolbar.Enabled {
			return nil, fmt.Errorf("the debug toolbar must not be enabled in production (ENV=production)")
		}
		if cfg.SecretKey == DefaultSecretKey {
			return nil, fmt.Errorf("SECRET_KEY must be set in production (ENV=production)")
		}
	}

	return cfg, nil
}

// LoadToolbarFile decodes a YAML toolbar configuration into tb. Fields absent
// from the file keep their current values; unknown fields are an error.
func LoadToolbarFile(path string, tb *ToolbarConfig) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		return fmt.Errorf("open toolbar config %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(tb); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse toolbar config %s: %w", path, err)
	}
	return nil
}

func parseBoolEnvDefault(key string, defaultVal bool) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if v == "" {
		return defaultVal
	}
	if v == "0" || v == "false" || v == "no" || v == "off" {
		return false
	}
	if v == "1" || v == "true" || v == "yes" || v == "on" {
		return true
	}
	return defaultVal
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// LoadDotEnv reads a .env file and sets any variables not already in the environment.
// Lines must be in KEY=VALUE format. Comments (#) and blank lines are skipped.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil // .env not found is not an error
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = stripQuotes(strings.TrimSpace(value))
		// Only set if not already in the environment (env vars take precedence)
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

// stripQuotes removes surrounding double or single quotes from a value.
// Only strips if both the first and last characters are matching quotes.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
