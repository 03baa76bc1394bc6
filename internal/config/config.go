// Package config handles console configuration and environment loading.
package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Defaults applied when the corresponding variable is unset or invalid.
const (
	DefaultDBType          = "postgres"
	DefaultMaxRows         = 10000
	DefaultQueryTimeout    = 30 * time.Second
	DefaultJournalCapacity = 10000
	DefaultHistoryCapacity = 500
	DefaultPageSize        = 50
)

// Config holds the console configuration. Connection details (host, user,
// file path) are read by each dbadapter from its own MCP_<DB>_* variables.
type Config struct {
	DBType          string        // postgres, mysql or sqlite
	ReadOnly        bool          // refuse writes and enforce a read-only session (default true)
	MaxRows         int           // rows returned per query before truncation
	QueryTimeout    time.Duration // per-statement timeout
	JournalCapacity int
	HistoryCapacity int
	PageSize        int    // default browse page size
	LogLevel        string // debug, info, warn, error (default "info")

	// Warnings collects non-fatal problems found while loading. They are
	// logged by the caller once the logger exists.
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

// Validate checks values that may also have been set by flags.
func (c *Config) Validate() error {
	switch c.DBType {
	case "postgres", "mysql", "sqlite":
	default:
		return fmt.Errorf("unsupported database type %q (expected postgres, mysql or sqlite)", c.DBType)
	}
	if c.MaxRows < 1 {
		return fmt.Errorf("max rows must be positive, got %d", c.MaxRows)
	}
	if c.QueryTimeout <= 0 {
		return fmt.Errorf("query timeout must be positive, got %s", c.QueryTimeout)
	}
	return nil
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		DBType:   strings.ToLower(strings.TrimSpace(os.Getenv("MCP_DB_TYPE"))),
		LogLevel: os.Getenv("LOG_LEVEL"),
	}

	cfg.ReadOnly = cfg.parseBool("MCP_READ_ONLY", true)
	cfg.MaxRows = cfg.parsePositiveInt("MCP_MAX_ROWS", DefaultMaxRows)
	cfg.JournalCapacity = cfg.parsePositiveInt("MCP_JOURNAL_CAPACITY", DefaultJournalCapacity)
	cfg.HistoryCapacity = cfg.parsePositiveInt("MCP_HISTORY_CAPACITY", DefaultHistoryCapacity)
	cfg.PageSize = cfg.parsePositiveInt("MCP_PAGE_SIZE", DefaultPageSize)

	cfg.QueryTimeout = DefaultQueryTimeout
	if v := os.Getenv("MCP_QUERY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.QueryTimeout = d
		} else {
			cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("invalid MCP_QUERY_TIMEOUT %q, using %s", v, DefaultQueryTimeout))
		}
	}

	if cfg.DBType == "" {
		cfg.DBType = DefaultDBType
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if !cfg.ReadOnly {
		cfg.Warnings = append(cfg.Warnings, "read-only mode disabled; writes are allowed and journaled")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) parseBool(key string, defaultVal bool) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch v {
	case "":
		return defaultVal
	case "0", "false", "no", "off":
		return false
	case "1", "true", "yes", "on":
		return true
	}
	c.Warnings = append(c.Warnings, fmt.Sprintf("invalid %s %q, using %t", key, v, defaultVal))
	return defaultVal
}

func (c *Config) parsePositiveInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 1 {
		c.Warnings = append(c.Warnings, fmt.Sprintf("invalid %s %q, using %d", key, v, defaultVal))
		return defaultVal
	}
	return n
}

// LoadDotEnv reads a .env file and sets any variables not already in the environment.
// Lines must be in KEY=VALUE format. Comments (#) and blank lines are skipped.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil
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
		if _, set := os.LookupEnv(key); !set {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
