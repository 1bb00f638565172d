// Package config provides centralized configuration management for the
// notes service. It loads configuration from CLI flags and environment
// variables, validates required fields, and provides sensible defaults.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/AdityaUmale/note-taking/internal/ratelimit"
)

// Config holds all application configuration.
type Config struct {
	// Server settings
	ListenAddr string
	BaseURL    string

	// Database and encryption
	MasterKey    string // 64 hex characters (32 bytes), SQLCipher key
	DatabasePath string

	// Bearer tokens
	TokenSigningKey string        // 64 hex characters (ed25519 seed)
	TokenTTL        time.Duration // How long issued tokens remain valid

	// Rate limiting
	RateLimitConfig ratelimit.Config

	// Background reconciliation of favorite state
	ReconcileInterval time.Duration
}

// ValidationError represents a configuration validation error with multiple issues.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// ParseFlags parses CLI flags and returns them. Call before LoadConfig.
func ParseFlags() (addr string) {
	flag.StringVar(&addr, "addr", "", "Listen address (default :8080, overrides LISTEN_ADDR env var)")
	flag.Parse()
	return addr
}

// LoadConfig loads configuration from environment variables and CLI flag
// values. The addr flag overrides the LISTEN_ADDR env var if non-empty.
func LoadConfig(addr string) (*Config, error) {
	cfg := &Config{}

	// Server settings
	cfg.ListenAddr = getEnvOrDefault("LISTEN_ADDR", ":8080")
	if addr != "" {
		cfg.ListenAddr = addr
	}
	cfg.BaseURL = strings.TrimSpace(os.Getenv("BASE_URL"))
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost" + cfg.ListenAddr
	}

	// Database and encryption
	cfg.MasterKey = os.Getenv("MASTER_KEY")
	cfg.DatabasePath = getEnvOrDefault("DATABASE_PATH", "./data/notes.db")

	// Bearer tokens
	cfg.TokenSigningKey = os.Getenv("TOKEN_SIGNING_KEY")
	cfg.TokenTTL = parseDurationOrDefault("TOKEN_TTL", 24*time.Hour)

	// Rate limiting
	cfg.RateLimitConfig = ratelimit.Config{
		RPS:             parseFloat64OrDefault("RATE_LIMIT_RPS", 10),
		Burst:           parseIntOrDefault("RATE_LIMIT_BURST", 20),
		CleanupInterval: parseDurationOrDefault("RATE_LIMIT_CLEANUP_INTERVAL", time.Hour),
	}

	// Reconciliation
	cfg.ReconcileInterval = parseDurationOrDefault("RECONCILE_INTERVAL", 15*time.Minute)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present and valid.
func (c *Config) Validate() error {
	var errs []string

	// MasterKey: always required (losing it = database unreadable)
	if c.MasterKey == "" {
		errs = append(errs, "MASTER_KEY is required (generate with: openssl rand -hex 32)")
	} else if len(c.MasterKey) != 64 {
		errs = append(errs, "MASTER_KEY must be 64 hex characters (32 bytes)")
	}

	if c.TokenSigningKey == "" {
		errs = append(errs, "TOKEN_SIGNING_KEY is required (generate with: openssl rand -hex 32)")
	} else if len(c.TokenSigningKey) != 64 {
		errs = append(errs, "TOKEN_SIGNING_KEY must be 64 hex characters (ed25519 seed)")
	}

	if c.TokenTTL <= 0 {
		errs = append(errs, "TOKEN_TTL must be positive")
	}

	if c.RateLimitConfig.RPS <= 0 {
		errs = append(errs, "RATE_LIMIT_RPS must be positive")
	}
	if c.RateLimitConfig.Burst <= 0 {
		errs = append(errs, "RATE_LIMIT_BURST must be positive")
	}

	if c.ReconcileInterval <= 0 {
		errs = append(errs, "RECONCILE_INTERVAL must be positive")
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}

	return nil
}

// PrintStartupSummary prints a human-readable summary of the configuration to stderr.
func (c *Config) PrintStartupSummary() {
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "notes server starting...")
	fmt.Fprintf(os.Stderr, "  Listen:    %s\n", c.ListenAddr)
	fmt.Fprintf(os.Stderr, "  Base:      %s\n", c.BaseURL)
	fmt.Fprintf(os.Stderr, "  Database:  %s (encrypted)\n", c.DatabasePath)
	fmt.Fprintf(os.Stderr, "  Token TTL: %s\n", c.TokenTTL)
	fmt.Fprintf(os.Stderr, "  Reconcile: every %s\n", c.ReconcileInterval)
	fmt.Fprintln(os.Stderr, "")
}

// Helper functions for parsing environment variables

func getEnvOrDefault(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

func parseIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseFloat64OrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// MustLoadConfig loads configuration and panics if validation fails.
// Use this in main() when you want the application to fail fast on bad config.
func MustLoadConfig(addr string) *Config {
	cfg, err := LoadConfig(addr)
	if err != nil {
		var validationErr *ValidationError
		if errors.As(err, &validationErr) {
			panic(fmt.Sprintf("Configuration validation failed:\n  - %s", strings.Join(validationErr.Errors, "\n  - ")))
		}
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}
	return cfg
}
