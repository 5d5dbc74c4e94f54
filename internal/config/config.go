// Package config provides centralized configuration loaded from environment
// variables. Shared by both cmd/api and cmd/freshctl.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// SQLitePrefix marks a DATABASE_URL that points at a local SQLite file.
const SQLitePrefix = "sqlite:"

// Push delivery modes.
const (
	PushModeGateway = "gateway"
	PushModeLog     = "log"
)

// DefaultRecipientID is the implicit single tenant when nothing else is set.
var DefaultRecipientID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

// --------------------------------------------------------------------------
// Config struct, populated from environment variables
// --------------------------------------------------------------------------

type Config struct {
	// Database
	DatabaseURL       string
	DBPoolMinConns    int
	DBPoolMaxConns    int
	DBPoolMaxLife     time.Duration
	DBConnectAttempts int

	// API server
	APIHost     string
	APIPort     int
	Environment string // development, staging, production
	LogLevel    slog.Level

	// CORS
	CORSAllowOrigins []string

	// Rate limiting
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Cache
	CacheEnabled bool

	// Tenant
	RecipientID uuid.UUID

	// Notification scheduler
	NotifyEnabled     bool
	NotifySchedule    string
	NotifyLocation    *time.Location
	NotifyConcurrency int
	CleanupSchedule   string

	// Push gateway
	PushMode          string
	PushGatewayURL    string
	PushAccessToken   string
	PushRatePerSecond float64

	// Extraction service
	ExtractionURL     string
	ExtractionAPIKey  string
	ExtractionTimeout time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	dbURL := envOr("DATABASE_URL", "")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL must be set")
	}

	cfg := &Config{
		DatabaseURL:       dbURL,
		DBPoolMinConns:    envInt("DB_POOL_MIN_CONNS", 2),
		DBPoolMaxConns:    envInt("DB_POOL_MAX_CONNS", 10),
		DBPoolMaxLife:     time.Duration(envInt("DB_POOL_MAX_LIFE_MINUTES", 30)) * time.Minute,
		DBConnectAttempts: envInt("DB_CONNECT_ATTEMPTS", 5),

		APIHost:     envOr("API_HOST", "0.0.0.0"),
		APIPort:     envInt("API_PORT", envInt("PORT", 8000)),
		Environment: envOr("ENVIRONMENT", "development"),

		CORSAllowOrigins: envList("CORS_ALLOW_ORIGINS", []string{
			"http://localhost:8081",
			"http://localhost:19006",
		}),

		RateLimitEnabled:  envBool("RATE_LIMIT_ENABLED", true),
		RateLimitRequests: envInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:   time.Duration(envInt("RATE_LIMIT_WINDOW", 60)) * time.Second,

		CacheEnabled: envBool("CACHE_ENABLED", true),

		NotifyEnabled:     envBool("NOTIFY_ENABLED", true),
		NotifySchedule:    envOr("NOTIFY_SCHEDULE", "0 9 * * *"),
		NotifyConcurrency: envInt("NOTIFY_CONCURRENCY", 4),
		CleanupSchedule:   envOr("CLEANUP_SCHEDULE", "30 3 * * *"),

		PushMode:          strings.ToLower(envOr("PUSH_MODE", PushModeGateway)),
		PushGatewayURL:    envOr("PUSH_GATEWAY_URL", "https://exp.host/--/api/v2/push/send"),
		PushAccessToken:   envOr("PUSH_ACCESS_TOKEN", ""),
		PushRatePerSecond: envFloat("PUSH_RATE_PER_SECOND", 10),

		ExtractionURL:     envOr("EXTRACTION_URL", ""),
		ExtractionAPIKey:  envOr("EXTRACTION_API_KEY", ""),
		ExtractionTimeout: envDuration("EXTRACTION_TIMEOUT", 30*time.Second),
	}

	var err error
	if cfg.LogLevel, err = parseLevel(envOr("LOG_LEVEL", "info")); err != nil {
		return nil, err
	}

	if cfg.NotifyLocation, err = time.LoadLocation(envOr("NOTIFY_TIMEZONE", "Local")); err != nil {
		return nil, fmt.Errorf("NOTIFY_TIMEZONE: %w", err)
	}

	for key, spec := range map[string]string{
		"NOTIFY_SCHEDULE":  cfg.NotifySchedule,
		"CLEANUP_SCHEDULE": cfg.CleanupSchedule,
	} {
		if _, err := cron.ParseStandard(spec); err != nil {
			return nil, fmt.Errorf("%s %q: %w", key, spec, err)
		}
	}

	cfg.RecipientID = DefaultRecipientID
	if v := envOr("DEFAULT_RECIPIENT_ID", ""); v != "" {
		if cfg.RecipientID, err = uuid.Parse(v); err != nil {
			return nil, fmt.Errorf("DEFAULT_RECIPIENT_ID: %w", err)
		}
	}

	if cfg.PushMode != PushModeGateway && cfg.PushMode != PushModeLog {
		return nil, fmt.Errorf("PUSH_MODE must be %q or %q, got %q", PushModeGateway, PushModeLog, cfg.PushMode)
	}

	return cfg, nil
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// SQLitePath returns the SQLite file path and true when DATABASE_URL uses
// the sqlite: scheme.
func (c *Config) SQLitePath() (string, bool) {
	if !strings.HasPrefix(c.DatabaseURL, SQLitePrefix) {
		return "", false
	}
	return strings.TrimPrefix(c.DatabaseURL, SQLitePrefix), true
}

// ExtractionEnabled reports whether an extraction service is configured.
func (c *Config) ExtractionEnabled() bool {
	return c.ExtractionURL != ""
}

// --------------------------------------------------------------------------
// Env helpers
// --------------------------------------------------------------------------

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}

func parseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return lvl, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return lvl, nil
}
