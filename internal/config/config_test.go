package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/freshtrack")
	t.Setenv("NOTIFY_TIMEZONE", "UTC")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0 9 * * *", cfg.NotifySchedule)
	assert.Equal(t, "30 3 * * *", cfg.CleanupSchedule)
	assert.Equal(t, 4, cfg.NotifyConcurrency)
	assert.Equal(t, time.UTC, cfg.NotifyLocation)
	assert.Equal(t, PushModeGateway, cfg.PushMode)
	assert.Equal(t, DefaultRecipientID, cfg.RecipientID)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, 30*time.Second, cfg.ExtractionTimeout)
	assert.False(t, cfg.ExtractionEnabled())

	_, ok := cfg.SQLitePath()
	assert.False(t, ok)
}

func TestLoadOverrides(t *testing.T) {
	id := uuid.New()
	t.Setenv("DATABASE_URL", "sqlite:/tmp/fresh.db")
	t.Setenv("NOTIFY_TIMEZONE", "America/New_York")
	t.Setenv("NOTIFY_SCHEDULE", "15 7 * * *")
	t.Setenv("NOTIFY_CONCURRENCY", "8")
	t.Setenv("DEFAULT_RECIPIENT_ID", id.String())
	t.Setenv("PUSH_MODE", "LOG")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("EXTRACTION_URL", "http://extract.local")
	t.Setenv("EXTRACTION_TIMEOUT", "5s")
	t.Setenv("CORS_ALLOW_ORIGINS", "https://a.example, ,https://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	path, ok := cfg.SQLitePath()
	assert.True(t, ok)
	assert.Equal(t, "/tmp/fresh.db", path)
	assert.Equal(t, "America/New_York", cfg.NotifyLocation.String())
	assert.Equal(t, "15 7 * * *", cfg.NotifySchedule)
	assert.Equal(t, 8, cfg.NotifyConcurrency)
	assert.Equal(t, id, cfg.RecipientID)
	assert.Equal(t, PushModeLog, cfg.PushMode)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.True(t, cfg.ExtractionEnabled())
	assert.Equal(t, 5*time.Second, cfg.ExtractionTimeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowOrigins)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"missing database", map[string]string{"DATABASE_URL": ""}, "DATABASE_URL"},
		{"bad zone", map[string]string{"NOTIFY_TIMEZONE": "Mars/Olympus"}, "NOTIFY_TIMEZONE"},
		{"bad schedule", map[string]string{"NOTIFY_SCHEDULE": "every morning"}, "NOTIFY_SCHEDULE"},
		{"bad cleanup", map[string]string{"CLEANUP_SCHEDULE": "* *"}, "CLEANUP_SCHEDULE"},
		{"bad recipient", map[string]string{"DEFAULT_RECIPIENT_ID": "me"}, "DEFAULT_RECIPIENT_ID"},
		{"bad push mode", map[string]string{"PUSH_MODE": "carrier-pigeon"}, "PUSH_MODE"},
		{"bad log level", map[string]string{"LOG_LEVEL": "loud"}, "LOG_LEVEL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DATABASE_URL", "postgres://localhost/freshtrack")
			t.Setenv("NOTIFY_TIMEZONE", "UTC")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
