// Package storage picks the item store and notification log backend from
// DATABASE_URL. Shared by cmd/api and cmd/freshctl.
package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/albapepper/freshtrack/internal/config"
	"github.com/albapepper/freshtrack/internal/db"
	"github.com/albapepper/freshtrack/internal/localstore"
	"github.com/albapepper/freshtrack/internal/notifications"
	"github.com/albapepper/freshtrack/internal/pantry"
)

// NotificationLog is everything the service needs from the notification log.
type NotificationLog interface {
	notifications.Log
	notifications.History
	notifications.Pruner
}

// Backend is an opened storage backend.
type Backend struct {
	Items pantry.Store
	Log   NotificationLog

	// Kind is "postgres" or "sqlite".
	Kind string

	// ListenURL is the Postgres URL for change notifications, empty for
	// SQLite.
	ListenURL string

	close func()
}

// Close releases the backend.
func (b *Backend) Close() {
	if b.close != nil {
		b.close()
	}
}

// Open connects to the configured backend. With migrate set the Postgres
// schema is applied first; SQLite always migrates on open.
func Open(ctx context.Context, cfg *config.Config, migrate bool, logger *slog.Logger) (*Backend, error) {
	if path, ok := cfg.SQLitePath(); ok {
		s, err := localstore.Open(path)
		if err != nil {
			return nil, err
		}
		logger.Info("Using SQLite storage", "path", path)
		return &Backend{
			Items: s,
			Log:   s,
			Kind:  "sqlite",
			close: func() { _ = s.Close() },
		}, nil
	}

	if migrate {
		if err := db.Migrate(ctx, cfg, logger); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	pool, err := db.New(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("Database connected",
		"min_conns", cfg.DBPoolMinConns,
		"max_conns", cfg.DBPoolMaxConns)
	return &Backend{
		Items:     pantry.NewPGStore(pool.Pool),
		Log:       notifications.NewPGLog(pool.Pool),
		Kind:      "postgres",
		ListenURL: cfg.DatabaseURL,
		close:     pool.Close,
	}, nil
}
