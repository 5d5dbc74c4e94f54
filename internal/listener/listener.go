// Package listener provides a Postgres LISTEN/NOTIFY consumer that keeps the
// item list cache coherent across API instances. It holds a dedicated pgx
// connection (not from the pool) listening on the `pantry_items_changed`
// channel.
//
// The pantry_items trigger sends the owning recipient id as the payload on
// every insert, update and delete; this consumer drops that recipient's
// cached list.
package listener

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/albapepper/freshtrack/internal/cache"
)

const (
	// Channel is the notification channel the schema's trigger publishes to.
	Channel          = "pantry_items_changed"
	reconnectBackoff = 5 * time.Second
	maxReconnect     = 30 * time.Second
)

// Invalidator drops cached entries.
type Invalidator interface {
	Invalidate(key string)
	InvalidatePrefix(prefix string) int
}

// Start opens a dedicated connection and listens on the change channel. It
// reconnects automatically on connection loss. Blocks until ctx is
// cancelled. Intended to be called with `go`.
func Start(ctx context.Context, dbURL string, inv Invalidator, logger *slog.Logger) {
	backoff := reconnectBackoff

	for {
		err := listenLoop(ctx, dbURL, inv, logger)
		if ctx.Err() != nil {
			logger.Info("Item change listener stopped (context cancelled)")
			return
		}

		// Changes may have been missed while disconnected.
		inv.InvalidatePrefix(cache.ItemsKey(""))
		logger.Error("Item change listener disconnected, reconnecting...",
			"error", err, "backoff", backoff)

		select {
		case <-time.After(backoff):
			backoff = min(backoff*2, maxReconnect)
		case <-ctx.Done():
			return
		}
	}
}

// listenLoop runs a single listen session. Returns when the connection drops
// or the context is cancelled.
func listenLoop(ctx context.Context, dbURL string, inv Invalidator, logger *slog.Logger) error {
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(context.Background())

	_, err = conn.Exec(ctx, "LISTEN "+Channel)
	if err != nil {
		return fmt.Errorf("LISTEN %s: %w", Channel, err)
	}
	logger.Info("Item change listener connected", "channel", Channel)

	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}
		Handle(notification.Payload, inv, logger)
	}
}

// Handle applies one change notification.
func Handle(payload string, inv Invalidator, logger *slog.Logger) {
	id, err := uuid.Parse(payload)
	if err != nil {
		logger.Warn("Failed to parse item change payload", "payload", payload, "error", err)
		return
	}
	inv.Invalidate(cache.ItemsKey(id.String()))
	logger.Debug("Item list invalidated", "recipient_id", id)
}
