// Package db provides a pgxpool-based connection pool with prepared statement
// registration, schema migration and health checking.
package db

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/albapepper/freshtrack/internal/config"
)

//go:embed schema.sql
var schemaSQL string

// connectRetryDelay is the first backoff step while the database is not ready.
var connectRetryDelay = time.Second

// Pool wraps pgxpool.Pool with application-specific helpers.
type Pool struct {
	*pgxpool.Pool
}

// New creates and validates a new connection pool. The first connection is
// retried up to cfg.DBConnectAttempts times so the service can start before
// the database is ready.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolCfg.MinConns = int32(cfg.DBPoolMinConns)
	poolCfg.MaxConns = int32(cfg.DBPoolMaxConns)
	poolCfg.MaxConnLifetime = cfg.DBPoolMaxLife
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	// Register prepared statements on every new connection.
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return registerPreparedStatements(ctx, conn)
	}

	var pool *pgxpool.Pool
	err = withConnectRetry(ctx, cfg.DBConnectAttempts, connectRetryDelay, logger, func() error {
		p, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return retry.Unrecoverable(fmt.Errorf("create pool: %w", err))
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			return fmt.Errorf("ping database: %w", err)
		}
		pool = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &Pool{Pool: pool}, nil
}

// HealthCheck runs a trivial query to verify the database is reachable.
func (p *Pool) HealthCheck(ctx context.Context) error {
	var n int
	return p.QueryRow(ctx, "health_check").Scan(&n)
}

// Prepared statements are registered on each new connection, so the schema
// must exist before the pool opens its first one. Migrate uses a plain
// connection for that reason.
var preparedStatements = map[string]string{
	// Health
	"health_check": "SELECT 1",

	// Recipients. The no-op update makes RETURNING yield the existing row.
	"ensure_recipient": `INSERT INTO recipients (id) VALUES ($1)
		ON CONFLICT (id) DO UPDATE SET updated_at = recipients.updated_at
		RETURNING id, push_token, created_at, updated_at`,

	// Items
	"item_by_id": `SELECT id, recipient_id, name, purchased_at, expires_at, estimated, created_at, updated_at
		FROM pantry_items WHERE id = $1`,
	"items_by_recipient": `SELECT id, recipient_id, name, purchased_at, expires_at, estimated, created_at, updated_at
		FROM pantry_items WHERE recipient_id = $1 ORDER BY expires_at, created_at`,

	// Scheduler: items expiring in [$1, $2) whose recipient has an address
	"find_eligible_items": `SELECT i.id, i.recipient_id, i.name, i.purchased_at, i.expires_at, i.estimated,
			i.created_at, i.updated_at, r.push_token
		FROM pantry_items i
		JOIN recipients r ON r.id = i.recipient_id
		WHERE r.push_token IS NOT NULL AND r.push_token <> ''
		  AND i.expires_at >= $1 AND i.expires_at < $2
		ORDER BY i.expires_at`,

	// Notification log
	"notification_log_exists": "SELECT EXISTS (SELECT 1 FROM notification_log WHERE item_id = $1 AND kind = $2)",
	"notification_log_record": `INSERT INTO notification_log (item_id, kind, sent_at) VALUES ($1, $2, $3)
		ON CONFLICT (item_id, kind) DO NOTHING`,
}

func registerPreparedStatements(ctx context.Context, conn *pgx.Conn) error {
	for name, sql := range preparedStatements {
		if _, err := conn.Prepare(ctx, name, sql); err != nil {
			return fmt.Errorf("prepare %q: %w", name, err)
		}
	}
	return nil
}

// Migrate applies the embedded schema over a plain connection. It is safe to
// run repeatedly. Connecting is retried like New so migrations can run before
// the database is ready.
func Migrate(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	return withConnectRetry(ctx, cfg.DBConnectAttempts, connectRetryDelay, logger, func() error {
		conn, err := pgx.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect: %w", err)
		}
		defer conn.Close(ctx)

		if _, err := conn.Exec(ctx, schemaSQL); err != nil {
			return retry.Unrecoverable(fmt.Errorf("apply schema: %w", err))
		}
		return nil
	})
}

// withConnectRetry runs connect up to attempts times with exponential
// backoff starting at delay. Errors wrapped in retry.Unrecoverable stop early.
func withConnectRetry(ctx context.Context, attempts int, delay time.Duration, logger *slog.Logger, connect func() error) error {
	return retry.Do(connect,
		retry.Attempts(uint(max(attempts, 1))),
		retry.Delay(delay),
		retry.MaxDelay(30*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			logger.Warn("Database not ready, retrying", "attempt", n+1, "error", err)
		}),
	)
}
