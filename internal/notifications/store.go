package notifications

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrAlreadyRecorded is returned by Log.Record when the (item, kind) pair is
// already present. It signals a lost race, not a failure.
var ErrAlreadyRecorded = errors.New("notification already recorded")

// Log is the append-only record of notified (item, kind) pairs.
//
// Record must be a single atomic conditional insert backed by a storage-level
// unique constraint: of two concurrent calls for the same pair exactly one
// succeeds and the other returns ErrAlreadyRecorded.
type Log interface {
	Exists(ctx context.Context, itemID uuid.UUID, kind Kind) (bool, error)
	Record(ctx context.Context, itemID uuid.UUID, kind Kind) error
}

// History lists the log entries of one item.
type History interface {
	Entries(ctx context.Context, itemID uuid.UUID) ([]LogEntry, error)
}

// Pruner removes log rows whose item no longer exists.
type Pruner interface {
	PurgeOrphans(ctx context.Context) (int64, error)
}

// PGLog is the Postgres notification log. The notification_log table carries
// UNIQUE (item_id, kind); Record relies on it through ON CONFLICT DO NOTHING.
type PGLog struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewPGLog creates a Postgres notification log.
func NewPGLog(pool *pgxpool.Pool) *PGLog {
	return &PGLog{pool: pool, now: time.Now}
}

// Exists reports whether the pair was already notified.
func (l *PGLog) Exists(ctx context.Context, itemID uuid.UUID, kind Kind) (bool, error) {
	var found bool
	if err := l.pool.QueryRow(ctx, "notification_log_exists", itemID, string(kind)).Scan(&found); err != nil {
		return false, fmt.Errorf("check notification log: %w", err)
	}
	return found, nil
}

// Record inserts the pair if absent.
func (l *PGLog) Record(ctx context.Context, itemID uuid.UUID, kind Kind) error {
	tag, err := l.pool.Exec(ctx, "notification_log_record", itemID, string(kind), l.now())
	if err != nil {
		return fmt.Errorf("record notification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyRecorded
	}
	return nil
}

// Entries returns every log row for an item, oldest first.
func (l *PGLog) Entries(ctx context.Context, itemID uuid.UUID) ([]LogEntry, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT id, item_id, kind, sent_at FROM notification_log
		WHERE item_id = $1 ORDER BY sent_at, id`, itemID)
	if err != nil {
		return nil, fmt.Errorf("list notification log: %w", err)
	}
	defer rows.Close()

	entries := []LogEntry{}
	for rows.Next() {
		var e LogEntry
		var kind string
		if err := rows.Scan(&e.ID, &e.ItemID, &kind, &e.SentAt); err != nil {
			return nil, fmt.Errorf("scan log entry: %w", err)
		}
		e.Kind = Kind(kind)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// PurgeOrphans deletes log rows left behind by deleted items.
func (l *PGLog) PurgeOrphans(ctx context.Context) (int64, error) {
	tag, err := l.pool.Exec(ctx, `
		DELETE FROM notification_log l
		WHERE NOT EXISTS (SELECT 1 FROM pantry_items i WHERE i.id = l.item_id)`)
	if err != nil {
		return 0, fmt.Errorf("purge orphaned log rows: %w", err)
	}
	return tag.RowsAffected(), nil
}
