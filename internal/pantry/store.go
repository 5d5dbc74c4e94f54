package pantry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// foreignKeyViolation is the Postgres SQLSTATE for a restricted delete.
const foreignKeyViolation = "23503"

const itemColumns = "id, recipient_id, name, purchased_at, expires_at, estimated, created_at, updated_at"

// PGStore is the Postgres-backed Store. Hot-path queries use the prepared
// statements registered by the db package.
type PGStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewPGStore creates a Postgres store over an existing pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool, now: time.Now}
}

// --------------------------------------------------------------------------
// Recipients
// --------------------------------------------------------------------------

// EnsureRecipient creates the recipient if missing and returns it.
func (s *PGStore) EnsureRecipient(ctx context.Context, id uuid.UUID) (*Recipient, error) {
	var r Recipient
	err := s.pool.QueryRow(ctx, "ensure_recipient", id).Scan(&r.ID, &r.PushToken, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("ensure recipient %s: %w", id, err)
	}
	return &r, nil
}

// SetPushToken upserts the recipient and replaces its push token. An empty
// token clears it.
func (s *PGStore) SetPushToken(ctx context.Context, id uuid.UUID, token string) (*Recipient, error) {
	var tok *string
	if token != "" {
		tok = &token
	}
	var r Recipient
	err := s.pool.QueryRow(ctx, `
		INSERT INTO recipients (id, push_token) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET push_token = EXCLUDED.push_token, updated_at = NOW()
		RETURNING id, push_token, created_at, updated_at`, id, tok,
	).Scan(&r.ID, &r.PushToken, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("set push token for %s: %w", id, err)
	}
	return &r, nil
}

// DeleteRecipient removes a recipient that owns no items.
func (s *PGStore) DeleteRecipient(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM recipients WHERE id = $1", id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return ErrRecipientHasItems
		}
		return fmt.Errorf("delete recipient %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --------------------------------------------------------------------------
// Items
// --------------------------------------------------------------------------

// CreateItems inserts a batch of items in one transaction. The recipient is
// created on the fly if this is its first write.
func (s *PGStore) CreateItems(ctx context.Context, recipientID uuid.UUID, items []NewItem) ([]Item, error) {
	if err := ValidateBatch(items, s.now()); err != nil {
		return nil, err
	}

	created := make([]Item, 0, len(items))
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "INSERT INTO recipients (id) VALUES ($1) ON CONFLICT (id) DO NOTHING", recipientID); err != nil {
			return fmt.Errorf("ensure recipient: %w", err)
		}
		for _, n := range items {
			it, err := scanItem(tx.QueryRow(ctx, `
				INSERT INTO pantry_items (id, recipient_id, name, purchased_at, expires_at, estimated)
				VALUES ($1, $2, $3, $4, $5, $6)
				RETURNING `+itemColumns,
				uuid.New(), recipientID, n.Name, n.PurchasedAt, n.ExpiresAt, n.Estimated,
			))
			if err != nil {
				return fmt.Errorf("insert item %q: %w", n.Name, err)
			}
			created = append(created, it)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create items: %w", err)
	}
	return created, nil
}

// GetItem returns a single item by id regardless of owner.
func (s *PGStore) GetItem(ctx context.Context, id uuid.UUID) (*Item, error) {
	it, err := scanItem(s.pool.QueryRow(ctx, "item_by_id", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get item %s: %w", id, err)
	}
	return &it, nil
}

// ListItems returns a recipient's items, soonest expiration first.
func (s *PGStore) ListItems(ctx context.Context, recipientID uuid.UUID) ([]Item, error) {
	rows, err := s.pool.Query(ctx, "items_by_recipient", recipientID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// UpdateItem applies a patch to an item owned by recipientID.
func (s *PGStore) UpdateItem(ctx context.Context, recipientID, id uuid.UUID, patch ItemPatch) (*Item, error) {
	var updated Item
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		it, err := scanItem(tx.QueryRow(ctx,
			"SELECT "+itemColumns+" FROM pantry_items WHERE id = $1 AND recipient_id = $2 FOR UPDATE",
			id, recipientID))
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if err := patch.Apply(&it); err != nil {
			return err
		}
		updated, err = scanItem(tx.QueryRow(ctx, `
			UPDATE pantry_items
			SET name = $2, expires_at = $3, estimated = $4, updated_at = NOW()
			WHERE id = $1
			RETURNING `+itemColumns,
			id, it.Name, it.ExpiresAt, it.Estimated))
		return err
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidItem) {
			return nil, err
		}
		return nil, fmt.Errorf("update item %s: %w", id, err)
	}
	return &updated, nil
}

// DeleteItem removes an item and its notification log rows.
func (s *PGStore) DeleteItem(ctx context.Context, recipientID, id uuid.UUID) error {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, "DELETE FROM pantry_items WHERE id = $1 AND recipient_id = $2", id, recipientID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		_, err = tx.Exec(ctx, "DELETE FROM notification_log WHERE item_id = $1", id)
		return err
	})
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("delete item %s: %w", id, err)
	}
	return err
}

// FindEligible returns items expiring in [from, to) for recipients with a
// push token. Uses the expires_at index for the range scan.
func (s *PGStore) FindEligible(ctx context.Context, from, to time.Time) ([]Eligible, error) {
	rows, err := s.pool.Query(ctx, "find_eligible_items", from, to)
	if err != nil {
		return nil, fmt.Errorf("find eligible items: %w", err)
	}
	defer rows.Close()

	var out []Eligible
	for rows.Next() {
		var e Eligible
		it := &e.Item
		if err := rows.Scan(
			&it.ID, &it.RecipientID, &it.Name, &it.PurchasedAt, &it.ExpiresAt,
			&it.Estimated, &it.CreatedAt, &it.UpdatedAt, &e.Address,
		); err != nil {
			return nil, fmt.Errorf("scan eligible item: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Ping verifies the database is reachable.
func (s *PGStore) Ping(ctx context.Context) error {
	var n int
	return s.pool.QueryRow(ctx, "health_check").Scan(&n)
}

func scanItem(row pgx.Row) (Item, error) {
	var it Item
	err := row.Scan(
		&it.ID, &it.RecipientID, &it.Name, &it.PurchasedAt, &it.ExpiresAt,
		&it.Estimated, &it.CreatedAt, &it.UpdatedAt,
	)
	return it, err
}
