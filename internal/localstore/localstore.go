// Package localstore is a single-file SQLite backend for development and
// tests. It implements the same contracts as the Postgres stores, including
// the unique (item_id, kind) constraint the notification log depends on.
package localstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/albapepper/freshtrack/internal/notifications"
	"github.com/albapepper/freshtrack/internal/pantry"
)

// --------------------------------------------------------------------------
// Rows
// --------------------------------------------------------------------------

type recipientRow struct {
	ID        string `gorm:"primaryKey;type:text"`
	PushToken *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (recipientRow) TableName() string { return "recipients" }

type itemRow struct {
	ID          string `gorm:"primaryKey;type:text"`
	RecipientID string `gorm:"type:text;not null;index"`
	Name        string `gorm:"not null"`
	PurchasedAt time.Time
	ExpiresAt   time.Time `gorm:"not null;index"`
	Estimated   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (itemRow) TableName() string { return "pantry_items" }

type logRow struct {
	ID     int64  `gorm:"primaryKey;autoIncrement"`
	ItemID string `gorm:"type:text;not null;uniqueIndex:idx_notification_log_item_kind"`
	Kind   string `gorm:"not null;uniqueIndex:idx_notification_log_item_kind"`
	SentAt time.Time
}

func (logRow) TableName() string { return "notification_log" }

// --------------------------------------------------------------------------
// Store
// --------------------------------------------------------------------------

// Store implements pantry.Store and the notification log interfaces.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// Open opens (or creates) the database at path and migrates it. Use
// ":memory:" for a throwaway database.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	// SQLite allows one writer; a single connection also keeps ":memory:"
	// pointing at one database.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&recipientRow{}, &itemRow{}, &logRow{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping verifies the database is usable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.WithContext(ctx).Exec("SELECT 1").Error
}

// --------------------------------------------------------------------------
// Recipients
// --------------------------------------------------------------------------

func (s *Store) EnsureRecipient(ctx context.Context, id uuid.UUID) (*pantry.Recipient, error) {
	var r *pantry.Recipient
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := ensureRecipient(tx, id, s.now())
		if err != nil {
			return err
		}
		r = row.toRecipient()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ensure recipient %s: %w", id, err)
	}
	return r, nil
}

func (s *Store) SetPushToken(ctx context.Context, id uuid.UUID, token string) (*pantry.Recipient, error) {
	var tok *string
	if token != "" {
		tok = &token
	}
	var r *pantry.Recipient
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := ensureRecipient(tx, id, s.now())
		if err != nil {
			return err
		}
		row.PushToken = tok
		row.UpdatedAt = s.now().UTC()
		if err := tx.Save(&row).Error; err != nil {
			return err
		}
		r = row.toRecipient()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("set push token for %s: %w", id, err)
	}
	return r, nil
}

func (s *Store) DeleteRecipient(ctx context.Context, id uuid.UUID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var owned int64
		if err := tx.Model(&itemRow{}).Where("recipient_id = ?", id.String()).Count(&owned).Error; err != nil {
			return err
		}
		if owned > 0 {
			return pantry.ErrRecipientHasItems
		}
		res := tx.Delete(&recipientRow{}, "id = ?", id.String())
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return pantry.ErrNotFound
		}
		return nil
	})
	if err != nil && !errors.Is(err, pantry.ErrNotFound) && !errors.Is(err, pantry.ErrRecipientHasItems) {
		return fmt.Errorf("delete recipient %s: %w", id, err)
	}
	return err
}

func ensureRecipient(tx *gorm.DB, id uuid.UUID, now time.Time) (recipientRow, error) {
	now = now.UTC()
	row := recipientRow{ID: id.String(), CreatedAt: now, UpdatedAt: now}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
		return row, err
	}
	err := tx.First(&row, "id = ?", id.String()).Error
	return row, err
}

// --------------------------------------------------------------------------
// Items
// --------------------------------------------------------------------------

func (s *Store) CreateItems(ctx context.Context, recipientID uuid.UUID, items []pantry.NewItem) ([]pantry.Item, error) {
	now := s.now()
	if err := pantry.ValidateBatch(items, now); err != nil {
		return nil, err
	}

	rows := make([]itemRow, 0, len(items))
	for _, n := range items {
		rows = append(rows, itemRow{
			ID:          uuid.NewString(),
			RecipientID: recipientID.String(),
			Name:        n.Name,
			PurchasedAt: n.PurchasedAt.UTC(),
			ExpiresAt:   n.ExpiresAt.UTC(),
			Estimated:   n.Estimated,
			CreatedAt:   now.UTC(),
			UpdatedAt:   now.UTC(),
		})
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := ensureRecipient(tx, recipientID, now); err != nil {
			return fmt.Errorf("ensure recipient: %w", err)
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("create items: %w", err)
	}

	out := make([]pantry.Item, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toItem())
	}
	return out, nil
}

func (s *Store) GetItem(ctx context.Context, id uuid.UUID) (*pantry.Item, error) {
	var row itemRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", id.String()).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pantry.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get item %s: %w", id, err)
	}
	it := row.toItem()
	return &it, nil
}

func (s *Store) ListItems(ctx context.Context, recipientID uuid.UUID) ([]pantry.Item, error) {
	var rows []itemRow
	if err := s.db.WithContext(ctx).Where("recipient_id = ?", recipientID.String()).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	items := make([]pantry.Item, 0, len(rows))
	for _, r := range rows {
		items = append(items, r.toItem())
	}
	sortByExpiry(items)
	return items, nil
}

func (s *Store) UpdateItem(ctx context.Context, recipientID, id uuid.UUID, patch pantry.ItemPatch) (*pantry.Item, error) {
	var updated pantry.Item
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row itemRow
		err := tx.First(&row, "id = ? AND recipient_id = ?", id.String(), recipientID.String()).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pantry.ErrNotFound
		}
		if err != nil {
			return err
		}
		it := row.toItem()
		if err := patch.Apply(&it); err != nil {
			return err
		}
		row.Name = it.Name
		row.ExpiresAt = it.ExpiresAt.UTC()
		row.Estimated = it.Estimated
		row.UpdatedAt = s.now().UTC()
		if err := tx.Save(&row).Error; err != nil {
			return err
		}
		updated = row.toItem()
		return nil
	})
	if err != nil {
		if errors.Is(err, pantry.ErrNotFound) || errors.Is(err, pantry.ErrInvalidItem) {
			return nil, err
		}
		return nil, fmt.Errorf("update item %s: %w", id, err)
	}
	return &updated, nil
}

func (s *Store) DeleteItem(ctx context.Context, recipientID, id uuid.UUID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&itemRow{}, "id = ? AND recipient_id = ?", id.String(), recipientID.String())
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return pantry.ErrNotFound
		}
		return tx.Delete(&logRow{}, "item_id = ?", id.String()).Error
	})
	if err != nil && !errors.Is(err, pantry.ErrNotFound) {
		return fmt.Errorf("delete item %s: %w", id, err)
	}
	return err
}

// FindEligible filters the window in Go: SQLite stores times as text, which
// does not compare reliably across offsets and precisions.
func (s *Store) FindEligible(ctx context.Context, from, to time.Time) ([]pantry.Eligible, error) {
	type joined struct {
		Item      itemRow `gorm:"embedded"`
		PushToken string
	}
	var rows []joined
	err := s.db.WithContext(ctx).
		Table("pantry_items").
		Select("pantry_items.*, recipients.push_token").
		Joins("JOIN recipients ON recipients.id = pantry_items.recipient_id").
		Where("recipients.push_token IS NOT NULL AND recipients.push_token <> ''").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("find eligible items: %w", err)
	}

	var out []pantry.Eligible
	for _, r := range rows {
		if r.Item.ExpiresAt.Before(from) || !r.Item.ExpiresAt.Before(to) {
			continue
		}
		out = append(out, pantry.Eligible{Item: r.Item.toItem(), Address: r.PushToken})
	}
	return out, nil
}

// --------------------------------------------------------------------------
// Notification log
// --------------------------------------------------------------------------

func (s *Store) Exists(ctx context.Context, itemID uuid.UUID, kind notifications.Kind) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&logRow{}).
		Where("item_id = ? AND kind = ?", itemID.String(), string(kind)).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("check notification log: %w", err)
	}
	return n > 0, nil
}

// Record inserts the pair, leaning on the unique index for atomicity.
func (s *Store) Record(ctx context.Context, itemID uuid.UUID, kind notifications.Kind) error {
	row := logRow{ItemID: itemID.String(), Kind: string(kind), SentAt: s.now().UTC()}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "item_id"}, {Name: "kind"}},
		DoNothing: true,
	}).Create(&row)
	if res.Error != nil {
		return fmt.Errorf("record notification: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return notifications.ErrAlreadyRecorded
	}
	return nil
}

func (s *Store) Entries(ctx context.Context, itemID uuid.UUID) ([]notifications.LogEntry, error) {
	var rows []logRow
	err := s.db.WithContext(ctx).Where("item_id = ?", itemID.String()).Order("id").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list notification log: %w", err)
	}
	entries := make([]notifications.LogEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, notifications.LogEntry{
			ID:     r.ID,
			ItemID: uuid.MustParse(r.ItemID),
			Kind:   notifications.Kind(r.Kind),
			SentAt: r.SentAt,
		})
	}
	return entries, nil
}

func (s *Store) PurgeOrphans(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("NOT EXISTS (SELECT 1 FROM pantry_items WHERE pantry_items.id = notification_log.item_id)").
		Delete(&logRow{})
	if res.Error != nil {
		return 0, fmt.Errorf("purge orphaned log rows: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// --------------------------------------------------------------------------
// Conversions
// --------------------------------------------------------------------------

func (r recipientRow) toRecipient() *pantry.Recipient {
	return &pantry.Recipient{
		ID:        uuid.MustParse(r.ID),
		PushToken: r.PushToken,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func (r itemRow) toItem() pantry.Item {
	return pantry.Item{
		ID:          uuid.MustParse(r.ID),
		RecipientID: uuid.MustParse(r.RecipientID),
		Name:        r.Name,
		PurchasedAt: r.PurchasedAt,
		ExpiresAt:   r.ExpiresAt,
		Estimated:   r.Estimated,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func sortByExpiry(items []pantry.Item) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].ExpiresAt.Before(items[j].ExpiresAt)
	})
}
