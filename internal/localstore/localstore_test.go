package localstore

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albapepper/freshtrack/internal/notifications"
	"github.com/albapepper/freshtrack/internal/pantry"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestRecipients(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	id := uuid.New()

	r, err := s.EnsureRecipient(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, r.ID)
	assert.False(t, r.HasAddress())

	again, err := s.EnsureRecipient(ctx, id)
	require.NoError(t, err)
	assert.True(t, r.CreatedAt.Equal(again.CreatedAt))

	r, err = s.SetPushToken(ctx, id, "ExponentPushToken[x]")
	require.NoError(t, err)
	require.True(t, r.HasAddress())
	assert.Equal(t, "ExponentPushToken[x]", *r.PushToken)

	r, err = s.SetPushToken(ctx, id, "")
	require.NoError(t, err)
	assert.False(t, r.HasAddress())

	require.NoError(t, s.DeleteRecipient(ctx, id))
	assert.ErrorIs(t, s.DeleteRecipient(ctx, id), pantry.ErrNotFound)
}

func TestDeleteRecipientWithItems(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	id := uuid.New()

	_, err := s.CreateItems(ctx, id, []pantry.NewItem{{Name: "Eggs", ExpiresAt: date(2024, 6, 20)}})
	require.NoError(t, err)

	assert.ErrorIs(t, s.DeleteRecipient(ctx, id), pantry.ErrRecipientHasItems)
}

func TestItemLifecycle(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	owner := uuid.New()

	created, err := s.CreateItems(ctx, owner, []pantry.NewItem{
		{Name: "  Milk ", ExpiresAt: date(2024, 6, 14), Estimated: true},
		{Name: "Cheese", ExpiresAt: date(2024, 6, 11), PurchasedAt: date(2024, 6, 1)},
	})
	require.NoError(t, err)
	require.Len(t, created, 2)
	assert.Equal(t, "Milk", created[0].Name)
	assert.False(t, created[0].PurchasedAt.IsZero(), "purchase date defaults to now")

	list, err := s.ListItems(ctx, owner)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Cheese", list[0].Name, "soonest expiration first")

	got, err := s.GetItem(ctx, created[0].ID)
	require.NoError(t, err)
	assert.True(t, got.Estimated)
	assert.True(t, got.ExpiresAt.Equal(date(2024, 6, 14)))

	newDate := date(2024, 6, 16)
	updated, err := s.UpdateItem(ctx, owner, created[0].ID, pantry.ItemPatch{ExpiresAt: &newDate})
	require.NoError(t, err)
	assert.True(t, updated.ExpiresAt.Equal(newDate))
	assert.False(t, updated.Estimated, "a human-entered date is not estimated")

	_, err = s.UpdateItem(ctx, uuid.New(), created[0].ID, pantry.ItemPatch{ExpiresAt: &newDate})
	assert.ErrorIs(t, err, pantry.ErrNotFound, "other recipients cannot edit")

	blank := " "
	_, err = s.UpdateItem(ctx, owner, created[0].ID, pantry.ItemPatch{Name: &blank})
	assert.ErrorIs(t, err, pantry.ErrInvalidItem)

	require.NoError(t, s.DeleteItem(ctx, owner, created[1].ID))
	assert.ErrorIs(t, s.DeleteItem(ctx, owner, created[1].ID), pantry.ErrNotFound)
	_, err = s.GetItem(ctx, created[1].ID)
	assert.ErrorIs(t, err, pantry.ErrNotFound)
}

func TestCreateItemsRejectsBadBatch(t *testing.T) {
	s := setupTestStore(t)
	_, err := s.CreateItems(context.Background(), uuid.New(), []pantry.NewItem{
		{Name: "ok", ExpiresAt: date(2024, 6, 14)},
		{Name: "no date"},
	})
	assert.ErrorIs(t, err, pantry.ErrInvalidItem)
	assert.Contains(t, err.Error(), "item 1")
}

func TestFindEligible(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	withToken := uuid.New()
	withoutToken := uuid.New()
	_, err := s.SetPushToken(ctx, withToken, "tok")
	require.NoError(t, err)

	_, err = s.CreateItems(ctx, withToken, []pantry.NewItem{
		{Name: "yesterday", ExpiresAt: date(2024, 6, 9)},
		{Name: "today", ExpiresAt: date(2024, 6, 10)},
		{Name: "late today", ExpiresAt: time.Date(2024, 6, 10, 23, 59, 0, 0, time.UTC)},
		{Name: "in three", ExpiresAt: date(2024, 6, 13)},
		{Name: "in four", ExpiresAt: date(2024, 6, 14)},
	})
	require.NoError(t, err)
	_, err = s.CreateItems(ctx, withoutToken, []pantry.NewItem{{Name: "silent", ExpiresAt: date(2024, 6, 10)}})
	require.NoError(t, err)

	got, err := s.FindEligible(ctx, date(2024, 6, 10), date(2024, 6, 14))
	require.NoError(t, err)

	var names []string
	for _, e := range got {
		names = append(names, e.Item.Name)
		assert.Equal(t, "tok", e.Address)
	}
	assert.ElementsMatch(t, []string{"today", "late today", "in three"}, names)
}

func TestRecordIsAtomic(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	item := uuid.New()

	const writers = 16
	var (
		wg      sync.WaitGroup
		ok      atomic.Int32
		already atomic.Int32
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Record(ctx, item, notifications.KindOneDay)
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, notifications.ErrAlreadyRecorded):
				already.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), ok.Load())
	assert.Equal(t, int32(writers-1), already.Load())

	exists, err := s.Exists(ctx, item, notifications.KindOneDay)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = s.Exists(ctx, item, notifications.KindExpiryDay)
	require.NoError(t, err)
	assert.False(t, exists, "kinds are tracked independently")
}

func TestEntriesAndPurge(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	owner := uuid.New()

	created, err := s.CreateItems(ctx, owner, []pantry.NewItem{{Name: "Ham", ExpiresAt: date(2024, 6, 11)}})
	require.NoError(t, err)
	kept := created[0].ID
	orphan := uuid.New()

	require.NoError(t, s.Record(ctx, kept, notifications.KindThreeDay))
	require.NoError(t, s.Record(ctx, kept, notifications.KindOneDay))
	require.NoError(t, s.Record(ctx, orphan, notifications.KindOneDay))

	entries, err := s.Entries(ctx, kept)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, notifications.KindThreeDay, entries[0].Kind)
	assert.Equal(t, notifications.KindOneDay, entries[1].Kind)

	n, err := s.PurgeOrphans(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	entries, err = s.Entries(ctx, kept)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	// Deleting the item takes its log rows with it.
	require.NoError(t, s.DeleteItem(ctx, owner, kept))
	entries, err = s.Entries(ctx, kept)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

type countingSender struct{ n atomic.Int32 }

func (c *countingSender) Send(context.Context, notifications.Message) error {
	c.n.Add(1)
	return nil
}

func TestSchedulerOverSQLite(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	owner := uuid.New()
	_, err := s.SetPushToken(ctx, owner, "ExponentPushToken[me]")
	require.NoError(t, err)
	_, err = s.CreateItems(ctx, owner, []pantry.NewItem{
		{Name: "A", ExpiresAt: date(2024, 6, 13)},
		{Name: "B", ExpiresAt: date(2024, 6, 11)},
		{Name: "C", ExpiresAt: date(2024, 6, 10)},
		{Name: "D", ExpiresAt: date(2024, 6, 12)},
	})
	require.NoError(t, err)

	sender := &countingSender{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sched := notifications.NewScheduler(s, s, sender, logger,
		notifications.WithClock(func() time.Time { return time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC) }),
		notifications.WithLocation(time.UTC),
	)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := sched.Run(ctx, notifications.SourceScheduled)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	var logged int64
	require.NoError(t, s.db.Model(&logRow{}).Count(&logged).Error)
	assert.Equal(t, int64(3), logged)

	sum, err := sched.Run(ctx, notifications.SourceManual)
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Sent)
	assert.Equal(t, 4, sum.Skipped)
}
