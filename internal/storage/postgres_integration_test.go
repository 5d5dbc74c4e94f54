//go:build integration

package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/albapepper/freshtrack/internal/config"
	"github.com/albapepper/freshtrack/internal/notifications"
	"github.com/albapepper/freshtrack/internal/pantry"
)

func startPostgres(t *testing.T) *config.Config {
	t.Helper()
	ctx := context.Background()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "fresh",
				"POSTGRES_PASSWORD": "fresh",
				"POSTGRES_DB":       "freshtrack",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(90 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	return &config.Config{
		DatabaseURL:       fmt.Sprintf("postgres://fresh:fresh@%s:%s/freshtrack?sslmode=disable", host, port.Port()),
		DBPoolMinConns:    1,
		DBPoolMaxConns:    8,
		DBPoolMaxLife:     time.Hour,
		DBConnectAttempts: 10,
	}
}

func TestPostgresBackend(t *testing.T) {
	cfg := startPostgres(t)
	ctx := context.Background()

	b, err := Open(ctx, cfg, true, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer b.Close()
	require.Equal(t, "postgres", b.Kind)

	// Migrations are idempotent.
	b2, err := Open(ctx, cfg, true, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	b2.Close()

	recipient := uuid.New()
	_, err = b.Items.SetPushToken(ctx, recipient, "ExponentPushToken[pg]")
	require.NoError(t, err)

	day := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	created, err := b.Items.CreateItems(ctx, recipient, []pantry.NewItem{
		{Name: "Milk", ExpiresAt: day.AddDate(0, 0, 3)},
		{Name: "Cheese", ExpiresAt: day.AddDate(0, 0, 10)},
	})
	require.NoError(t, err)
	require.Len(t, created, 2)

	t.Run("find eligible", func(t *testing.T) {
		got, err := b.Items.FindEligible(ctx, day, day.AddDate(0, 0, 4))
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Milk", got[0].Item.Name)
		assert.Equal(t, "ExponentPushToken[pg]", got[0].Address)
	})

	t.Run("record is atomic", func(t *testing.T) {
		item := created[0].ID
		var wg sync.WaitGroup
		var mu sync.Mutex
		ok, lost := 0, 0
		for range 16 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := b.Log.Record(ctx, item, notifications.KindThreeDay)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					ok++
				case errors.Is(err, notifications.ErrAlreadyRecorded):
					lost++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, ok)
		assert.Equal(t, 15, lost)

		exists, err := b.Log.Exists(ctx, item, notifications.KindThreeDay)
		require.NoError(t, err)
		assert.True(t, exists)
		entries, err := b.Log.Entries(ctx, item)
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})

	t.Run("recipient with items cannot be deleted", func(t *testing.T) {
		err := b.Items.DeleteRecipient(ctx, recipient)
		assert.ErrorIs(t, err, pantry.ErrRecipientHasItems)
	})

	t.Run("blank rename is rejected", func(t *testing.T) {
		blank := " "
		_, err := b.Items.UpdateItem(ctx, recipient, created[1].ID, pantry.ItemPatch{Name: &blank})
		assert.ErrorIs(t, err, pantry.ErrInvalidItem)
	})

	t.Run("purge orphans", func(t *testing.T) {
		require.NoError(t, b.Log.Record(ctx, uuid.New(), notifications.KindOneDay))
		n, err := b.Log.PurgeOrphans(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})
}
