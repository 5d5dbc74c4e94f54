// Command freshctl is the FreshTrack operations CLI.
//
// Usage:
//
//	freshctl migrate
//	freshctl notify run [--log-only]
//	freshctl notify next --count 3
//	freshctl items list [--recipient <uuid>]
//	freshctl items add --name Milk --expires 2024-06-14
//	freshctl recipients register --token ExponentPushToken[...]
//	freshctl cleanup
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/albapepper/freshtrack/internal/config"
	"github.com/albapepper/freshtrack/internal/dates"
	"github.com/albapepper/freshtrack/internal/notifications"
	"github.com/albapepper/freshtrack/internal/pantry"
	"github.com/albapepper/freshtrack/internal/storage"
	"github.com/albapepper/freshtrack/internal/trigger"
)

var logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:          "freshctl",
		Short:        "FreshTrack operations CLI",
		SilenceUsage: true,
	}

	root.AddCommand(migrateCmd())
	root.AddCommand(notifyCmd())
	root.AddCommand(itemsCmd())
	root.AddCommand(recipientsCmd())
	root.AddCommand(cleanupCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// --------------------------------------------------------------------------
// migrate command
// --------------------------------------------------------------------------

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(true, func(ctx context.Context, cfg *config.Config, b *storage.Backend) error {
				logger.Info("Schema applied", "storage", b.Kind)
				return nil
			})
		},
	}
}

// --------------------------------------------------------------------------
// notify command
// --------------------------------------------------------------------------

func notifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Expiration notifications",
	}
	cmd.AddCommand(notifyRunCmd())
	cmd.AddCommand(notifyNextCmd())
	return cmd
}

func notifyRunCmd() *cobra.Command {
	var logOnly bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one notification pass now",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(false, func(ctx context.Context, cfg *config.Config, b *storage.Backend) error {
				var sender notifications.Dispatcher
				if logOnly || cfg.PushMode == config.PushModeLog {
					sender = notifications.NewLogSender(logger)
				} else {
					sender = notifications.NewPushSender(cfg.PushGatewayURL, cfg.PushAccessToken, cfg.PushRatePerSecond, logger)
				}
				s := notifications.NewScheduler(b.Items, b.Log, sender, logger,
					notifications.WithLocation(cfg.NotifyLocation),
					notifications.WithConcurrency(cfg.NotifyConcurrency))

				sum, err := s.Run(ctx, notifications.SourceManual)
				if sum != nil {
					fmt.Fprintln(cmd.OutOrStdout(), sum.Summary())
					for _, f := range sum.Failures {
						logger.Error("notification failed", "item_id", f.ItemID, "kind", f.Kind, "reason", f.Reason)
					}
				}
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&logOnly, "log-only", false, "Log notifications instead of pushing them (still recorded)")
	return cmd
}

func notifyNextCmd() *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "next",
		Short: "Show upcoming scheduled runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			t, err := trigger.New(nil, nil, trigger.Config{
				NotifySpec: cfg.NotifySchedule,
				Location:   cfg.NotifyLocation,
			}, logger)
			if err != nil {
				return err
			}
			at := time.Now()
			for range count {
				at = t.Next(at)
				fmt.Fprintln(cmd.OutOrStdout(), at.Format(time.RFC3339))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&count, "count", 1, "Number of runs to show")
	return cmd
}

// --------------------------------------------------------------------------
// items command
// --------------------------------------------------------------------------

func itemsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "items",
		Short: "Inspect and edit pantry items",
	}
	cmd.AddCommand(itemsListCmd())
	cmd.AddCommand(itemsAddCmd())
	return cmd
}

func itemsListCmd() *cobra.Command {
	var recipient string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a recipient's items by expiration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(false, func(ctx context.Context, cfg *config.Config, b *storage.Backend) error {
				id, err := recipientID(cfg, recipient)
				if err != nil {
					return err
				}
				items, err := b.Items.ListItems(ctx, id)
				if err != nil {
					return err
				}
				now := time.Now()
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tEXPIRES\tIN DAYS\tESTIMATED")
				for _, it := range items {
					exp := dates.Midnight(it.ExpiresAt, cfg.NotifyLocation)
					fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%t\n",
						it.ID, it.Name, exp.Format(time.DateOnly),
						dates.DaysUntil(it.ExpiresAt, now, cfg.NotifyLocation), it.Estimated)
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().StringVar(&recipient, "recipient", "", "Recipient UUID (default DEFAULT_RECIPIENT_ID)")
	return cmd
}

func itemsAddCmd() *cobra.Command {
	var recipient, name, expires string
	var estimated bool
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an item by hand",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(false, func(ctx context.Context, cfg *config.Config, b *storage.Backend) error {
				id, err := recipientID(cfg, recipient)
				if err != nil {
					return err
				}
				exp, err := time.ParseInLocation(time.DateOnly, expires, cfg.NotifyLocation)
				if err != nil {
					return fmt.Errorf("--expires: %w", err)
				}
				created, err := b.Items.CreateItems(ctx, id, []pantry.NewItem{
					{Name: name, ExpiresAt: exp, Estimated: estimated},
				})
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), created[0].ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&recipient, "recipient", "", "Recipient UUID (default DEFAULT_RECIPIENT_ID)")
	cmd.Flags().StringVar(&name, "name", "", "Item name")
	cmd.Flags().StringVar(&expires, "expires", "", "Expiration date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&estimated, "estimated", false, "Mark the date as estimated")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("expires")
	return cmd
}

// --------------------------------------------------------------------------
// recipients command
// --------------------------------------------------------------------------

func recipientsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recipients",
		Short: "Manage notification recipients",
	}
	cmd.AddCommand(recipientsRegisterCmd())
	return cmd
}

func recipientsRegisterCmd() *cobra.Command {
	var recipient, token string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a recipient and optionally set its push token",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(false, func(ctx context.Context, cfg *config.Config, b *storage.Backend) error {
				id, err := recipientID(cfg, recipient)
				if err != nil {
					return err
				}
				r, err := b.Items.EnsureRecipient(ctx, id)
				if err != nil {
					return err
				}
				if cmd.Flags().Changed("token") {
					if r, err = b.Items.SetPushToken(ctx, id, token); err != nil {
						return err
					}
				}
				logger.Info("Recipient registered", "id", r.ID, "has_token", r.HasAddress())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&recipient, "recipient", "", "Recipient UUID (default DEFAULT_RECIPIENT_ID)")
	cmd.Flags().StringVar(&token, "token", "", "Push token; empty clears it")
	return cmd
}

// --------------------------------------------------------------------------
// cleanup command
// --------------------------------------------------------------------------

func cleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Purge notification log rows of deleted items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(false, func(ctx context.Context, cfg *config.Config, b *storage.Backend) error {
				n, err := b.Log.PurgeOrphans(ctx)
				if err != nil {
					return err
				}
				logger.Info("Cleanup finished", "purged", n)
				return nil
			})
		},
	}
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

// withBackend handles config loading, storage connection, and context
// cancellation.
func withBackend(migrate bool, fn func(ctx context.Context, cfg *config.Config, b *storage.Backend) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	b, err := storage.Open(ctx, cfg, migrate, logger)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer b.Close()

	return fn(ctx, cfg, b)
}

func recipientID(cfg *config.Config, flag string) (uuid.UUID, error) {
	if flag == "" {
		return cfg.RecipientID, nil
	}
	id, err := uuid.Parse(flag)
	if err != nil {
		return uuid.Nil, fmt.Errorf("--recipient: %w", err)
	}
	return id, nil
}
