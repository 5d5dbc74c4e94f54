// Package pantry holds the perishable-item model and the item store contract.
//
// Every mutating call takes the owning recipient explicitly. The service runs
// with a single implicit recipient today; threading the id through keeps
// multi-tenant support a non-breaking change.
package pantry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// --------------------------------------------------------------------------
// Errors
// --------------------------------------------------------------------------

var (
	// ErrNotFound is returned when an item or recipient does not exist, or
	// is not owned by the calling recipient.
	ErrNotFound = errors.New("not found")

	// ErrInvalidItem is returned when item input fails validation.
	ErrInvalidItem = errors.New("invalid item")

	// ErrRecipientHasItems is returned when deleting a recipient that still
	// owns items.
	ErrRecipientHasItems = errors.New("recipient still owns items")
)

// MaxBatchSize caps a single CreateItems call (one receipt).
const MaxBatchSize = 200

// --------------------------------------------------------------------------
// Types
// --------------------------------------------------------------------------

// Recipient is the owner of items and the target of notifications.
type Recipient struct {
	ID        uuid.UUID `json:"id"`
	PushToken *string   `json:"push_token,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasAddress reports whether the recipient can receive notifications.
func (r *Recipient) HasAddress() bool {
	return r.PushToken != nil && *r.PushToken != ""
}

// Item is a perishable item. ExpiresAt is meaningful at day granularity only.
type Item struct {
	ID          uuid.UUID `json:"id"`
	RecipientID uuid.UUID `json:"recipient_id"`
	Name        string    `json:"name"`
	PurchasedAt time.Time `json:"purchased_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	Estimated   bool      `json:"estimated"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Check reports why an item read back from storage cannot be processed.
func (it *Item) Check() error {
	switch {
	case it.ID == uuid.Nil:
		return fmt.Errorf("%w: missing id", ErrInvalidItem)
	case strings.TrimSpace(it.Name) == "":
		return fmt.Errorf("%w: missing name", ErrInvalidItem)
	case it.ExpiresAt.IsZero():
		return fmt.Errorf("%w: missing expiration date", ErrInvalidItem)
	}
	return nil
}

// NewItem is the input for creating an item by manual entry or extraction.
type NewItem struct {
	Name        string    `json:"name"`
	PurchasedAt time.Time `json:"purchased_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	Estimated   bool      `json:"estimated"`
}

// Normalize trims the name, defaults the purchase time to now and validates.
func (n *NewItem) Normalize(now time.Time) error {
	n.Name = strings.TrimSpace(n.Name)
	if n.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidItem)
	}
	if n.ExpiresAt.IsZero() {
		return fmt.Errorf("%w: expiration date is required", ErrInvalidItem)
	}
	if n.PurchasedAt.IsZero() {
		n.PurchasedAt = now
	}
	return nil
}

// ItemPatch is a partial update from the detail-edit screen or a label scan.
// Nil fields are left unchanged.
type ItemPatch struct {
	Name      *string    `json:"name,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Estimated *bool      `json:"estimated,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p ItemPatch) Empty() bool {
	return p.Name == nil && p.ExpiresAt == nil && p.Estimated == nil
}

// Apply validates the patch and applies it to it. Changing the expiration
// without saying otherwise marks the date as human-entered.
func (p ItemPatch) Apply(it *Item) error {
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return fmt.Errorf("%w: name cannot be empty", ErrInvalidItem)
		}
		it.Name = name
	}
	if p.ExpiresAt != nil {
		if p.ExpiresAt.IsZero() {
			return fmt.Errorf("%w: expiration date cannot be empty", ErrInvalidItem)
		}
		it.ExpiresAt = *p.ExpiresAt
		if p.Estimated == nil {
			it.Estimated = false
		}
	}
	if p.Estimated != nil {
		it.Estimated = *p.Estimated
	}
	return nil
}

// Eligible pairs an item with its recipient's notification address.
type Eligible struct {
	Item    Item
	Address string
}

// --------------------------------------------------------------------------
// Store contract
// --------------------------------------------------------------------------

// Store persists recipients and items.
type Store interface {
	EnsureRecipient(ctx context.Context, id uuid.UUID) (*Recipient, error)
	SetPushToken(ctx context.Context, id uuid.UUID, token string) (*Recipient, error)
	DeleteRecipient(ctx context.Context, id uuid.UUID) error

	CreateItems(ctx context.Context, recipientID uuid.UUID, items []NewItem) ([]Item, error)
	GetItem(ctx context.Context, id uuid.UUID) (*Item, error)
	ListItems(ctx context.Context, recipientID uuid.UUID) ([]Item, error)
	UpdateItem(ctx context.Context, recipientID, id uuid.UUID, patch ItemPatch) (*Item, error)
	DeleteItem(ctx context.Context, recipientID, id uuid.UUID) error

	// FindEligible returns items expiring in [from, to) whose recipient has
	// a push token.
	FindEligible(ctx context.Context, from, to time.Time) ([]Eligible, error)

	Ping(ctx context.Context) error
}

// ValidateBatch normalizes a batch in place.
func ValidateBatch(items []NewItem, now time.Time) error {
	if len(items) == 0 {
		return fmt.Errorf("%w: at least one item is required", ErrInvalidItem)
	}
	if len(items) > MaxBatchSize {
		return fmt.Errorf("%w: at most %d items per batch", ErrInvalidItem, MaxBatchSize)
	}
	for i := range items {
		if err := items[i].Normalize(now); err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
	}
	return nil
}
