// Package extraction turns receipt and label photos into pantry items through
// an external image-understanding service.
package extraction

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/albapepper/freshtrack/internal/dates"
	"github.com/albapepper/freshtrack/internal/pantry"
)

// MinConfidence is the lowest confidence accepted from the service.
const MinConfidence = 0.5

// ErrNoResult is returned when the service found nothing usable.
var ErrNoResult = errors.New("no extraction result")

// ReceiptItem is one line recognised on a receipt.
type ReceiptItem struct {
	Name          string  `json:"name"`
	Confidence    float64 `json:"confidence"`
	ShelfLifeDays int     `json:"shelf_life_days"`
}

// ExtractedDate is an expiration date read from a package label.
type ExtractedDate struct {
	Date       time.Time `json:"date"`
	Confidence float64   `json:"confidence"`
}

// Extractor reads images. Implementations may retry internally.
type Extractor interface {
	ExtractReceipt(ctx context.Context, image []byte) ([]ReceiptItem, error)
	ExtractDate(ctx context.Context, image []byte) (*ExtractedDate, error)
}

// ToNewItems converts confident receipt lines into estimated items bought at
// purchasedAt. Expiration is the purchase day plus the shelf life, in loc.
func ToNewItems(lines []ReceiptItem, purchasedAt time.Time, loc *time.Location) []pantry.NewItem {
	items := make([]pantry.NewItem, 0, len(lines))
	for _, l := range lines {
		name := strings.TrimSpace(l.Name)
		if name == "" || l.Confidence < MinConfidence || l.ShelfLifeDays < 0 {
			continue
		}
		items = append(items, pantry.NewItem{
			Name:        name,
			PurchasedAt: purchasedAt,
			ExpiresAt:   dates.AddDays(purchasedAt, l.ShelfLifeDays, loc),
			Estimated:   true,
		})
	}
	return items
}

// LabelPatch builds the item update for a scanned label date. The printed
// calendar date becomes midnight in loc, the zone offsets are computed in.
// The date stays marked as estimated because it was machine-read.
func LabelPatch(d *ExtractedDate, loc *time.Location) (pantry.ItemPatch, error) {
	if d == nil || d.Date.IsZero() || d.Confidence < MinConfidence {
		return pantry.ItemPatch{}, ErrNoResult
	}
	if loc == nil {
		loc = time.Local
	}
	y, m, day := d.Date.Date()
	date := time.Date(y, m, day, 0, 0, 0, 0, loc)
	estimated := true
	return pantry.ItemPatch{ExpiresAt: &date, Estimated: &estimated}, nil
}
