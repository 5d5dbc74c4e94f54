package notifications

import (
	"slices"
	"strings"
	"time"

	"github.com/albapepper/freshtrack/internal/pantry"
)

// Kind tags a notification threshold. It is the dedup key stored in the log
// together with the item id.
type Kind string

const (
	KindThreeDay  Kind = "three_day"
	KindOneDay    Kind = "one_day"
	KindExpiryDay Kind = "expiry_day"
)

// Threshold maps an exact day offset before expiration to a kind and its
// notification template. "{name}" in Body is replaced by the item name.
type Threshold struct {
	Offset int
	Kind   Kind
	Title  string
	Body   string
}

// Thresholds is an ordered offset → kind table.
type Thresholds []Threshold

// DefaultThresholds is the fixed table clients localize against.
var DefaultThresholds = Thresholds{
	{Offset: 3, Kind: KindThreeDay, Title: "Food Expiring Soon", Body: "{name} expires in 3 days."},
	{Offset: 1, Kind: KindOneDay, Title: "Food Expiring Tomorrow", Body: "{name} expires tomorrow. Plan to use it soon!"},
	{Offset: 0, Kind: KindExpiryDay, Title: "Food Expiring Today!", Body: "{name} expires today. Use it before it goes bad!"},
}

// Match returns the threshold for an exact offset. Offsets between entries
// match nothing; thresholds are exact-day triggers, not ranges.
func (ts Thresholds) Match(offset int) (Threshold, bool) {
	i := slices.IndexFunc(ts, func(t Threshold) bool { return t.Offset == offset })
	if i < 0 {
		return Threshold{}, false
	}
	return ts[i], true
}

// MaxOffset is the widest window the table needs from the item store.
func (ts Thresholds) MaxOffset() int {
	maxOffset := 0
	for _, t := range ts {
		maxOffset = max(maxOffset, t.Offset)
	}
	return maxOffset
}

// Render builds the notification for an eligible item. The expiration date
// in the metadata is read in loc.
func (t Threshold) Render(e pantry.Eligible, loc *time.Location) Message {
	return Message{
		To:    e.Address,
		Title: t.Title,
		Body:  strings.ReplaceAll(t.Body, "{name}", e.Item.Name),
		Data: map[string]any{
			"item_id":    e.Item.ID.String(),
			"kind":       string(t.Kind),
			"expires_at": e.Item.ExpiresAt.In(loc).Format("2006-01-02"),
		},
	}
}
