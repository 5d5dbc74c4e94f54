// Package notifications sends expiration reminders for pantry items.
//
// Pipeline per run: find eligible items → match today's offset against the
// threshold table → check the notification log → dispatch → record.
// The log's (item, kind) uniqueness is what makes overlapping runs safe; the
// scheduler itself holds no state between runs.
package notifications

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	defaultConcurrency = 4
	maxFailureReason   = 200
)

// Source identifies what started a run.
type Source string

const (
	SourceScheduled Source = "scheduled"
	SourceManual    Source = "manual"
)

// --------------------------------------------------------------------------
// Types
// --------------------------------------------------------------------------

// Message is a single push notification payload.
type Message struct {
	To    string         `json:"to"`
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Data  map[string]any `json:"data,omitempty"`
}

// LogEntry records that an item was notified for a threshold kind.
type LogEntry struct {
	ID     int64     `json:"id"`
	ItemID uuid.UUID `json:"item_id"`
	Kind   Kind      `json:"kind"`
	SentAt time.Time `json:"sent_at"`
}

// ItemFailure describes one item that could not be processed in a run.
type ItemFailure struct {
	ItemID uuid.UUID `json:"item_id"`
	Kind   Kind      `json:"kind,omitempty"`
	Reason string    `json:"reason"`
}

// RunSummary is the aggregate outcome of one scheduler pass. Sent, Skipped
// and Failed partition the eligible items that were processed; Raced counts
// sends whose log write lost to a concurrent run and is included in Sent.
type RunSummary struct {
	Source    Source        `json:"source"`
	Date      string        `json:"date"`
	StartedAt time.Time     `json:"started_at"`
	Eligible  int           `json:"eligible"`
	Sent      int           `json:"sent"`
	Skipped   int           `json:"skipped"`
	Failed    int           `json:"failed"`
	Raced     int           `json:"raced"`
	Failures  []ItemFailure `json:"failures"`
	Duration  time.Duration `json:"duration_ns"`
}

// Summary returns a human-readable summary.
func (r *RunSummary) Summary() string {
	return fmt.Sprintf(
		"source=%s date=%s eligible=%d sent=%d skipped=%d failed=%d raced=%d dur=%s",
		r.Source, r.Date, r.Eligible, r.Sent, r.Skipped, r.Failed, r.Raced,
		r.Duration.Round(time.Millisecond))
}

// Processed returns how many eligible items reached a terminal outcome.
func (r *RunSummary) Processed() int {
	return r.Sent + r.Skipped + r.Failed
}

func (r *RunSummary) add(o outcome) {
	switch o.status {
	case statusSent:
		r.Sent++
	case statusRaced:
		r.Sent++
		r.Raced++
	case statusSkipped:
		r.Skipped++
	case statusFailed:
		r.Failed++
		r.Failures = append(r.Failures, ItemFailure{
			ItemID: o.itemID,
			Kind:   o.kind,
			Reason: truncate(o.reason, maxFailureReason),
		})
	}
}

// truncate cuts s to at most maxLen bytes without splitting a rune.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
