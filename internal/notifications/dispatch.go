package notifications

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/albapepper/freshtrack/internal/dates"
	"github.com/albapepper/freshtrack/internal/pantry"
)

type outcomeStatus string

const (
	statusSent    outcomeStatus = "sent"
	statusRaced   outcomeStatus = "raced"
	statusSkipped outcomeStatus = "skipped"
	statusFailed  outcomeStatus = "failed"
	statusAborted outcomeStatus = "aborted" // run cancelled before the item started
)

type outcome struct {
	status outcomeStatus
	itemID uuid.UUID
	kind   Kind
	reason string
}

// process runs one item through check → send → record. Dispatch always
// happens before the log write, and only a successful dispatch is logged.
func (s *Scheduler) process(ctx context.Context, today time.Time, e pantry.Eligible) outcome {
	it := e.Item
	o := outcome{itemID: it.ID}
	if ctx.Err() != nil {
		o.status = statusAborted
		return o
	}

	if err := it.Check(); err != nil {
		s.logger.Warn("Skipping malformed item", "item_id", it.ID, "error", err)
		return o.fail(err.Error())
	}

	offset := dates.DaysUntil(it.ExpiresAt, today, s.loc)
	th, ok := s.thresholds.Match(offset)
	if !ok {
		o.status = statusSkipped
		return o
	}
	o.kind = th.Kind

	sent, err := s.log.Exists(ctx, it.ID, th.Kind)
	if err != nil {
		s.logger.Warn("Notification log check failed", "item_id", it.ID, "kind", th.Kind, "error", err)
		return o.fail(err.Error())
	}
	if sent {
		o.status = statusSkipped
		return o
	}

	if err := s.sender.Send(ctx, th.Render(e, s.loc)); err != nil {
		s.logger.Warn("Notification dispatch failed", "item_id", it.ID, "kind", th.Kind, "error", err)
		return o.fail(err.Error())
	}

	err = s.log.Record(ctx, it.ID, th.Kind)
	switch {
	case errors.Is(err, ErrAlreadyRecorded):
		s.logger.Info("Notification already recorded by another run", "item_id", it.ID, "kind", th.Kind)
		o.status = statusRaced
	case err != nil:
		// Delivered but not logged: the next run will send it again.
		s.logger.Error("Notification sent but not recorded", "item_id", it.ID, "kind", th.Kind, "error", err)
		return o.fail("sent but not recorded: " + err.Error())
	default:
		s.logger.Debug("Notification sent", "item_id", it.ID, "kind", th.Kind, "offset", offset)
		o.status = statusSent
	}
	return o
}

func (o outcome) fail(reason string) outcome {
	o.status = statusFailed
	o.reason = reason
	return o
}
