package notifications

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albapepper/freshtrack/internal/pantry"
)

type harness struct {
	clock  *clock
	items  *fakeItems
	log    *memLog
	sender *fakeSender
	sched  *Scheduler
}

func newHarness(t *testing.T, now time.Time, items ...pantry.Eligible) *harness {
	t.Helper()
	h := &harness{
		clock:  newClock(now),
		items:  &fakeItems{items: items},
		log:    newMemLog(),
		sender: newFakeSender(),
	}
	h.sched = NewScheduler(h.items, h.log, h.sender, testLogger(),
		WithClock(h.clock.Now),
		WithLocation(time.UTC),
		WithConcurrency(2),
	)
	return h
}

func (h *harness) run(t *testing.T) *RunSummary {
	t.Helper()
	sum, err := h.sched.Run(context.Background(), SourceManual)
	require.NoError(t, err)
	require.NotNil(t, sum)
	return sum
}

func TestScheduler_ReferenceScenario(t *testing.T) {
	a := eligible("A", day(2024, 6, 13))
	b := eligible("B", day(2024, 6, 11))
	c := eligible("C", day(2024, 6, 10))
	d := eligible("D", day(2024, 6, 12))
	h := newHarness(t, time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC), a, b, c, d)

	sum := h.run(t)

	assert.Equal(t, 4, sum.Eligible)
	assert.Equal(t, 3, sum.Sent)
	assert.Equal(t, 1, sum.Skipped)
	assert.Equal(t, 0, sum.Failed)
	assert.Equal(t, "2024-06-10", sum.Date)

	assert.True(t, h.log.has(a.Item.ID, KindThreeDay))
	assert.True(t, h.log.has(b.Item.ID, KindOneDay))
	assert.True(t, h.log.has(c.Item.ID, KindExpiryDay))
	assert.Empty(t, h.log.kindsFor(d.Item.ID))
	assert.Equal(t, 3, h.sender.count())

	require.Len(t, h.sender.sentTo(a.Address), 1)
	assert.Equal(t, "Food Expiring Soon", h.sender.sentTo(a.Address)[0].Title)
	assert.Equal(t, "A expires in 3 days.", h.sender.sentTo(a.Address)[0].Body)
	assert.Equal(t, "B expires tomorrow. Plan to use it soon!", h.sender.sentTo(b.Address)[0].Body)
	assert.Equal(t, "Food Expiring Today!", h.sender.sentTo(c.Address)[0].Title)

	// Immediate re-run on the same day sends nothing new.
	again := h.run(t)
	assert.Equal(t, 0, again.Sent)
	assert.Equal(t, 4, again.Skipped)
	assert.Equal(t, 3, h.sender.count())
	assert.Equal(t, 3, h.log.count())
}

func TestScheduler_QueriesThresholdWindow(t *testing.T) {
	h := newHarness(t, time.Date(2024, 6, 10, 17, 30, 0, 0, time.UTC))
	h.run(t)

	assert.Equal(t, day(2024, 6, 10), h.items.from)
	assert.Equal(t, day(2024, 6, 14), h.items.to)
}

func TestScheduler_Idempotent(t *testing.T) {
	item := eligible("Milk", day(2024, 6, 11))
	h := newHarness(t, day(2024, 6, 10), item)

	for i := 0; i < 5; i++ {
		h.run(t)
	}

	assert.Equal(t, 1, h.sender.count())
	assert.Equal(t, []Kind{KindOneDay}, h.log.kindsFor(item.Item.ID))
}

func TestScheduler_ConcurrentRunsLogOnce(t *testing.T) {
	items := []pantry.Eligible{
		eligible("A", day(2024, 6, 13)),
		eligible("B", day(2024, 6, 11)),
		eligible("C", day(2024, 6, 10)),
	}
	h := newHarness(t, day(2024, 6, 10), items...)

	const runs = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		summaries []*RunSummary
	)
	for i := 0; i < runs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sum, err := h.sched.Run(context.Background(), SourceScheduled)
			assert.NoError(t, err)
			mu.Lock()
			summaries = append(summaries, sum)
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, h.log.count())
	for _, it := range items {
		assert.Len(t, h.log.kindsFor(it.Item.ID), 1)
	}

	var sent, raced int
	for _, s := range summaries {
		sent += s.Sent
		raced += s.Raced
		assert.Equal(t, 0, s.Failed)
	}
	assert.Equal(t, h.sender.count(), sent, "every dispatch is accounted for")
	assert.Equal(t, 3, sent-raced, "exactly one logged send per pair")
}

func TestScheduler_ExactDayTriggering(t *testing.T) {
	item := eligible("Spinach", day(2024, 6, 12))
	h := newHarness(t, day(2024, 6, 10), item)

	sum := h.run(t)
	assert.Equal(t, 0, sum.Sent)
	assert.Equal(t, 0, h.sender.count())

	h.clock.Set(time.Date(2024, 6, 11, 9, 0, 0, 0, time.UTC))
	sum = h.run(t)
	assert.Equal(t, 1, sum.Sent)
	assert.Equal(t, []Kind{KindOneDay}, h.log.kindsFor(item.Item.ID))
}

func TestScheduler_IndependentThresholds(t *testing.T) {
	item := eligible("Chicken", day(2024, 6, 13))
	h := newHarness(t, day(2024, 6, 10), item)

	// Offset 3 day: the store is down.
	h.items.down = errors.New("connection refused")
	_, err := h.sched.Run(context.Background(), SourceScheduled)
	require.Error(t, err)
	h.items.down = nil

	h.clock.Set(day(2024, 6, 11)) // offset 2
	h.run(t)
	h.clock.Set(day(2024, 6, 12)) // offset 1
	h.run(t)
	h.clock.Set(day(2024, 6, 13)) // offset 0
	h.run(t)

	assert.ElementsMatch(t, []Kind{KindOneDay, KindExpiryDay}, h.log.kindsFor(item.Item.ID))
	assert.Equal(t, 2, h.sender.count())
}

func TestScheduler_DispatchFailureDoesNotLog(t *testing.T) {
	item := eligible("Salmon", day(2024, 6, 10))
	h := newHarness(t, day(2024, 6, 10), item)
	h.sender.fail(item.Address, true)

	sum := h.run(t)
	assert.Equal(t, 1, sum.Failed)
	require.Len(t, sum.Failures, 1)
	assert.Equal(t, item.Item.ID, sum.Failures[0].ItemID)
	assert.Equal(t, KindExpiryDay, sum.Failures[0].Kind)
	assert.Contains(t, sum.Failures[0].Reason, "gateway unavailable")
	assert.False(t, h.log.has(item.Item.ID, KindExpiryDay))

	// Same simulated day: the retry goes through.
	h.sender.fail(item.Address, false)
	sum = h.run(t)
	assert.Equal(t, 1, sum.Sent)
	assert.True(t, h.log.has(item.Item.ID, KindExpiryDay))
	assert.Equal(t, 2, h.sender.count())
}

func TestScheduler_ContinueOnError(t *testing.T) {
	one := eligible("one", day(2024, 6, 11))
	two := eligible("two", day(2024, 6, 11))
	three := eligible("three", day(2024, 6, 11))
	h := newHarness(t, day(2024, 6, 10), one, two, three)
	h.sender.fail(two.Address, true)

	sum := h.run(t)

	assert.Equal(t, 2, sum.Sent)
	assert.Equal(t, 1, sum.Failed)
	assert.True(t, h.log.has(one.Item.ID, KindOneDay))
	assert.False(t, h.log.has(two.Item.ID, KindOneDay))
	assert.True(t, h.log.has(three.Item.ID, KindOneDay))
	assert.Equal(t, 3, sum.Processed())
}

func TestScheduler_LostRaceIsSuccess(t *testing.T) {
	item := eligible("Butter", day(2024, 6, 10))
	h := newHarness(t, day(2024, 6, 10), item)
	require.NoError(t, h.log.Record(context.Background(), item.Item.ID, KindExpiryDay))
	h.log.blind = true

	sum := h.run(t)

	assert.Equal(t, 1, sum.Sent)
	assert.Equal(t, 1, sum.Raced)
	assert.Equal(t, 0, sum.Failed)
	assert.Empty(t, sum.Failures)
	assert.Equal(t, 1, h.sender.count(), "no re-send after a lost race")
}

func TestScheduler_StoreFailureIsRunLevel(t *testing.T) {
	h := newHarness(t, day(2024, 6, 10), eligible("x", day(2024, 6, 10)))
	h.items.down = errors.New("timeout")

	sum, err := h.sched.Run(context.Background(), SourceManual)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "find eligible items")
	assert.Nil(t, sum)
	assert.Equal(t, 0, h.sender.count())
}

func TestScheduler_MalformedItemSkipped(t *testing.T) {
	bad := eligible("bad", time.Time{})
	good := eligible("good", day(2024, 6, 10))
	h := newHarness(t, day(2024, 6, 10), bad, good)

	sum := h.run(t)

	assert.Equal(t, 1, sum.Sent)
	assert.Equal(t, 1, sum.Failed)
	require.Len(t, sum.Failures, 1)
	assert.Equal(t, bad.Item.ID, sum.Failures[0].ItemID)
	assert.Contains(t, sum.Failures[0].Reason, "expiration")
}

func TestScheduler_LogErrors(t *testing.T) {
	t.Run("check failure skips dispatch", func(t *testing.T) {
		item := eligible("Tofu", day(2024, 6, 10))
		h := newHarness(t, day(2024, 6, 10), item)
		h.log.existsErr = errors.New("log unavailable")

		sum := h.run(t)
		assert.Equal(t, 1, sum.Failed)
		assert.Equal(t, 0, h.sender.count())
	})

	t.Run("record failure is reported", func(t *testing.T) {
		item := eligible("Kale", day(2024, 6, 10))
		h := newHarness(t, day(2024, 6, 10), item)
		h.log.recordErr = errors.New("disk full")

		sum := h.run(t)
		assert.Equal(t, 1, sum.Failed)
		assert.Equal(t, 1, h.sender.count())
		require.Len(t, sum.Failures, 1)
		assert.Contains(t, sum.Failures[0].Reason, "sent but not recorded")
	})
}

func TestScheduler_DayBoundaryNormalization(t *testing.T) {
	item := eligible("Bread", time.Date(2024, 6, 10, 23, 59, 0, 0, time.UTC))
	h := newHarness(t, time.Date(2024, 6, 10, 0, 1, 0, 0, time.UTC), item)

	h.run(t)
	assert.Equal(t, []Kind{KindExpiryDay}, h.log.kindsFor(item.Item.ID))
}

func TestScheduler_UsesConfiguredZone(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	// 2024-06-10 16:00 UTC is 2024-06-11 01:00 in Tokyo.
	item := eligible("Natto", time.Date(2024, 6, 11, 12, 0, 0, 0, tokyo))
	h := newHarness(t, time.Date(2024, 6, 10, 16, 0, 0, 0, time.UTC), item)
	h.sched = NewScheduler(h.items, h.log, h.sender, testLogger(),
		WithClock(h.clock.Now), WithLocation(tokyo))

	h.run(t)
	assert.Equal(t, []Kind{KindExpiryDay}, h.log.kindsFor(item.Item.ID))
}

func TestScheduler_Cancellation(t *testing.T) {
	items := []pantry.Eligible{
		eligible("a", day(2024, 6, 10)),
		eligible("b", day(2024, 6, 10)),
		eligible("c", day(2024, 6, 10)),
	}
	h := newHarness(t, day(2024, 6, 10), items...)
	h.sched = NewScheduler(h.items, h.log, h.sender, testLogger(),
		WithClock(h.clock.Now), WithLocation(time.UTC), WithConcurrency(1))

	ctx, cancel := context.WithCancel(context.Background())
	h.sender.onSend = func(Message) { cancel() }

	sum, err := h.sched.Run(ctx, SourceScheduled)

	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, sum)
	assert.Equal(t, 1, h.sender.count())
	assert.Equal(t, 1, h.log.count(), "only the dispatched item is logged")
	assert.Equal(t, 1, sum.Processed())

	// The next run picks up the rest.
	h.sender.onSend = nil
	next := h.run(t)
	assert.Equal(t, 2, next.Sent)
	assert.Equal(t, 3, h.log.count())
}

func TestScheduler_CustomThresholdTable(t *testing.T) {
	week := Threshold{Offset: 7, Kind: "seven_day", Title: "Check your fridge", Body: "{name} expires in a week."}
	table := append(Thresholds{week}, DefaultThresholds...)
	item := eligible("Jam", day(2024, 6, 17))

	h := newHarness(t, day(2024, 6, 10), item)
	h.sched = NewScheduler(h.items, h.log, h.sender, testLogger(),
		WithClock(h.clock.Now), WithLocation(time.UTC), WithThresholds(table))

	h.run(t)
	assert.Equal(t, day(2024, 6, 18), h.items.to)
	assert.Equal(t, []Kind{"seven_day"}, h.log.kindsFor(item.Item.ID))
	assert.Equal(t, "Jam expires in a week.", h.sender.sentTo(item.Address)[0].Body)
}

func TestScheduler_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	ok := eligible("ok", day(2024, 6, 10))
	broken := eligible("broken", day(2024, 6, 11))
	later := eligible("later", day(2024, 6, 12))
	h := newHarness(t, day(2024, 6, 10), ok, broken, later)
	h.sender.fail(broken.Address, true)
	h.sched = NewScheduler(h.items, h.log, h.sender, testLogger(),
		WithClock(h.clock.Now), WithLocation(time.UTC), WithMetrics(m))

	h.run(t)
	h.items.down = errors.New("down")
	_, _ = h.sched.Run(context.Background(), SourceScheduled)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("manual", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("scheduled", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotificationsTotal.WithLabelValues("expiry_day", "sent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotificationsTotal.WithLabelValues("one_day", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotificationsTotal.WithLabelValues("none", "skipped")))

	_, err = NewMetrics(reg)
	assert.Error(t, err, "double registration is rejected")
}
