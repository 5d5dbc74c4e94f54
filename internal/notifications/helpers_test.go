package notifications

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/albapepper/freshtrack/internal/pantry"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// day returns midnight UTC on the given date.
func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// clock is a settable test clock.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock(t time.Time) *clock { return &clock{now: t} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func eligible(name string, expires time.Time) pantry.Eligible {
	return pantry.Eligible{
		Item: pantry.Item{
			ID:          uuid.New(),
			RecipientID: uuid.New(),
			Name:        name,
			PurchasedAt: expires.AddDate(0, 0, -7),
			ExpiresAt:   expires,
		},
		Address: "ExponentPushToken[" + name + "]",
	}
}

// fakeItems serves a fixed item list, or an error while down is set.
type fakeItems struct {
	mu       sync.Mutex
	items    []pantry.Eligible
	down     error
	from, to time.Time
	calls    int
}

func (f *fakeItems) FindEligible(ctx context.Context, from, to time.Time) ([]pantry.Eligible, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.from, f.to = from, to
	if f.down != nil {
		return nil, f.down
	}
	return append([]pantry.Eligible(nil), f.items...), nil
}

type logKey struct {
	item uuid.UUID
	kind Kind
}

// memLog is an atomic in-memory Log: the mutex plays the unique constraint.
type memLog struct {
	mu        sync.Mutex
	entries   map[logKey]time.Time
	existsErr error
	recordErr error
	// blind makes Exists always report false, simulating a concurrent run
	// that checked before this one recorded.
	blind bool
}

func newMemLog() *memLog {
	return &memLog{entries: make(map[logKey]time.Time)}
}

func (l *memLog) Exists(ctx context.Context, itemID uuid.UUID, kind Kind) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.existsErr != nil {
		return false, l.existsErr
	}
	if l.blind {
		return false, nil
	}
	_, ok := l.entries[logKey{itemID, kind}]
	return ok, nil
}

func (l *memLog) Record(ctx context.Context, itemID uuid.UUID, kind Kind) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.recordErr != nil {
		return l.recordErr
	}
	k := logKey{itemID, kind}
	if _, ok := l.entries[k]; ok {
		return ErrAlreadyRecorded
	}
	l.entries[k] = time.Now()
	return nil
}

func (l *memLog) has(itemID uuid.UUID, kind Kind) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.entries[logKey{itemID, kind}]
	return ok
}

func (l *memLog) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *memLog) kindsFor(itemID uuid.UUID) []Kind {
	l.mu.Lock()
	defer l.mu.Unlock()
	var kinds []Kind
	for k := range l.entries {
		if k.item == itemID {
			kinds = append(kinds, k.kind)
		}
	}
	return kinds
}

// fakeSender records every send and fails for addresses in failing.
type fakeSender struct {
	mu      sync.Mutex
	sent    []Message
	failing map[string]bool
	onSend  func(Message)
}

func newFakeSender() *fakeSender {
	return &fakeSender{failing: make(map[string]bool)}
}

func (s *fakeSender) Send(ctx context.Context, msg Message) error {
	s.mu.Lock()
	s.sent = append(s.sent, msg)
	fail := s.failing[msg.To]
	hook := s.onSend
	s.mu.Unlock()
	if hook != nil {
		hook(msg)
	}
	if fail {
		return &DispatchError{StatusCode: 503, Reason: "gateway unavailable"}
	}
	return nil
}

func (s *fakeSender) fail(addr string, on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing[addr] = on
}

func (s *fakeSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func (s *fakeSender) sentTo(addr string) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Message
	for _, m := range s.sent {
		if m.To == addr {
			out = append(out, m)
		}
	}
	return out
}
