package memory

import (
	"context"
	"sync"
	"time"
)

const DefaultLedgerTTL = 72 * time.Hour

// EventLedger remembers processed provider event ids for a bounded time.
type EventLedger struct {
	mu   sync.Mutex
	ttl  time.Duration
	seen map[string]time.Time
	now  func() time.Time
}

func NewEventLedger(ttl time.Duration) *EventLedger {
	if ttl <= 0 {
		ttl = DefaultLedgerTTL
	}
	return &EventLedger{ttl: ttl, seen: make(map[string]time.Time), now: time.Now}
}

func (l *EventLedger) Seen(ctx context.Context, eventID string) (bool, error) {
	_ = ctx

	l.mu.Lock()
	defer l.mu.Unlock()

	exp, ok := l.seen[eventID]
	if !ok {
		return false, nil
	}
	if l.now().After(exp) {
		delete(l.seen, eventID)
		return false, nil
	}
	return true, nil
}

func (l *EventLedger) Remember(ctx context.Context, eventID string) error {
	_ = ctx

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for id, exp := range l.seen {
		if now.After(exp) {
			delete(l.seen, id)
		}
	}
	l.seen[eventID] = now.Add(l.ttl)
	return nil
}
