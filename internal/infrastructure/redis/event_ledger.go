// Package redis stores processed webhook event ids so replays short-circuit
// across instances.
package redis

import (
	"context"
	"fmt"
	"time"

	dompayment "github.com/Zhima-Mochi/marketplace-checkout/internal/domain/payment"

	goredis "github.com/redis/go-redis/v9"
)

var _ dompayment.EventLedger = (*EventLedger)(nil)

const (
	DefaultKeyPrefix = "checkout:webhook:"
	DefaultTTL       = 72 * time.Hour
)

// ledgerClient is the subset of goredis.Cmdable the ledger uses.
type ledgerClient interface {
	Exists(ctx context.Context, keys ...string) *goredis.IntCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *goredis.StatusCmd
}

type EventLedger struct {
	rdb    ledgerClient
	prefix string
	ttl    time.Duration
}

func NewEventLedger(rdb ledgerClient, prefix string, ttl time.Duration) *EventLedger {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &EventLedger{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (l *EventLedger) key(eventID string) string {
	return l.prefix + eventID
}

func (l *EventLedger) Seen(ctx context.Context, eventID string) (bool, error) {
	n, err := l.rdb.Exists(ctx, l.key(eventID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis ledger: exists: %w", err)
	}
	return n > 0, nil
}

// Remember is written only after an event was fully applied, so a plain SET
// is enough: a concurrent duplicate is settled by the order's guarded update.
func (l *EventLedger) Remember(ctx context.Context, eventID string) error {
	if err := l.rdb.Set(ctx, l.key(eventID), time.Now().UTC().Format(time.RFC3339), l.ttl).Err(); err != nil {
		return fmt.Errorf("redis ledger: set: %w", err)
	}
	return nil
}

type ClientOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewClient connects and pings, mirroring how the service fails fast at boot.
func NewClient(ctx context.Context, opts ClientOptions) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", opts.Addr, err)
	}
	return rdb, nil
}
