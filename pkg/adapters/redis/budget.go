package redis

import (
	"context"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"
)

// Ledger implements ports.BudgetLedger with one INCRBY-counted key per tenant
// per UTC day. Keys expire two days after creation, which covers timezone
// skew without accumulating garbage.
type Ledger struct {
	client *backend.Client
	prefix string
	now    func() time.Time
}

type LedgerOption func(*Ledger)

// WithClock overrides the ledger clock (tests).
func WithClock(now func() time.Time) LedgerOption {
	return func(l *Ledger) {
		l.now = now
	}
}

// NewLedger creates a Redis budget ledger.
func NewLedger(client *backend.Client, prefix string, opts ...LedgerOption) *Ledger {
	l := &Ledger{
		client: client,
		prefix: prefix,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Ledger) key(tenantID string) string {
	day := l.now().UTC().Format("2006-01-02")
	return l.prefix + "budget:" + tenantID + ":" + day
}

// Charge adds cost units to today's total and returns the new total.
func (l *Ledger) Charge(ctx context.Context, tenantID string, units int64) (int64, error) {
	key := l.key(tenantID)

	pipe := l.client.Pipeline()
	incr := pipe.IncrBy(ctx, key, units)
	pipe.Expire(ctx, key, 48*time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to charge budget: %w", err)
	}

	return incr.Val(), nil
}

// Spent returns today's cumulative total for the tenant.
func (l *Ledger) Spent(ctx context.Context, tenantID string) (int64, error) {
	val, err := l.client.Get(ctx, l.key(tenantID)).Int64()
	if err != nil {
		if err == backend.Nil {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read budget: %w", err)
	}
	return val, nil
}
