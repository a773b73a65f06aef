package memory

import (
	"context"
	"sync"
	"time"

	"github.com/aretw0/switchboard/pkg/domain"
)

// Ledger implements ports.BudgetLedger in memory, keyed by tenant and UTC day.
type Ledger struct {
	mu    sync.Mutex
	spent map[string]int64
	now   func() time.Time
}

// NewLedger creates an in-memory budget ledger.
func NewLedger() *Ledger {
	return &Ledger{
		spent: make(map[string]int64),
		now:   time.Now,
	}
}

// SetClock overrides the ledger clock (tests).
func (l *Ledger) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

func (l *Ledger) key(tenantID string) string {
	return tenantID + ":" + l.now().UTC().Format("2006-01-02")
}

// Charge adds cost units to today's total and returns the new total.
func (l *Ledger) Charge(ctx context.Context, tenantID string, units int64) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	k := l.key(tenantID)
	l.spent[k] += units
	return l.spent[k], nil
}

// Spent returns today's cumulative total for the tenant.
func (l *Ledger) Spent(ctx context.Context, tenantID string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.spent[l.key(tenantID)], nil
}

// IdempotencyStore implements ports.IdempotencyStore in memory. TTLs are
// honored lazily on read.
type IdempotencyStore struct {
	mu      sync.Mutex
	records map[string]idemRecord
	now     func() time.Time
}

type idemRecord struct {
	resp      domain.TurnResponse
	expiresAt time.Time
}

// NewIdempotencyStore creates an in-memory idempotency store.
func NewIdempotencyStore() *IdempotencyStore {
	return &IdempotencyStore{
		records: make(map[string]idemRecord),
		now:     time.Now,
	}
}

// Get returns the recorded response for the key.
func (s *IdempotencyStore) Get(ctx context.Context, key string) (*domain.TurnResponse, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok {
		return nil, false, nil
	}
	if s.now().After(rec.expiresAt) {
		delete(s.records, key)
		return nil, false, nil
	}
	resp := rec.resp
	return &resp, true, nil
}

// Put records the committed response.
func (s *IdempotencyStore) Put(ctx context.Context, key string, resp *domain.TurnResponse, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[key] = idemRecord{
		resp:      *resp,
		expiresAt: s.now().Add(ttl),
	}
	return nil
}
