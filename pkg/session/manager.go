package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/switchboard/internal/logging"
	"github.com/aretw0/switchboard/pkg/domain"
	"github.com/aretw0/switchboard/pkg/ports"
)

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu     sync.Mutex
	refs   int
	unlock ports.UnlockFunc
}

// Manager serializes per-call access. In-process turns queue on a refcounted
// mutex; across replicas the optional CallLocker provides the lease.
type Manager struct {
	store ports.SessionStore

	mu    sync.Mutex
	locks map[string]*lockEntry

	locker   ports.CallLocker
	leaseTTL time.Duration
	logger   *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed leasing.
func WithLocker(locker ports.CallLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLeaseTTL sets the lease duration; it must exceed the worst-case turn
// (including tier timeouts) so a live worker never loses its lease mid-turn.
func WithLeaseTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.leaseTTL = ttl
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a session manager over a persistence store.
func NewManager(store ports.SessionStore, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		locks:    make(map[string]*lockEntry),
		leaseTTL: 30 * time.Second,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
func (m *Manager) acquire(callID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[callID]
	if !exists {
		entry = &lockEntry{}
		m.locks[callID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry at zero.
func (m *Manager) release(callID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[callID]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, callID)
	}
}

// Load retrieves an existing session.
func (m *Manager) Load(ctx context.Context, callID string) (*domain.CallSession, error) {
	var session *domain.CallSession
	err := m.WithLease(ctx, callID, func(ctx context.Context) error {
		var err error
		session, err = m.store.Load(ctx, callID)
		return err
	})
	return session, err
}

// LoadOrStart loads a session or initializes one on first contact.
func (m *Manager) LoadOrStart(ctx context.Context, callID, tenantID string) (*domain.CallSession, error) {
	var session *domain.CallSession
	err := m.WithLease(ctx, callID, func(ctx context.Context) error {
		var err error
		session, err = m.store.Load(ctx, callID)
		if err == nil {
			return nil
		}
		if err != domain.ErrSessionNotFound {
			return fmt.Errorf("failed to check session existence: %w", err)
		}

		session = domain.NewCallSession(callID, tenantID)
		if err := m.store.Save(ctx, callID, session); err != nil {
			return fmt.Errorf("failed to initialize session: %w", err)
		}
		return nil
	})
	return session, err
}

// Save persists the session.
func (m *Manager) Save(ctx context.Context, callID string, session *domain.CallSession) error {
	return m.WithLease(ctx, callID, func(ctx context.Context) error {
		return m.store.Save(ctx, callID, session)
	})
}

// Delete removes the session from the store.
func (m *Manager) Delete(ctx context.Context, callID string) error {
	return m.WithLease(ctx, callID, func(ctx context.Context) error {
		return m.store.Delete(ctx, callID)
	})
}

// Store returns the underlying session store.
func (m *Manager) Store() ports.SessionStore {
	return m.store
}

// WithLease executes fn while holding the call's ordering lease. The lease
// is held until fn returns, so a turn's read always reflects the previous
// turn's committed write.
func (m *Manager) WithLease(ctx context.Context, callID string, fn func(context.Context) error) error {
	entry := m.acquire(callID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(callID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, callID, m.leaseTTL)
		if err != nil {
			return fmt.Errorf("%w: %s", domain.ErrLeaseHeld, err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("failed to release call lease (will expire via TTL)",
					"call_id", callID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
