package switchboard

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/switchboard/internal/booking"
	"github.com/aretw0/switchboard/internal/lane"
	"github.com/aretw0/switchboard/internal/logging"
	"github.com/aretw0/switchboard/internal/metrics"
	"github.com/aretw0/switchboard/internal/routing"
	"github.com/aretw0/switchboard/pkg/adapters/memory"
	"github.com/aretw0/switchboard/pkg/domain"
	"github.com/aretw0/switchboard/pkg/ports"
	"github.com/aretw0/switchboard/pkg/session"
)

// Version is the library version, set at build time for releases.
var Version = "dev"

// Engine is the turn-processing core: one instance serves every call of every
// tenant. Construct it with New and the functional options; the zero
// dependencies default to in-memory adapters, which is enough for tests and
// single-process embedding.
type Engine struct {
	config ports.ConfigSource

	store    ports.SessionStore
	locker   ports.CallLocker
	leaseTTL time.Duration

	embedder  ports.Embedder
	completer ports.Completer
	ledger    ports.BudgetLedger
	idem      ports.IdempotencyStore
	sink      ports.EventSink

	logger   *slog.Logger
	registry prometheus.Registerer

	sessions *session.Manager
	machine  *lane.Machine
}

// Option configures the Engine.
type Option func(*Engine)

// WithSessionStore sets the session persistence backend.
func WithSessionStore(store ports.SessionStore) Option {
	return func(e *Engine) { e.store = store }
}

// WithCallLocker enables the distributed per-call ordering lease. Without it,
// ordering is only guaranteed within one process.
func WithCallLocker(locker ports.CallLocker) Option {
	return func(e *Engine) { e.locker = locker }
}

// WithLeaseTTL sets the call lease duration. It must exceed the worst-case
// turn including tier timeouts.
func WithLeaseTTL(ttl time.Duration) Option {
	return func(e *Engine) { e.leaseTTL = ttl }
}

// WithEmbedder enables the semantic routing tier.
func WithEmbedder(emb ports.Embedder) Option {
	return func(e *Engine) { e.embedder = emb }
}

// WithCompleter enables the model-assisted routing tier.
func WithCompleter(c ports.Completer) Option {
	return func(e *Engine) { e.completer = c }
}

// WithBudgetLedger sets the daily spend ledger for the assisted tier.
func WithBudgetLedger(l ports.BudgetLedger) Option {
	return func(e *Engine) { e.ledger = l }
}

// WithIdempotencyStore sets the replay deduplication store.
func WithIdempotencyStore(s ports.IdempotencyStore) Option {
	return func(e *Engine) { e.idem = s }
}

// WithEventSink wires the audit event sink.
func WithEventSink(sink ports.EventSink) Option {
	return func(e *Engine) { e.sink = sink }
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithMetricsRegistry registers the engine's collectors with reg.
func WithMetricsRegistry(reg prometheus.Registerer) Option {
	return func(e *Engine) { e.registry = reg }
}

// New assembles the engine over a tenant configuration source.
func New(config ports.ConfigSource, opts ...Option) *Engine {
	e := &Engine{
		config:   config,
		leaseTTL: 30 * time.Second,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.store == nil {
		e.store = memory.NewStore()
	}
	if e.ledger == nil {
		e.ledger = memory.NewLedger()
	}
	if e.idem == nil {
		e.idem = memory.NewIdempotencyStore()
	}

	var mx *metrics.Metrics
	if e.registry != nil {
		mx = metrics.New(e.registry)
	} else {
		mx = metrics.NewNop()
	}

	sessOpts := []session.Option{
		session.WithLeaseTTL(e.leaseTTL),
		session.WithLogger(e.logger),
	}
	if e.locker != nil {
		sessOpts = append(sessOpts, session.WithLocker(e.locker))
	}
	e.sessions = session.NewManager(e.store, sessOpts...)

	routerOpts := []routing.Option{routing.WithLedger(e.ledger)}
	if e.embedder != nil {
		routerOpts = append(routerOpts, routing.WithEmbedder(e.embedder))
	}
	if e.completer != nil {
		routerOpts = append(routerOpts, routing.WithCompleter(e.completer))
	}
	router := routing.New(e.logger, e.sink, mx, routerOpts...)
	engine := booking.NewEngine(e.logger, e.sink, mx)

	e.machine = lane.NewMachine(e.sessions, e.config, router, engine,
		lane.WithIdempotencyStore(e.idem),
		lane.WithEventSink(e.sink),
		lane.WithMetrics(mx),
		lane.WithLogger(e.logger),
	)
	return e
}

// ProcessTurn runs one inbound turn end to end and returns the response for
// playback. Redelivered turns return the previously committed response.
func (e *Engine) ProcessTurn(ctx context.Context, req *domain.TurnRequest) (*domain.TurnResponse, error) {
	return e.machine.ProcessTurn(ctx, req)
}

// Invalidate marks a tenant's cached configuration stale, when the config
// source supports invalidation. It is safe to call with any source.
func (e *Engine) Invalidate(tenantID, version string) bool {
	inv, ok := e.config.(ports.ConfigInvalidator)
	if !ok {
		return false
	}
	inv.Invalidate(tenantID, version)
	return true
}

// Sessions exposes the session manager, mainly for operational tooling.
func (e *Engine) Sessions() *session.Manager {
	return e.sessions
}
