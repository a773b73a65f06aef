// Package lane implements the top-level turn orchestrator: it owns the lane
// state machine, delegates each turn to the booking engine or the response
// router, arbitrates speaker ownership and is the only component that commits
// session state.
package lane

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/switchboard/internal/booking"
	"github.com/aretw0/switchboard/internal/logging"
	"github.com/aretw0/switchboard/internal/metrics"
	"github.com/aretw0/switchboard/internal/routing"
	"github.com/aretw0/switchboard/pkg/domain"
	"github.com/aretw0/switchboard/pkg/ports"
	"github.com/aretw0/switchboard/pkg/session"
)

// Machine processes turns. One instance serves all calls; per-call ordering
// comes from the session manager's lease.
type Machine struct {
	sessions *session.Manager
	config   ports.ConfigSource
	router   *routing.Router
	booking  *booking.Engine

	idem    ports.IdempotencyStore
	idemTTL time.Duration

	sink   ports.EventSink
	mx     *metrics.Metrics
	logger *slog.Logger
	arb    *arbiter
}

// Option configures the Machine.
type Option func(*Machine)

// WithIdempotencyStore enables replay deduplication for redelivered turns.
func WithIdempotencyStore(s ports.IdempotencyStore) Option {
	return func(m *Machine) { m.idem = s }
}

// WithIdempotencyTTL bounds the replay window.
func WithIdempotencyTTL(ttl time.Duration) Option {
	return func(m *Machine) { m.idemTTL = ttl }
}

// WithEventSink wires the audit event sink.
func WithEventSink(sink ports.EventSink) Option {
	return func(m *Machine) { m.sink = sink }
}

// WithMetrics wires the Prometheus collectors.
func WithMetrics(mx *metrics.Metrics) Option {
	return func(m *Machine) { m.mx = mx }
}

// WithLogger configures the machine's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Machine) { m.logger = logger }
}

// NewMachine creates the turn orchestrator.
func NewMachine(sessions *session.Manager, config ports.ConfigSource, router *routing.Router, engine *booking.Engine, opts ...Option) *Machine {
	m := &Machine{
		sessions: sessions,
		config:   config,
		router:   router,
		booking:  engine,
		idemTTL:  24 * time.Hour,
		mx:       metrics.NewNop(),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.arb = &arbiter{sink: m.sink, mx: m.mx, logger: m.logger}
	return m
}

// ProcessTurn runs one inbound turn end to end: replay check, session load,
// lane dispatch, arbitration, commit. It always holds the call's ordering
// lease from the replay check through the committed write, so a redelivered
// turn can never double-advance the flow or double-charge the budget.
func (m *Machine) ProcessTurn(ctx context.Context, req *domain.TurnRequest) (*domain.TurnResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	channel, err := req.Channel()
	if err != nil {
		return nil, err
	}

	key := req.IdempotencyKey()
	start := time.Now()

	var resp *domain.TurnResponse
	err = m.sessions.WithLease(ctx, req.CallID, func(ctx context.Context) error {
		if m.idem != nil {
			recorded, ok, err := m.idem.Get(ctx, key)
			if err != nil {
				m.logger.Warn("idempotency lookup failed, processing anyway", "key", key, "err", err)
			} else if ok {
				m.mx.TurnReplays.Inc()
				m.emit(ctx, req.CallID, req.TenantID, req.TurnIndex, domain.EventTurnReplayed, map[string]any{
					"key": key,
				})
				resp = recorded
				return nil
			}
		}

		store := m.sessions.Store()
		sess, err := store.Load(ctx, req.CallID)
		if errors.Is(err, domain.ErrSessionNotFound) {
			sess = domain.NewCallSession(req.CallID, req.TenantID)
		} else if err != nil {
			return fmt.Errorf("load session: %w", err)
		}

		cfg, err := m.config.Tenant(ctx, req.TenantID)
		if err != nil {
			return fmt.Errorf("tenant config: %w", err)
		}

		before := sess.Lane
		resp = m.process(ctx, cfg, sess, req, channel)

		if sess.Lane != before {
			m.mx.LaneTransitions.WithLabelValues(string(before), string(sess.Lane)).Inc()
			m.emit(ctx, sess.ID, sess.TenantID, req.TurnIndex, domain.EventLaneTransition, map[string]any{
				"from": string(before),
				"to":   string(sess.Lane),
			})
		}

		sess.TurnIndex = req.TurnIndex
		sess.LastSpoken = resp.SpokenText
		sess.UpdatedAt = time.Now().UTC()

		if err := store.Save(ctx, req.CallID, sess); err != nil {
			return fmt.Errorf("commit session: %w", err)
		}

		if m.idem != nil {
			if err := m.idem.Put(ctx, key, resp, m.idemTTL); err != nil {
				m.logger.Warn("idempotency record failed", "key", key, "err", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.mx.TurnDuration.WithLabelValues(string(resp.Lane)).Observe(time.Since(start).Seconds())
	return resp, nil
}

// process dispatches one turn by lane precedence: hangup, terminal lanes,
// booking (locked or with a flow in progress), then discovery.
func (m *Machine) process(ctx context.Context, cfg *domain.TenantConfig, sess *domain.CallSession, req *domain.TurnRequest, channel domain.ChannelInfo) *domain.TurnResponse {
	if channel.Hangup {
		m.terminate(ctx, sess, "hangup")
		return &domain.TurnResponse{
			SpokenText:      cfg.Replies.Goodbye,
			Lane:            sess.Lane,
			Signals:         []domain.Signal{domain.SignalTerminate},
			ShouldTerminate: true,
		}
	}

	switch sess.Lane {
	case domain.LaneTerminated:
		return &domain.TurnResponse{
			SpokenText:      cfg.Replies.Goodbye,
			Lane:            domain.LaneTerminated,
			ShouldTerminate: true,
		}
	case domain.LaneTransfer:
		return &domain.TurnResponse{
			SpokenText: cfg.Replies.Transfer,
			Lane:       domain.LaneTransfer,
			Signals:    []domain.Signal{domain.SignalEscalate},
		}
	case domain.LaneError:
		// The apology for the fault was spoken last turn; pick the call back
		// up in discovery.
		sess.Lane = domain.LaneDiscovery
	}

	if sess.BookingLocked || sess.FlowID != "" {
		return m.bookingTurn(ctx, cfg, sess, req)
	}
	return m.discoveryTurn(ctx, cfg, sess, req, channel)
}

// bookingTurn delegates to the slot engine on a session clone and commits the
// proposal. The engine never persists anything itself.
func (m *Machine) bookingTurn(ctx context.Context, cfg *domain.TenantConfig, sess *domain.CallSession, req *domain.TurnRequest) *domain.TurnResponse {
	flow, ok := cfg.Flow(sess.FlowID)
	if !ok {
		// The flow was removed from config mid-call. Drop out of booking so
		// the next turn can recover in discovery.
		missing := sess.FlowID
		sess.FlowID = ""
		sess.BookingLocked = false
		return m.fault(ctx, cfg, sess, "booking", fmt.Errorf("%w: %s", domain.ErrFlowNotFound, missing))
	}

	clone := sess.Clone()
	res, err := m.booking.HandleTurn(ctx, cfg, flow, clone, req.CallerText, speculativeWrites(req))
	if err != nil {
		return m.fault(ctx, cfg, sess, "booking", err)
	}
	*sess = *clone

	if res.WroteSlot && !sess.BookingLocked {
		m.lockBooking(sess)
	}

	spoken, collided := m.arb.resolve(ctx, cfg, sess, []emission{
		{speaker: speakerBooking, text: res.Spoken},
	})

	var signals []domain.Signal
	if res.Escalate {
		sess.Lane = domain.LaneTransfer
		signals = append(signals, domain.SignalEscalate)
	}
	if res.Completed {
		signals = append(signals, domain.SignalBookingComplete)
	}
	switch {
	case collided:
		sess.Lane = domain.LaneTransfer
	case res.Completed:
		// The booking lock never hands spoken content back to the router,
		// so a completed flow ends the call after the completion message.
		m.terminate(ctx, sess, "booking complete")
	}
	return &domain.TurnResponse{
		SpokenText:      spoken,
		Lane:            sess.Lane,
		Signals:         signals,
		ShouldTerminate: sess.Lane == domain.LaneTerminated,
	}
}

// discoveryTurn routes the utterance. A scheduling-acceptance signal opens the
// default booking flow in the same turn; the lane only locks if that flow's
// first slot write succeeds.
func (m *Machine) discoveryTurn(ctx context.Context, cfg *domain.TenantConfig, sess *domain.CallSession, req *domain.TurnRequest, channel domain.ChannelInfo) *domain.TurnResponse {
	dec := m.router.Route(ctx, cfg, sess, req.CallerText)

	if domain.HasSignal(dec.Signals, domain.SignalScheduleAccepted) {
		if flow, ok := cfg.Flow(""); ok {
			clone := sess.Clone()
			res, err := m.booking.Begin(ctx, cfg, flow, clone, channel)
			if err != nil {
				return m.fault(ctx, cfg, sess, "booking", err)
			}
			*sess = *clone
			if res.WroteSlot {
				m.lockBooking(sess)
			}

			spoken, collided := m.arb.resolve(ctx, cfg, sess, []emission{
				{speaker: speakerBooking, text: res.Spoken},
			})
			if collided {
				sess.Lane = domain.LaneTransfer
			}
			return &domain.TurnResponse{SpokenText: spoken, Lane: sess.Lane, Signals: dec.Signals}
		}
		m.logger.Warn("scheduling accepted but tenant has no default flow", "tenant_id", cfg.TenantID)
	}

	spoken, collided := m.arb.resolve(ctx, cfg, sess, []emission{
		{speaker: speakerRouter, text: dec.SpokenText},
	})
	if collided || domain.HasSignal(dec.Signals, domain.SignalEscalate) {
		sess.Lane = domain.LaneTransfer
	}
	return &domain.TurnResponse{SpokenText: spoken, Lane: sess.Lane, Signals: dec.Signals}
}

// fault handles an unrecoverable delegate error: the caller hears a canned
// apology and the lane parks in ERROR, with no further delegate call this
// turn.
func (m *Machine) fault(ctx context.Context, cfg *domain.TenantConfig, sess *domain.CallSession, delegate string, err error) *domain.TurnResponse {
	m.logger.Error("delegate fault",
		"call_id", sess.ID,
		"delegate", delegate,
		"err", err,
	)
	m.emit(ctx, sess.ID, sess.TenantID, sess.TurnIndex, domain.EventDelegateFault, map[string]any{
		"delegate": delegate,
		"err":      err.Error(),
	})
	sess.Lane = domain.LaneError
	return &domain.TurnResponse{SpokenText: cfg.Replies.Error, Lane: domain.LaneError}
}

func (m *Machine) lockBooking(sess *domain.CallSession) {
	sess.BookingLocked = true
	sess.Lane = domain.LaneBooking
}

func (m *Machine) terminate(ctx context.Context, sess *domain.CallSession, reason string) {
	if sess.Lane == domain.LaneTerminated {
		return
	}
	sess.Lane = domain.LaneTerminated
	m.emit(ctx, sess.ID, sess.TenantID, sess.TurnIndex, domain.EventSessionTerminated, map[string]any{
		"reason": reason,
	})
}

func (m *Machine) emit(ctx context.Context, callID, tenantID string, turn int, typ domain.EventType, fields map[string]any) {
	if m.sink == nil {
		return
	}
	m.sink.Emit(ctx, domain.NewEvent(typ, callID, tenantID, turn, fields))
}

// speculativeWrites extracts the gateway's slot proposals from channel
// metadata. The step gate drops everything but the active slot.
func speculativeWrites(req *domain.TurnRequest) map[string]string {
	raw, ok := req.ChannelMetadata["extracted"]
	if !ok {
		return nil
	}
	out := make(map[string]string)
	switch vals := raw.(type) {
	case map[string]string:
		for k, v := range vals {
			out[k] = v
		}
	case map[string]any:
		for k, v := range vals {
			if s, ok := v.(string); ok {
				out[k] = s
			}
		}
	default:
		return nil
	}
	return out
}
