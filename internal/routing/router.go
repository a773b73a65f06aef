// Package routing implements the tiered response cascade: a deterministic
// trigger match, an embedding similarity match and a model-assisted
// fallback, evaluated in strict order with early exit. Timeouts and
// provider errors are tier misses; the cascade always produces a decision.
package routing

import (
	"context"
	"log/slog"

	"github.com/aretw0/switchboard/internal/metrics"
	"github.com/aretw0/switchboard/internal/normalize"
	"github.com/aretw0/switchboard/pkg/domain"
	"github.com/aretw0/switchboard/pkg/ports"
)

// Router produces one Decision per discovery turn.
type Router struct {
	embedder  ports.Embedder
	completer ports.Completer
	ledger    ports.BudgetLedger
	sink      ports.EventSink
	mx        *metrics.Metrics
	logger    *slog.Logger

	vectors *vectorCache
}

// Option configures the Router.
type Option func(*Router)

// WithEmbedder enables the semantic tier.
func WithEmbedder(e ports.Embedder) Option {
	return func(r *Router) { r.embedder = e }
}

// WithCompleter enables the assisted tier.
func WithCompleter(c ports.Completer) Option {
	return func(r *Router) { r.completer = c }
}

// WithLedger wires the daily budget gate for the assisted tier.
func WithLedger(l ports.BudgetLedger) Option {
	return func(r *Router) { r.ledger = l }
}

// New creates a router. With no embedder or completer the corresponding
// tiers simply never match.
func New(logger *slog.Logger, sink ports.EventSink, mx *metrics.Metrics, opts ...Option) *Router {
	r := &Router{
		sink:    sink,
		mx:      mx,
		logger:  logger,
		vectors: newVectorCache(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Route runs the cascade for one utterance. It always returns a usable
// decision; when every tier misses the tenant default reply is used and no
// signals are attached.
func (r *Router) Route(ctx context.Context, cfg *domain.TenantConfig, sess *domain.CallSession, utterance string) domain.Decision {
	norm := normalize.New(cfg.Normalizer)

	// Tier 1: deterministic trigger match.
	if cand, ok := matchDeterministic(norm, cfg, utterance); ok {
		return r.decide(ctx, sess, domain.TierDeterministic, cand)
	}

	// Tier 2: embedding similarity.
	if cand, ok := r.matchSemantic(ctx, norm, cfg, utterance); ok {
		return r.decide(ctx, sess, domain.TierSemantic, cand)
	}

	// Tier 3: model-assisted fallback, budget and flag gated.
	if dec, ok := r.assisted(ctx, norm, cfg, sess, utterance); ok {
		return dec
	}

	dec := domain.Decision{
		Tier:       domain.TierNone,
		SpokenText: cfg.Replies.Default,
		Provenance: "all tiers missed",
	}
	r.record(ctx, sess, dec)
	return dec
}

func (r *Router) decide(ctx context.Context, sess *domain.CallSession, tier domain.Tier, cand candidate) domain.Decision {
	dec := domain.Decision{
		Tier:       tier,
		Confidence: cand.score,
		CardID:     cand.card.ID,
		SpokenText: cand.card.Response(),
		Signals:    cand.card.Signals,
		Provenance: cand.provenance,
	}
	r.record(ctx, sess, dec)
	return dec
}

func (r *Router) record(ctx context.Context, sess *domain.CallSession, dec domain.Decision) {
	r.mx.TierSelected.WithLabelValues(dec.Tier.String()).Inc()
	if r.sink != nil {
		r.sink.Emit(ctx, domain.NewEvent(domain.EventTierSelected, sess.ID, sess.TenantID, sess.TurnIndex, map[string]any{
			"tier":       dec.Tier.String(),
			"card":       dec.CardID,
			"confidence": dec.Confidence,
			"provenance": dec.Provenance,
		}))
	}
	r.logger.Debug("routing decision",
		"call_id", sess.ID,
		"tier", dec.Tier.String(),
		"card", dec.CardID,
		"confidence", dec.Confidence,
	)
}
