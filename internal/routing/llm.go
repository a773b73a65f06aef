package routing

import (
	"context"
	"strings"

	"github.com/aretw0/switchboard/internal/normalize"
	"github.com/aretw0/switchboard/pkg/domain"
)

const defaultSystemPrompt = "You are a polite phone receptionist. Answer the caller's question in one or two short spoken sentences. If you cannot help, offer to connect them with a person."

// assisted runs tier 3. It is only invoked when tiers 1-2 missed, the
// tenant enabled the fallback and the daily budget is not exhausted. The
// reply is classified against the card set for provenance only; post-hoc
// classification never attaches signals, so a model reply cannot open the
// booking lane on its own.
func (r *Router) assisted(ctx context.Context, norm *normalize.Normalizer, cfg *domain.TenantConfig, sess *domain.CallSession, utterance string) (domain.Decision, bool) {
	if r.completer == nil || !cfg.LLM.Enabled {
		return domain.Decision{}, false
	}

	// Charge before the call so a timeout still counts against the cap. The
	// charge doubles as the gate: Charge returns the new cumulative total
	// atomically, so two concurrent turns cannot both slip under the cap the
	// way a separate read-then-charge would let them.
	if r.ledger != nil {
		total, err := r.ledger.Charge(ctx, cfg.TenantID, cfg.LLM.CostPerCallUnits)
		if err != nil {
			r.logger.Warn("budget charge failed, skipping assisted tier", "err", err)
			return domain.Decision{}, false
		}
		if cfg.LLM.DailyBudgetUnits > 0 && total > cfg.LLM.DailyBudgetUnits {
			r.mx.BudgetSkips.Inc()
			if r.sink != nil {
				r.sink.Emit(ctx, domain.NewEvent(domain.EventBudgetSkip, sess.ID, sess.TenantID, sess.TurnIndex, map[string]any{
					"spent": total,
					"cap":   cfg.LLM.DailyBudgetUnits,
				}))
			}
			// The caller would have gotten a model answer; offer a human
			// instead of the generic default.
			dec := domain.Decision{
				Tier:       domain.TierNone,
				SpokenText: cfg.Replies.Transfer,
				Provenance: "assisted tier skipped, daily budget exhausted",
			}
			r.record(ctx, sess, dec)
			return dec, true
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, cfg.LLM.Timeout)
	defer cancel()

	system := cfg.LLM.SystemPrompt
	if system == "" {
		system = defaultSystemPrompt
	}

	reply, err := r.completer.Complete(callCtx, system, utterance)
	if err != nil {
		// Timeout or provider error: tier miss, cascade continues.
		r.logger.Debug("assisted tier miss", "err", err)
		return domain.Decision{}, false
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		reply = cfg.Replies.Default
	}

	dec := domain.Decision{
		Tier:       domain.TierLLM,
		Confidence: 0,
		SpokenText: reply,
		Provenance: "model reply",
	}

	// Post-hoc classification for provenance.
	if cand, ok := classifyReply(norm, cfg, reply); ok {
		dec.CardID = cand.card.ID
		dec.Confidence = cand.score
		dec.Provenance = "model reply, classified as " + cand.card.ID
	}

	r.record(ctx, sess, dec)
	return dec, true
}

// classifyReply finds the card whose triggers best overlap the model reply.
// A weak overlap is treated as unclassified.
func classifyReply(norm *normalize.Normalizer, cfg *domain.TenantConfig, reply string) (candidate, bool) {
	text := norm.Normalize(reply)
	textTokens := norm.TokenSet(reply)

	var cands []candidate
	for i := range cfg.Cards {
		card := &cfg.Cards[i]
		score, trigger := bestTriggerScore(norm, card, text, textTokens)
		if score < 0.3 {
			continue
		}
		cands = append(cands, candidate{card: card, score: score, provenance: trigger})
	}
	if len(cands) == 0 {
		return candidate{}, false
	}
	sortCandidates(cands)
	return cands[0], true
}
