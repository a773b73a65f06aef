package routing

import (
	"sort"
	"strings"

	"github.com/aretw0/switchboard/internal/normalize"
	"github.com/aretw0/switchboard/pkg/domain"
)

// candidate is a scored card within one tier.
type candidate struct {
	card       *domain.ScenarioCard
	score      float64
	provenance string
}

// matchDeterministic scores every card's trigger set against the normalized
// utterance and returns the best non-disqualified candidate at or above its
// threshold.
func matchDeterministic(norm *normalize.Normalizer, cfg *domain.TenantConfig, utterance string) (candidate, bool) {
	text := norm.Normalize(utterance)
	textTokens := norm.TokenSet(utterance)

	var cands []candidate
	for i := range cfg.Cards {
		card := &cfg.Cards[i]

		if disqualified(norm, card, text) {
			continue
		}

		score, trigger := bestTriggerScore(norm, card, text, textTokens)
		threshold := card.MinConfidence
		if threshold == 0 {
			threshold = cfg.Thresholds.Deterministic
		}
		if score < threshold {
			continue
		}
		cands = append(cands, candidate{
			card:       card,
			score:      score,
			provenance: "trigger: " + trigger,
		})
	}

	if len(cands) == 0 {
		return candidate{}, false
	}
	sortCandidates(cands)
	return cands[0], true
}

func disqualified(norm *normalize.Normalizer, card *domain.ScenarioCard, text string) bool {
	for _, neg := range card.NegativeTriggers {
		if n := norm.Normalize(neg); n != "" && strings.Contains(text, n) {
			return true
		}
	}
	return false
}

// bestTriggerScore returns the card's best trigger score: 1.0 for a full
// phrase containment, otherwise the fraction of trigger tokens present in
// the utterance.
func bestTriggerScore(norm *normalize.Normalizer, card *domain.ScenarioCard, text string, textTokens map[string]bool) (float64, string) {
	best := 0.0
	bestTrigger := ""
	for _, trigger := range card.Triggers {
		normTrigger := norm.Normalize(trigger)
		if normTrigger == "" {
			continue
		}
		var score float64
		if strings.Contains(text, normTrigger) {
			score = 1.0
		} else {
			trigTokens := norm.Tokens(trigger)
			if len(trigTokens) == 0 {
				continue
			}
			hits := 0
			for _, tok := range trigTokens {
				if textTokens[tok] {
					hits++
				}
			}
			score = float64(hits) / float64(len(trigTokens))
		}
		if score > best {
			best = score
			bestTrigger = trigger
		}
	}
	return best, bestTrigger
}

// sortCandidates orders by score, then declared priority, then shortest
// trigger phrase (most specific wins), then ID for determinism.
func sortCandidates(cands []candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].score != cands[j].score {
			return cands[i].score > cands[j].score
		}
		if cands[i].card.Priority != cands[j].card.Priority {
			return cands[i].card.Priority > cands[j].card.Priority
		}
		si, sj := cands[i].card.ShortestTrigger(), cands[j].card.ShortestTrigger()
		if si != sj {
			return si < sj
		}
		return cands[i].card.ID < cands[j].card.ID
	})
}
