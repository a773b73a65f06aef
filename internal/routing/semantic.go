package routing

import (
	"context"
	"math"
	"sync"

	"github.com/aretw0/switchboard/internal/normalize"
	"github.com/aretw0/switchboard/pkg/domain"
)

// vectorCache memoizes reference-phrase embeddings per tenant config
// version, so steady-state turns embed only the utterance.
type vectorCache struct {
	mu sync.RWMutex
	m  map[string][]float32
}

func newVectorCache() *vectorCache {
	return &vectorCache{m: make(map[string][]float32)}
}

func (c *vectorCache) get(key string) ([]float32, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.m[key]
	return v, ok
}

func (c *vectorCache) put(key string, v []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = v
}

// matchSemantic embeds the normalized utterance and compares it against each
// card's reference phrases. Any embedding failure is a tier miss, never a
// fault.
func (r *Router) matchSemantic(ctx context.Context, norm *normalize.Normalizer, cfg *domain.TenantConfig, utterance string) (candidate, bool) {
	if r.embedder == nil {
		return candidate{}, false
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.SemanticTimeout)
	defer cancel()

	text := norm.Normalize(utterance)
	queryVec, err := r.embedder.Embed(ctx, text)
	if err != nil {
		r.logger.Debug("semantic tier miss: embed failed", "err", err)
		return candidate{}, false
	}

	var cands []candidate
	for i := range cfg.Cards {
		card := &cfg.Cards[i]

		if disqualified(norm, card, text) {
			continue
		}

		best := 0.0
		bestPhrase := ""
		for _, phrase := range card.Triggers {
			ref, err := r.referenceVector(ctx, norm, cfg, phrase)
			if err != nil {
				r.logger.Debug("semantic tier miss: reference embed failed", "err", err)
				return candidate{}, false
			}
			if sim := cosine(queryVec, ref); sim > best {
				best = sim
				bestPhrase = phrase
			}
		}

		if best < cfg.Thresholds.Semantic {
			continue
		}
		cands = append(cands, candidate{
			card:       card,
			score:      best,
			provenance: "similar to: " + bestPhrase,
		})
	}

	if len(cands) == 0 {
		return candidate{}, false
	}
	sortCandidates(cands)
	return cands[0], true
}

func (r *Router) referenceVector(ctx context.Context, norm *normalize.Normalizer, cfg *domain.TenantConfig, phrase string) ([]float32, error) {
	key := cfg.TenantID + "|" + cfg.Version + "|" + norm.Normalize(phrase)
	if vec, ok := r.vectors.get(key); ok {
		return vec, nil
	}
	vec, err := r.embedder.Embed(ctx, norm.Normalize(phrase))
	if err != nil {
		return nil, err
	}
	r.vectors.put(key, vec)
	return vec, nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
