package domain

// Tier identifies which stage of the routing cascade produced a decision.
type Tier int

const (
	// TierNone means every tier missed and the tenant default reply was used.
	TierNone Tier = 0
	// TierDeterministic is the rule-based trigger match.
	TierDeterministic Tier = 1
	// TierSemantic is the embedding-similarity match.
	TierSemantic Tier = 2
	// TierLLM is the model-assisted fallback.
	TierLLM Tier = 3
)

func (t Tier) String() string {
	switch t {
	case TierDeterministic:
		return "deterministic"
	case TierSemantic:
		return "semantic"
	case TierLLM:
		return "llm"
	default:
		return "default"
	}
}

// Decision is the router's per-turn output. It is ephemeral: the lane machine
// consumes it once and only audit events outlive the turn.
type Decision struct {
	Tier       Tier
	Confidence float64
	CardID     string
	SpokenText string
	Signals    []Signal

	// Provenance is a short human-readable note for audit logs, e.g. which
	// trigger phrase matched or that the LLM reply was classified post hoc.
	Provenance string
}
