package domain

// ScenarioCard is a matchable unit consumed by the response router. Owned by
// tenant configuration; read-only at decision time.
type ScenarioCard struct {
	ID string `json:"id" yaml:"id"`

	// Priority breaks score ties; higher wins.
	Priority int `json:"priority,omitempty" yaml:"priority"`

	// Triggers are normalized before matching. NegativeTriggers disqualify
	// the card regardless of trigger score.
	Triggers         []string `json:"triggers" yaml:"triggers"`
	NegativeTriggers []string `json:"negative_triggers,omitempty" yaml:"negative_triggers"`

	// MinConfidence overrides the tenant's deterministic threshold for this
	// card when set above zero.
	MinConfidence float64 `json:"min_confidence,omitempty" yaml:"min_confidence"`

	Responses []string `json:"responses" yaml:"responses"`

	// Signals are attached to the decision when this card wins, e.g. the
	// scheduling-acceptance signal that can open the booking lane.
	Signals []Signal `json:"signals,omitempty" yaml:"signals"`
}

// Response returns the card's primary response text.
func (c *ScenarioCard) Response() string {
	if len(c.Responses) == 0 {
		return ""
	}
	return c.Responses[0]
}

// ShortestTrigger returns the length in runes of the card's shortest trigger,
// used as the second-level tie break (most specific wins).
func (c *ScenarioCard) ShortestTrigger() int {
	best := -1
	for _, t := range c.Triggers {
		n := len([]rune(t))
		if best < 0 || n < best {
			best = n
		}
	}
	return best
}
