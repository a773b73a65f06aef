package domain

import "time"

// TierThresholds holds the per-tier minimum confidence for the cascade. A
// tier below its threshold is a miss and the cascade continues.
type TierThresholds struct {
	Deterministic float64 `json:"deterministic" yaml:"deterministic"`
	Semantic      float64 `json:"semantic" yaml:"semantic"`
}

// LLMPolicy configures the model-assisted tier and any model-backed helpers.
type LLMPolicy struct {
	Enabled bool `json:"enabled" yaml:"enabled"`

	// DailyBudgetUnits caps cumulative spend per tenant per day. Once the
	// ledger reaches the cap, tier 3 is skipped for the rest of the day.
	DailyBudgetUnits int64 `json:"daily_budget_units" yaml:"daily_budget_units"`
	CostPerCallUnits int64 `json:"cost_per_call_units" yaml:"cost_per_call_units"`

	SystemPrompt string        `json:"system_prompt,omitempty" yaml:"system_prompt"`
	Timeout      time.Duration `json:"timeout,omitempty" yaml:"timeout"`
}

// NormalizerConfig carries the token lists used to canonicalize caller text.
// These are tenant-tunable data, never hard-coded.
type NormalizerConfig struct {
	FillerWords []string          `json:"filler_words,omitempty" yaml:"filler_words"`
	Synonyms    map[string]string `json:"synonyms,omitempty" yaml:"synonyms"`
}

// ValidationConfig carries the type-class predicate token lists and limits.
type ValidationConfig struct {
	StreetSuffixes   []string `json:"street_suffixes,omitempty" yaml:"street_suffixes"`
	UrgencyPhrases   []string `json:"urgency_phrases,omitempty" yaml:"urgency_phrases"`
	TimeOfDayWords   []string `json:"time_of_day_words,omitempty" yaml:"time_of_day_words"`
	RelativeDayWords []string `json:"relative_day_words,omitempty" yaml:"relative_day_words"`

	// MaxBareNumberLen is the longest digit run accepted as a temporal
	// value; anything longer is treated as a misplaced phone/number.
	MaxBareNumberLen int `json:"max_bare_number_len,omitempty" yaml:"max_bare_number_len"`
	MaxValueLen      int `json:"max_value_len,omitempty" yaml:"max_value_len"`
}

// Replies are the fixed tenant responses for off-path situations.
type Replies struct {
	Default    string `json:"default" yaml:"default"`
	Transfer   string `json:"transfer" yaml:"transfer"`
	Error      string `json:"error" yaml:"error"`
	SafeFiller string `json:"safe_filler" yaml:"safe_filler"`
	Goodbye    string `json:"goodbye,omitempty" yaml:"goodbye"`
}

// TenantConfig is the read-only decision-time view of a tenant's
// configuration, provided by the admin/config collaborator.
type TenantConfig struct {
	TenantID string `json:"tenant_id" yaml:"tenant_id"`
	Version  string `json:"version" yaml:"version"`

	Flows         []BookingFlowDefinition `json:"flows" yaml:"flows"`
	DefaultFlowID string                  `json:"default_flow_id" yaml:"default_flow_id"`

	Cards []ScenarioCard `json:"cards" yaml:"cards"`

	Thresholds TierThresholds `json:"thresholds" yaml:"thresholds"`
	LLM        LLMPolicy      `json:"llm" yaml:"llm"`

	Normalizer NormalizerConfig `json:"normalizer" yaml:"normalizer"`
	Validation ValidationConfig `json:"validation" yaml:"validation"`

	Replies Replies `json:"replies" yaml:"replies"`

	// RewindCap bounds confirmation-invariant rewinds before escalating.
	RewindCap int `json:"rewind_cap,omitempty" yaml:"rewind_cap"`

	// SemanticTimeout bounds the embedding comparator call.
	SemanticTimeout time.Duration `json:"semantic_timeout,omitempty" yaml:"semantic_timeout"`
}

// Flow returns the flow with the given ID, or the default flow when id is
// empty.
func (t *TenantConfig) Flow(id string) (*BookingFlowDefinition, bool) {
	if id == "" {
		id = t.DefaultFlowID
	}
	for i := range t.Flows {
		if t.Flows[i].ID == id {
			return &t.Flows[i], true
		}
	}
	return nil, false
}

// Card returns the card with the given ID.
func (t *TenantConfig) Card(id string) (*ScenarioCard, bool) {
	for i := range t.Cards {
		if t.Cards[i].ID == id {
			return &t.Cards[i], true
		}
	}
	return nil, false
}
