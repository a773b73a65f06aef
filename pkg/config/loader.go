// Package config loads and caches tenant configuration: booking flows,
// scenario cards, tier thresholds, budget caps and the token lists used by
// the normalizer and the validation pipeline.
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aretw0/switchboard/pkg/domain"
	"gopkg.in/yaml.v3"
)

// Loader fetches a tenant's configuration from its backing source.
type Loader interface {
	Load(ctx context.Context, tenantID string) (*domain.TenantConfig, error)
}

// DirLoader reads one YAML file per tenant from a directory.
type DirLoader struct {
	dir string
}

// NewDirLoader creates a loader rooted at dir.
func NewDirLoader(dir string) *DirLoader {
	return &DirLoader{dir: dir}
}

// Load reads and validates <dir>/<tenantID>.yaml.
func (l *DirLoader) Load(ctx context.Context, tenantID string) (*domain.TenantConfig, error) {
	path := filepath.Join(l.dir, tenantID+".yaml")

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrTenantNotFound
		}
		return nil, fmt.Errorf("read tenant config: %w", err)
	}

	return Parse(data, tenantID)
}

// Parse decodes a tenant config document, applies defaults and validates it.
func Parse(data []byte, tenantID string) (*domain.TenantConfig, error) {
	var cfg domain.TenantConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse tenant config: %w", err)
	}

	if cfg.TenantID == "" {
		cfg.TenantID = tenantID
	}
	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills unset tunables with safe values.
func ApplyDefaults(cfg *domain.TenantConfig) {
	if cfg.Thresholds.Deterministic == 0 {
		cfg.Thresholds.Deterministic = 0.80
	}
	if cfg.Thresholds.Semantic == 0 {
		cfg.Thresholds.Semantic = 0.75
	}
	if cfg.RewindCap == 0 {
		cfg.RewindCap = 3
	}
	if cfg.SemanticTimeout == 0 {
		cfg.SemanticTimeout = 2 * time.Second
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 6 * time.Second
	}
	if cfg.LLM.CostPerCallUnits == 0 {
		cfg.LLM.CostPerCallUnits = 1
	}
	if cfg.Validation.MaxBareNumberLen == 0 {
		cfg.Validation.MaxBareNumberLen = 4
	}
	if cfg.Validation.MaxValueLen == 0 {
		cfg.Validation.MaxValueLen = 200
	}
	if cfg.Replies.Default == "" {
		cfg.Replies.Default = "Sorry, I didn't quite catch that. Could you say it another way?"
	}
	if cfg.Replies.Transfer == "" {
		cfg.Replies.Transfer = "Let me get you to a person who can help."
	}
	if cfg.Replies.Error == "" {
		cfg.Replies.Error = "I'm sorry, something went wrong on my end. Let me get you to a person."
	}
	if cfg.Replies.SafeFiller == "" {
		cfg.Replies.SafeFiller = "One moment, please."
	}
	if cfg.Replies.Goodbye == "" {
		cfg.Replies.Goodbye = "Thanks for calling. Goodbye!"
	}
	if cfg.DefaultFlowID == "" && len(cfg.Flows) > 0 {
		cfg.DefaultFlowID = cfg.Flows[0].ID
	}
}

// Validate checks structural invariants of a tenant config.
func Validate(cfg *domain.TenantConfig) error {
	if cfg.TenantID == "" {
		return fmt.Errorf("tenant config: missing tenant_id")
	}

	seenFlows := make(map[string]bool)
	for _, flow := range cfg.Flows {
		if flow.ID == "" {
			return fmt.Errorf("tenant %s: flow with empty id", cfg.TenantID)
		}
		if seenFlows[flow.ID] {
			return fmt.Errorf("tenant %s: duplicate flow id %q", cfg.TenantID, flow.ID)
		}
		seenFlows[flow.ID] = true

		if len(flow.Slots) == 0 {
			return fmt.Errorf("tenant %s: flow %q has no slots", cfg.TenantID, flow.ID)
		}
		seenSlots := make(map[string]bool)
		for _, slot := range flow.Slots {
			if slot.Name == "" {
				return fmt.Errorf("tenant %s: flow %q has a slot with empty name", cfg.TenantID, flow.ID)
			}
			if seenSlots[slot.Name] {
				return fmt.Errorf("tenant %s: flow %q duplicate slot %q", cfg.TenantID, flow.ID, slot.Name)
			}
			seenSlots[slot.Name] = true

			switch slot.Type {
			case domain.TypeFreeText, domain.TypePhone, domain.TypeAddress, domain.TypeTemporal, domain.TypeNumeric:
			default:
				return fmt.Errorf("tenant %s: flow %q slot %q has unknown type %q", cfg.TenantID, flow.ID, slot.Name, slot.Type)
			}
			switch slot.Confirm {
			case "", domain.ConfirmNever, domain.ConfirmIfMissing, domain.ConfirmAlways:
			default:
				return fmt.Errorf("tenant %s: flow %q slot %q has unknown confirm policy %q", cfg.TenantID, flow.ID, slot.Name, slot.Confirm)
			}
		}
	}

	if cfg.DefaultFlowID != "" && !seenFlows[cfg.DefaultFlowID] {
		return fmt.Errorf("tenant %s: default flow %q not defined", cfg.TenantID, cfg.DefaultFlowID)
	}

	seenCards := make(map[string]bool)
	for _, card := range cfg.Cards {
		if card.ID == "" {
			return fmt.Errorf("tenant %s: card with empty id", cfg.TenantID)
		}
		if seenCards[card.ID] {
			return fmt.Errorf("tenant %s: duplicate card id %q", cfg.TenantID, card.ID)
		}
		seenCards[card.ID] = true
		if len(card.Triggers) == 0 {
			return fmt.Errorf("tenant %s: card %q has no triggers", cfg.TenantID, card.ID)
		}
		if len(card.Responses) == 0 {
			return fmt.Errorf("tenant %s: card %q has no responses", cfg.TenantID, card.ID)
		}
	}

	return nil
}
