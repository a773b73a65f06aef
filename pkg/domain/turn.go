package domain

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// TurnRequest is the inbound contract delivered once per caller utterance by
// the telephony/chat gateway. (CallID, TurnIndex) is the idempotency key.
type TurnRequest struct {
	CallID          string         `json:"call_id"`
	TenantID        string         `json:"tenant_id"`
	TurnIndex       int            `json:"turn_index"`
	CallerText      string         `json:"caller_text"`
	ChannelMetadata map[string]any `json:"channel_metadata,omitempty"`
}

// IdempotencyKey identifies a turn delivery for replay deduplication.
func (r *TurnRequest) IdempotencyKey() string {
	return fmt.Sprintf("%s:%d", r.CallID, r.TurnIndex)
}

// Validate checks the gateway contract fields.
func (r *TurnRequest) Validate() error {
	if r.CallID == "" {
		return fmt.Errorf("turn request: %w", ErrMissingCallID)
	}
	if r.TenantID == "" {
		return fmt.Errorf("turn request: %w", ErrMissingTenantID)
	}
	if r.TurnIndex < 1 {
		return fmt.Errorf("turn request: %w", ErrBadTurnIndex)
	}
	return nil
}

// ChannelInfo is the typed view of the gateway's channel metadata map.
type ChannelInfo struct {
	Channel  string `mapstructure:"channel"`
	CallerID string `mapstructure:"caller_id"`
	Locale   string `mapstructure:"locale"`
	Hangup   bool   `mapstructure:"hangup"`
}

// Channel decodes the loosely typed metadata map. Unknown keys are ignored;
// the gateway contract is additive.
func (r *TurnRequest) Channel() (ChannelInfo, error) {
	var info ChannelInfo
	if r.ChannelMetadata == nil {
		return info, nil
	}
	if err := mapstructure.Decode(r.ChannelMetadata, &info); err != nil {
		return info, fmt.Errorf("decode channel metadata: %w", err)
	}
	return info, nil
}

// TurnResponse is the outbound contract returned to the gateway for playback.
type TurnResponse struct {
	SpokenText      string   `json:"spoken_text"`
	Lane            Lane     `json:"lane"`
	Signals         []Signal `json:"signals,omitempty"`
	ShouldTerminate bool     `json:"should_terminate"`
}
