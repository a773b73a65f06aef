package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType categorizes an audit event.
type EventType string

const (
	EventValidationRejected  EventType = "validation_rejected"
	EventSanityFixApplied    EventType = "sanity_fix_applied"
	EventConfirmationRewind  EventType = "confirmation_rewind"
	EventStepGateDrop        EventType = "step_gate_drop"
	EventTierSelected        EventType = "tier_selected"
	EventBudgetSkip          EventType = "budget_skip"
	EventSpeakerCollision    EventType = "speaker_collision"
	EventLaneTransition      EventType = "lane_transition"
	EventDelegateFault       EventType = "delegate_fault"
	EventTurnReplayed        EventType = "turn_replayed"
	EventBookingCompleted    EventType = "booking_completed"
	EventConfigReloaded      EventType = "config_reloaded"
	EventConfigInvalidated   EventType = "config_invalidated"
	EventSessionTerminated   EventType = "session_terminated"
	EventConfirmationOffered EventType = "confirmation_offered"
)

// Event is the structured audit record emitted for external observability
// tooling. Fields carries event-specific detail (reason codes, slot names,
// tier, scores).
type Event struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Type      EventType      `json:"type"`
	CallID    string         `json:"call_id"`
	TenantID  string         `json:"tenant_id"`
	Turn      int            `json:"turn"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// NewEvent builds an audit event stamped with a fresh ID and UTC time.
func NewEvent(typ EventType, callID, tenantID string, turn int, fields map[string]any) Event {
	return Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Type:      typ,
		CallID:    callID,
		TenantID:  tenantID,
		Turn:      turn,
		Fields:    fields,
	}
}
