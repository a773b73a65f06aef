package domain

import "time"

// ValueSource records how a slot value entered the session.
type ValueSource string

const (
	// SourceStated means the caller said the value in this flow.
	SourceStated ValueSource = "stated"
	// SourceInferred means the value came from metadata (e.g. caller ID).
	SourceInferred ValueSource = "inferred"
)

// SlotValue is a collected slot value tagged with the turn it was accepted on
// and how it was sourced. A SlotValue is only ever stored after passing the
// slot's type-class predicate.
type SlotValue struct {
	Value     string      `json:"value"`
	Turn      int         `json:"turn"`
	Source    ValueSource `json:"source"`
	Confirmed bool        `json:"confirmed"`
}

// CallSession is the per-call snapshot. It is mutated exclusively by the lane
// state machine; delegates receive a copy and return proposed changes.
type CallSession struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`

	Lane          Lane `json:"lane"`
	BookingLocked bool `json:"booking_locked"`

	// TurnIndex is the index of the last committed turn.
	TurnIndex int `json:"turn_index"`

	// FlowID and StepIndex track booking progress once the lane is locked.
	FlowID    string `json:"flow_id,omitempty"`
	StepIndex int    `json:"step_index"`

	Slots map[string]SlotValue `json:"slots"`

	PendingConfirmation bool `json:"pending_confirmation"`

	// ConfirmingSlot is set while a single captured-but-unconfirmed value
	// is being read back to the caller per its confirmation policy.
	ConfirmingSlot string `json:"confirming_slot,omitempty"`

	// RewindCount accumulates confirmation-invariant rewinds; past the
	// tenant cap the call escalates to a human.
	RewindCount int `json:"rewind_count"`

	// LastSpoken is the owner's last valid response, used as the fallback
	// when a speaker collision discards a non-owner emission.
	LastSpoken string `json:"last_spoken,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewCallSession creates a fresh session in the discovery lane.
func NewCallSession(callID, tenantID string) *CallSession {
	now := time.Now().UTC()
	return &CallSession{
		ID:        callID,
		TenantID:  tenantID,
		Lane:      LaneDiscovery,
		Slots:     make(map[string]SlotValue),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy. Delegates operate on clones so that a faulting
// delegate cannot leave a half-applied session behind.
func (s *CallSession) Clone() *CallSession {
	cp := *s
	cp.Slots = make(map[string]SlotValue, len(s.Slots))
	for k, v := range s.Slots {
		cp.Slots[k] = v
	}
	return &cp
}

// Slot returns the stored value for name, if any.
func (s *CallSession) Slot(name string) (SlotValue, bool) {
	v, ok := s.Slots[name]
	return v, ok
}

// SetSlot stores a value. Callers must have validated it first; the session
// itself does not re-check predicates.
func (s *CallSession) SetSlot(name string, v SlotValue) {
	if s.Slots == nil {
		s.Slots = make(map[string]SlotValue)
	}
	s.Slots[name] = v
}

// ClearSlot removes a stored value (sanity sweep / rewind path).
func (s *CallSession) ClearSlot(name string) {
	delete(s.Slots, name)
}
