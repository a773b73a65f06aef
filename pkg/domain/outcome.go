package domain

// OutcomeKind classifies the result of a proposed slot write or a validation
// pass. Rewinds are ordinary values handled by control flow, never panics.
type OutcomeKind int

const (
	OutcomeAccepted OutcomeKind = iota
	OutcomeRejected
	OutcomeRewind
)

// RejectReason is a stable machine-readable validation failure code.
type RejectReason string

const (
	RejectEmpty            RejectReason = "empty_value"
	RejectNotPhone         RejectReason = "not_a_phone"
	RejectNotAddress       RejectReason = "not_an_address"
	RejectNotTemporal      RejectReason = "not_temporal"
	RejectNotNumeric       RejectReason = "not_numeric"
	RejectStreetSuffix     RejectReason = "contains_street_suffix"
	RejectContainsAddress  RejectReason = "contains_address_tokens"
	RejectBareNumber       RejectReason = "bare_number_too_long"
	RejectStepGate         RejectReason = "not_active_step"
	RejectUnknownSlot      RejectReason = "unknown_slot"
	RejectTooLong          RejectReason = "value_too_long"
	RejectConfirmDeclined  RejectReason = "confirmation_declined"
	RejectFlowNotConfirmed RejectReason = "flow_not_confirmed"
)

// WriteOutcome is the explicit result value of the validation pipeline.
type WriteOutcome struct {
	Kind   OutcomeKind
	Reason RejectReason
	// ToStep is set for rewinds: the step index to re-collect.
	ToStep int
}

// Accepted builds a success outcome.
func Accepted() WriteOutcome {
	return WriteOutcome{Kind: OutcomeAccepted}
}

// Rejected builds a rejection with a reason code.
func Rejected(reason RejectReason) WriteOutcome {
	return WriteOutcome{Kind: OutcomeRejected, Reason: reason}
}

// RewindTo builds a rewind outcome targeting a step.
func RewindTo(step int, reason RejectReason) WriteOutcome {
	return WriteOutcome{Kind: OutcomeRewind, Reason: reason, ToStep: step}
}

// OK reports whether the outcome is an acceptance.
func (o WriteOutcome) OK() bool {
	return o.Kind == OutcomeAccepted
}
