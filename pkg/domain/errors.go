package domain

import "errors"

// ErrSessionNotFound is returned when a call ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrTenantNotFound is returned when no configuration exists for a tenant.
var ErrTenantNotFound = errors.New("tenant configuration not found")

// ErrFlowNotFound is returned when a session references an unknown flow.
var ErrFlowNotFound = errors.New("booking flow not found")

// ErrBudgetExceeded marks the daily LLM spend cap being reached. It is a
// local condition: the cascade falls back, it never surfaces to the caller.
var ErrBudgetExceeded = errors.New("daily llm budget exceeded")

// ErrLeaseHeld is returned when the per-call ordering lease cannot be
// acquired before the context deadline.
var ErrLeaseHeld = errors.New("call lease held by another worker")

// Inbound contract violations.
var (
	ErrMissingCallID   = errors.New("missing call id")
	ErrMissingTenantID = errors.New("missing tenant id")
	ErrBadTurnIndex    = errors.New("turn index must be >= 1")
)
