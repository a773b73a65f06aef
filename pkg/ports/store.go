package ports

import (
	"context"

	"github.com/aretw0/switchboard/pkg/domain"
)

// SessionStore persists one record per active call.
type SessionStore interface {
	// Save persists the session for a given call ID.
	Save(ctx context.Context, callID string, session *domain.CallSession) error

	// Load retrieves the session for a given call ID.
	// Returns domain.ErrSessionNotFound if the call does not exist.
	Load(ctx context.Context, callID string) (*domain.CallSession, error)

	// Delete removes the session for a given call ID.
	Delete(ctx context.Context, callID string) error
}

// SessionLister is implemented by stores that can enumerate active calls.
type SessionLister interface {
	List(ctx context.Context) ([]string, error)
}
