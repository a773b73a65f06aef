package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a held call lease.
type UnlockFunc func(ctx context.Context) error

// CallLocker serializes turn processing per call across replicas. A turn is
// only processed while holding the call's lease, which guarantees that the
// session read for turn N reflects the committed write of turn N-1.
type CallLocker interface {
	// Lock acquires the lease for the given call ID. It blocks until the
	// lease is acquired or the context is canceled. The returned UnlockFunc
	// MUST be called after the turn's state is committed.
	Lock(ctx context.Context, callID string, ttl time.Duration) (UnlockFunc, error)
}
