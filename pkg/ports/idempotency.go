package ports

import (
	"context"
	"time"

	"github.com/aretw0/switchboard/pkg/domain"
)

// IdempotencyStore records the committed response per (callID, turnIndex) so
// that webhook redeliveries replay the recorded response instead of
// re-advancing the flow or double-charging the budget.
type IdempotencyStore interface {
	// Get returns the recorded response for the key, or ok=false when the
	// turn has not been processed.
	Get(ctx context.Context, key string) (resp *domain.TurnResponse, ok bool, err error)

	// Put records the committed response. TTL bounds the replay window.
	Put(ctx context.Context, key string, resp *domain.TurnResponse, ttl time.Duration) error
}
