package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aretw0/switchboard/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// IdempotencyStore implements ports.IdempotencyStore, recording the committed
// response per (callID, turnIndex) so webhook redeliveries are replayed, not
// reprocessed.
type IdempotencyStore struct {
	client *backend.Client
	prefix string
}

// NewIdempotencyStore creates a Redis idempotency store.
func NewIdempotencyStore(client *backend.Client, prefix string) *IdempotencyStore {
	return &IdempotencyStore{
		client: client,
		prefix: prefix,
	}
}

func (s *IdempotencyStore) key(k string) string {
	return s.prefix + "turn:" + k
}

// Get returns the recorded response for the key.
func (s *IdempotencyStore) Get(ctx context.Context, key string) (*domain.TurnResponse, bool, error) {
	val, err := s.client.Get(ctx, s.key(key)).Result()
	if err != nil {
		if err == backend.Nil {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read idempotency record: %w", err)
	}

	var resp domain.TurnResponse
	if err := json.Unmarshal([]byte(val), &resp); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal idempotency record: %w", err)
	}
	return &resp, true, nil
}

// Put records the committed response with a bounded replay window.
func (s *IdempotencyStore) Put(ctx context.Context, key string, resp *domain.TurnResponse, ttl time.Duration) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to marshal idempotency record: %w", err)
	}
	if err := s.client.Set(ctx, s.key(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write idempotency record: %w", err)
	}
	return nil
}
