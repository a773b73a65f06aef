package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aretw0/switchboard/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// Store implements ports.SessionStore using Redis.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type StoreOption func(*Store)

// WithTTL sets the idle expiration for call sessions.
func WithTTL(ttl time.Duration) StoreOption {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix for call sessions.
func WithPrefix(prefix string) StoreOption {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// NewStore creates a Redis session store from an existing client.
func NewStore(client *backend.Client, opts ...StoreOption) *Store {
	store := &Store{
		client: client,
		prefix: "switchboard:call:",
		ttl:    4 * time.Hour, // idle calls expire
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

func (s *Store) key(callID string) string {
	return s.prefix + callID
}

func (s *Store) indexKey() string {
	return s.prefix + "index"
}

// Save persists the session to Redis.
func (s *Store) Save(ctx context.Context, callID string, session *domain.CallSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	pipe := s.client.Pipeline()

	pipe.Set(ctx, s.key(callID), data, s.ttl)

	// Index (ZSET): score = expiry time, used for lazy cleanup on List.
	score := float64(time.Now().Add(s.ttl).Unix())
	if s.ttl == 0 {
		score = 4102444800 // 2100-01-01
	}
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{
		Score:  score,
		Member: callID,
	})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}

	return nil
}

// Load retrieves the session from Redis.
func (s *Store) Load(ctx context.Context, callID string) (*domain.CallSession, error) {
	val, err := s.client.Get(ctx, s.key(callID)).Result()
	if err != nil {
		if err == backend.Nil {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var session domain.CallSession
	if err := json.Unmarshal([]byte(val), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	return &session, nil
}

// Delete removes the call session.
func (s *Store) Delete(ctx context.Context, callID string) error {
	pipe := s.client.Pipeline()

	pipe.Del(ctx, s.key(callID))
	pipe.ZRem(ctx, s.indexKey(), callID)

	_, err := pipe.Exec(ctx)
	return err
}

// List returns active call IDs, pruning expired index entries first.
func (s *Store) List(ctx context.Context) ([]string, error) {
	now := float64(time.Now().Unix())

	err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", fmt.Sprintf("%f", now)).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to prune expired calls: %w", err)
	}

	calls, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list calls: %w", err)
	}

	return calls, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
