package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/switchboard/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// ErrLockAcquire is returned when the call lease cannot be acquired.
var ErrLockAcquire = errors.New("failed to acquire call lease")

// Locker implements ports.CallLocker using Redis SET NX PX. It serializes
// turn processing per call across replicas.
type Locker struct {
	client *backend.Client
	prefix string
	retry  time.Duration
}

// NewLocker creates a new Redis call locker.
func NewLocker(client *backend.Client, prefix string) *Locker {
	return &Locker{
		client: client,
		prefix: prefix,
		retry:  50 * time.Millisecond,
	}
}

// Lock acquires the lease for the given call ID. The lease value is checked
// on unlock via a Lua script so an expired lease is never released by a
// later holder.
func (l *Locker) Lock(ctx context.Context, callID string, ttl time.Duration) (ports.UnlockFunc, error) {
	lockKey := l.prefix + "lease:" + callID
	val := fmt.Sprintf("%d", time.Now().UnixNano())

	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()

	for {
		// Try immediately, then poll.
		success, err := l.client.SetNX(ctx, lockKey, val, ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis error acquiring lease: %w", err)
		}
		if success {
			return func(ctx context.Context) error {
				script := `
					if redis.call("get", KEYS[1]) == ARGV[1] then
						return redis.call("del", KEYS[1])
					else
						return 0
					end
				`
				return l.client.Eval(ctx, script, []string{lockKey}, val).Err()
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s", ErrLockAcquire, ctx.Err())
		case <-ticker.C:
		}
	}
}
