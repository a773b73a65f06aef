package redis_test

import (
	"context"
	"testing"
	"time"

	redisadapter "github.com/aretw0/switchboard/pkg/adapters/redis"
	"github.com/aretw0/switchboard/pkg/domain"
	"github.com/stretchr/testify/require"
)

func newSession(id string) *domain.CallSession {
	return domain.NewCallSession(id, "tenant-test")
}

func TestLocker_SerializesHolders(t *testing.T) {
	_, client := newTestClient(t)
	ctx := context.Background()

	locker := redisadapter.NewLocker(client, "test:")

	unlock, err := locker.Lock(ctx, "call-1", 5*time.Second)
	require.NoError(t, err)

	// Second acquisition must block until the first is released.
	blockedCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(blockedCtx, "call-1", 5*time.Second)
	require.Error(t, err, "second holder should not acquire while lease is held")

	require.NoError(t, unlock(ctx))

	unlock2, err := locker.Lock(ctx, "call-1", 5*time.Second)
	require.NoError(t, err, "lease should be free after unlock")
	require.NoError(t, unlock2(ctx))
}

func TestLocker_IndependentCalls(t *testing.T) {
	_, client := newTestClient(t)
	ctx := context.Background()

	locker := redisadapter.NewLocker(client, "test:")

	unlockA, err := locker.Lock(ctx, "call-a", 5*time.Second)
	require.NoError(t, err)
	defer func() { _ = unlockA(ctx) }()

	// A different call's lease is not contended.
	unlockB, err := locker.Lock(ctx, "call-b", 5*time.Second)
	require.NoError(t, err)
	require.NoError(t, unlockB(ctx))
}

func TestLocker_ExpiredLeaseNotReleasedByOldHolder(t *testing.T) {
	mr, client := newTestClient(t)
	ctx := context.Background()

	locker := redisadapter.NewLocker(client, "test:")

	unlockOld, err := locker.Lock(ctx, "call-1", time.Second)
	require.NoError(t, err)

	// Lease expires; a new holder takes over.
	mr.FastForward(2 * time.Second)

	unlockNew, err := locker.Lock(ctx, "call-1", 5*time.Second)
	require.NoError(t, err)

	// Old holder's unlock is a no-op thanks to the value check.
	require.NoError(t, unlockOld(ctx))

	blockedCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(blockedCtx, "call-1", 5*time.Second)
	require.Error(t, err, "new holder's lease must survive the stale unlock")

	require.NoError(t, unlockNew(ctx))
}
