package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redisadapter "github.com/aretw0/switchboard/pkg/adapters/redis"
	"github.com/aretw0/switchboard/pkg/ports/tests"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err, "failed to start miniredis")
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { _ = client.Close() })

	return mr, client
}

func TestRedisStore_Contract(t *testing.T) {
	_, client := newTestClient(t)

	store := redisadapter.NewStore(client)
	tests.SessionStoreContractTest(t, store)
}

func TestRedisStore_TTLExpiry(t *testing.T) {
	mr, client := newTestClient(t)
	ctx := context.Background()

	store := redisadapter.NewStore(client, redisadapter.WithTTL(time.Minute))

	sess := newSession("call-ttl")
	require.NoError(t, store.Save(ctx, "call-ttl", sess))

	// Fast-forward past the idle TTL.
	mr.FastForward(2 * time.Minute)

	_, err := store.Load(ctx, "call-ttl")
	require.Error(t, err)
}

func TestRedisStore_List(t *testing.T) {
	_, client := newTestClient(t)
	ctx := context.Background()

	store := redisadapter.NewStore(client, redisadapter.WithPrefix("test:call:"))

	require.NoError(t, store.Save(ctx, "a", newSession("a")))
	require.NoError(t, store.Save(ctx, "b", newSession("b")))

	calls, err := store.List(ctx)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"a", "b"}, calls)

	require.NoError(t, store.Delete(ctx, "a"))

	calls, err = store.List(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"b"}, calls)
}
