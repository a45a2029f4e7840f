package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/portico/internal/cache"
	"github.com/MrSnakeDoc/portico/internal/domain"
	"github.com/MrSnakeDoc/portico/internal/logger"
)

func newTestClient(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRevocationBusPropagatesToPeers(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	key := cache.Key("17|opaque")

	cacheA := cache.NewValidationCache()
	cacheB := cache.NewValidationCache()
	cacheA.Put(key, domain.Identity{ID: "17"}, time.Hour)
	cacheB.Put(key, domain.Identity{ID: "17"}, time.Hour)

	busA := NewRevocationBus(client, "gw-a", cacheA, logger.NewNop())
	busB := NewRevocationBus(client, "gw-b", cacheB, logger.NewNop())
	require.NoError(t, busA.Start(ctx))
	require.NoError(t, busB.Start(ctx))
	defer busA.Stop()
	defer busB.Stop()

	require.NoError(t, busA.Publish(ctx, key))

	assert.Eventually(t, func() bool {
		_, ok := cacheB.Get(key)
		return !ok
	}, 2*time.Second, 10*time.Millisecond)

	// The publisher ignores its own message.
	time.Sleep(50 * time.Millisecond)
	_, ok := cacheA.Get(key)
	assert.True(t, ok)
}

func TestRevocationBusIgnoresMalformedMessages(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	key := cache.Key("1|x")

	c := cache.NewValidationCache()
	c.Put(key, domain.Identity{ID: "1"}, time.Hour)

	bus := NewRevocationBus(client, "gw-a", c, logger.NewNop())
	require.NoError(t, bus.Start(ctx))
	defer bus.Stop()

	require.NoError(t, client.Publish(ctx, RevocationChannel(), "not json").Err())
	require.NoError(t, client.Publish(ctx, RevocationChannel(), `{"origin":"gw-b","key":""}`).Err())

	time.Sleep(50 * time.Millisecond)
	_, ok := c.Get(key)
	assert.True(t, ok)
}

func TestStorePing(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	s := NewStore(client)
	require.NoError(t, s.Ping(context.Background()))

	mr.Close()
	assert.Error(t, s.Ping(context.Background()))
}
