package idempotency

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStore(client, time.Hour), mr
}

func TestReserveCompleteReplay(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	result, replay, err := store.Reserve(ctx, "user-1", "abc")
	require.NoError(t, err)
	assert.False(t, replay)
	assert.Empty(t, result)

	_, _, err = store.Reserve(ctx, "user-1", "abc")
	assert.ErrorIs(t, err, ErrInFlight)

	require.NoError(t, store.Complete(ctx, "user-1", "abc", "order-42"))

	result, replay, err = store.Reserve(ctx, "user-1", "abc")
	require.NoError(t, err)
	assert.True(t, replay)
	assert.Equal(t, "order-42", result)
}

func TestReserveIsScoped(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, _, err := store.Reserve(ctx, "user-1", "same")
	require.NoError(t, err)
	_, replay, err := store.Reserve(ctx, "user-2", "same")
	require.NoError(t, err)
	assert.False(t, replay)
}

func TestReleaseAllowsRetry(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, _, err := store.Reserve(ctx, "u", "k")
	require.NoError(t, err)
	require.NoError(t, store.Release(ctx, "u", "k"))

	_, replay, err := store.Reserve(ctx, "u", "k")
	require.NoError(t, err)
	assert.False(t, replay)
}

func TestReservationExpires(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	_, _, err := store.Reserve(ctx, "u", "k")
	require.NoError(t, err)
	mr.FastForward(2 * time.Hour)

	_, replay, err := store.Reserve(ctx, "u", "k")
	require.NoError(t, err)
	assert.False(t, replay)
}

func TestReserveReportsRedisFailure(t *testing.T) {
	store, mr := newTestStore(t)
	mr.Close()

	_, _, err := store.Reserve(context.Background(), "u", "k")
	assert.Error(t, err)
}

func TestKeyTrimsHeader(t *testing.T) {
	req := httptest.NewRequest("POST", "/orders", nil)
	req.Header.Set(Header, "  key-1 ")
	assert.Equal(t, "key-1", Key(req))
}
