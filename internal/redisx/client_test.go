package redisx

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests need a live Redis; set REDIS_TEST_ADDR to run them.
func testClient(t *testing.T) Idempotency {
	t.Helper()
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	rdb := New(addr)
	t.Cleanup(func() { _ = rdb.Close() })
	require.NoError(t, rdb.Ping(context.Background()).Err())
	return Idempotency{R: rdb}
}

func TestIdempotencyClaimThenReplay(t *testing.T) {
	idem := testClient(t)
	ctx := context.Background()
	key := uuid.NewString()

	_, claimed, err := idem.Begin(ctx, "/orders", key)
	require.NoError(t, err)
	assert.True(t, claimed)

	b, claimed, err := idem.Begin(ctx, "/orders", key)
	require.NoError(t, err)
	assert.False(t, claimed, "second caller must not run the command")
	assert.Nil(t, b, "still running")

	require.NoError(t, idem.Complete(ctx, "/orders", key, []byte(`{"id":"ORD-2026-000001"}`)))
	b, claimed, err = idem.Begin(ctx, "/orders", key)
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.JSONEq(t, `{"id":"ORD-2026-000001"}`, string(b))

	other := uuid.NewString()
	_, _, _ = idem.Begin(ctx, "/orders", other)
	require.NoError(t, idem.Release(ctx, "/orders", other))
	_, claimed, err = idem.Begin(ctx, "/orders", other)
	require.NoError(t, err)
	assert.True(t, claimed, "released key can be claimed again")
}

func TestStatusCacheKeepsNewest(t *testing.T) {
	cache := StatusCache{R: testClient(t).R}
	ctx := context.Background()
	id := uuid.NewString()

	t1 := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Minute)
	require.NoError(t, cache.Put(ctx, id, "DELIVERED", t2))
	require.NoError(t, cache.Put(ctx, id, "DISPATCHED", t1))

	cs, ok, err := cache.Get(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "DELIVERED", cs.Status)
	assert.True(t, t2.Equal(cs.UpdatedAt))
}

func TestStatusCacheAndDedup(t *testing.T) {
	rdb := testClient(t).R
	ctx := context.Background()
	id := uuid.NewString()

	cache := StatusCache{R: rdb}
	_, ok, err := cache.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)

	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	require.NoError(t, cache.Put(ctx, id, "DISPATCHED", at))
	cs, ok, err := cache.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "DISPATCHED", cs.Status)
	assert.True(t, at.Equal(cs.UpdatedAt))

	d := Dedup{R: rdb, Service: "test"}
	first, err := d.FirstSeen(ctx, id)
	require.NoError(t, err)
	assert.True(t, first)
	first, err = d.FirstSeen(ctx, id)
	require.NoError(t, err)
	assert.False(t, first)
	require.NoError(t, d.Forget(ctx, id))
	first, _ = d.FirstSeen(ctx, id)
	assert.True(t, first)

	ok, err = Exists(ctx, rdb, "dedup:test:"+id)
	require.NoError(t, err)
	assert.True(t, ok)
}
