package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheGetSetRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newMemoryCache("ns:", 10)

	_, ok := c.Get(ctx, "k")
	require.False(t, ok)

	c.Set(ctx, "k", []byte("v1"), time.Minute)
	val, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "v1", string(val))

	c.Set(ctx, "k", []byte("v2"), time.Minute)
	val, ok = c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "v2", string(val), "last writer wins")
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c := newMemoryCache("ns:", 10)

	c.Set(ctx, "k", []byte("v"), -time.Second)
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Size(ctx), "expired entry is removed on touch")
}

func TestMemoryCacheMaxSizeEvictsEarliestExpiring(t *testing.T) {
	ctx := context.Background()
	c := newMemoryCache("ns:", 2)

	c.Set(ctx, "a", []byte("a"), 10*time.Millisecond)
	c.Set(ctx, "b", []byte("b"), time.Hour)
	c.Set(ctx, "c", []byte("c"), time.Hour)

	assert.LessOrEqual(t, c.Size(ctx), 2)
	_, aPresent := c.Get(ctx, "a")
	assert.False(t, aPresent, "entry with earliest expiry should have been evicted")
}

func TestMemoryCacheDeleteAndClear(t *testing.T) {
	ctx := context.Background()
	c := newMemoryCache("ns:", 10)
	c.Set(ctx, "a", []byte("1"), time.Minute)
	c.Set(ctx, "b", []byte("2"), time.Minute)

	c.Delete(ctx, "a")
	_, ok := c.Get(ctx, "a")
	assert.False(t, ok)

	c.Clear(ctx)
	assert.Equal(t, 0, c.Size(ctx))
}

func TestHandleReturnsSameInstancePerNamespace(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	h1 := Handle("session", Namespace{KeyPrefix: "session:", MaxEntries: 10})
	h2 := Handle("session", Namespace{KeyPrefix: "session:", MaxEntries: 10})
	assert.Same(t, h1, h2)
}

func TestHandleFallsBackWhenRedisUnreachable(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	h := Handle("price", Namespace{RedisURL: "redis://127.0.0.1:1", KeyPrefix: "price:", MaxEntries: 10})
	_, isMemory := h.(*memoryCache)
	assert.True(t, isMemory, "unreachable redis must fall back to the in-process backend")
}
