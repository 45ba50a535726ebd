package schemacache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, ttl time.Duration, size int) Client {
	t.Helper()
	c, err := New(Config{Driver: "memory", TTL: ttl, Size: size})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCache_SetGet(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, time.Minute, 16)

	_, ok := c.Get(ctx, "acme")
	require.False(t, ok)

	c.Set(ctx, "acme", true)
	exists, ok := c.Get(ctx, "acme")
	require.True(t, ok)
	require.True(t, exists)

	// Set sobrescribe atómicamente.
	c.Set(ctx, "acme", false)
	exists, ok = c.Get(ctx, "acme")
	require.True(t, ok)
	require.False(t, exists)
}

func TestCache_TTLExpiryIsAMiss(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, 50*time.Millisecond, 16)

	c.Set(ctx, "acme", true)
	exists, ok := c.Get(ctx, "acme")
	require.True(t, ok)
	require.True(t, exists)

	time.Sleep(80 * time.Millisecond)

	_, ok = c.Get(ctx, "acme")
	require.False(t, ok, "expired entry must behave as a miss, never be served")
}

func TestCache_Invalidate(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, time.Minute, 16)

	c.Set(ctx, "acme", false)
	c.Invalidate(ctx, "acme")

	_, ok := c.Get(ctx, "acme")
	require.False(t, ok)
}

func TestCache_BoundedSizeEvictsByRecency(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, time.Minute, 8)

	for i := 0; i < 64; i++ {
		c.Set(ctx, fmt.Sprintf("tenant_%02d", i), true)
	}

	// El más reciente sobrevive; los más viejos fueron expulsados.
	_, ok := c.Get(ctx, "tenant_63")
	require.True(t, ok)
	_, ok = c.Get(ctx, "tenant_00")
	require.False(t, ok)
}

func TestCache_StatsTracksActivity(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, time.Minute, 16)

	c.Set(ctx, "acme", true)
	c.Get(ctx, "acme")
	c.Get(ctx, "ghost")

	s := c.Stats()
	require.Equal(t, "memory", s.Driver)
	require.Equal(t, 1, s.Entries)
	require.Equal(t, uint64(1), s.Hits)
	require.Equal(t, uint64(1), s.Misses)
}

func TestNew_UnsupportedDriver(t *testing.T) {
	_, err := New(Config{Driver: "memcached"})
	require.Error(t, err)
}
