package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) *Redis {
	t.Helper()
	srv := miniredis.RunT(t)
	c, err := NewRedis(context.Background(), srv.Addr(), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestRedisRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newTestRedis(t)

	type payload struct {
		Revenue float64 `json:"revenue"`
	}

	var miss payload
	ok, err := c.GetJSON(ctx, "reports:total", &miss)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.SetJSON(ctx, "reports:total", payload{Revenue: 125000}, time.Minute))

	var got payload
	ok, err = c.GetJSON(ctx, "reports:total", &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 125000.0, got.Revenue)
}

func TestRedisInvalidatePrefix(t *testing.T) {
	ctx := context.Background()
	c := newTestRedis(t)

	require.NoError(t, c.SetJSON(ctx, "reports:total", 1, time.Minute))
	require.NoError(t, c.SetJSON(ctx, "reports:sales:2026-01-01:2026-01-31", 2, time.Minute))
	require.NoError(t, c.SetJSON(ctx, "session:abc", 3, time.Minute))

	require.NoError(t, c.InvalidatePrefix(ctx, "reports:"))

	var v int
	ok, err := c.GetJSON(ctx, "reports:total", &v)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = c.GetJSON(ctx, "session:abc", &v)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 3, v)
}

func TestKey(t *testing.T) {
	require.Equal(t, "reports:sales:2026-01-01:2026-01-31", Key("reports", "sales", "2026-01-01", "2026-01-31"))
	require.Equal(t, "reports:total", Key("reports", "total"))
}
