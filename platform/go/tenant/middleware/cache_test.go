package middleware

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/clinica-io/clinica-backend/platform/go/tenant"
)

func TestMemoryRouteCacheExpires(t *testing.T) {
	t.Parallel()

	cache := NewMemoryRouteCache(20 * time.Millisecond)
	ctx := context.Background()

	_, ok := cache.Get(ctx, 1)
	require.False(t, ok)

	cache.Put(ctx, 1, tenant.Route{DatabaseName: "clinic_a", Active: true})

	route, ok := cache.Get(ctx, 1)
	require.True(t, ok)
	require.Equal(t, "clinic_a", route.DatabaseName)

	time.Sleep(30 * time.Millisecond)

	_, ok = cache.Get(ctx, 1)
	require.False(t, ok)
}

func TestMemoryRouteCacheOverwrite(t *testing.T) {
	t.Parallel()

	cache := NewMemoryRouteCache(time.Minute)
	ctx := context.Background()

	cache.Put(ctx, 1, tenant.Route{DatabaseName: "clinic_a", Active: true})
	cache.Put(ctx, 1, tenant.Route{DatabaseName: "clinic_a", Active: false})

	route, ok := cache.Get(ctx, 1)
	require.True(t, ok)
	require.False(t, route.Active)
}
