package persistence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clinica-io/clinica-backend/platform/go/tenant"
)

func TestResolverRequiresTenantSelection(t *testing.T) {
	t.Parallel()

	dialer := newCountingDialer()
	resolver := NewResolver(newTestRegistry(t, dialer.dial))

	_, err := resolver.Tenant(context.Background())
	require.ErrorIs(t, err, ErrNoTenantSelected)
	require.Zero(t, dialer.count("clinic_a"))
}

func TestResolverRoutesToSelectedClinic(t *testing.T) {
	t.Parallel()

	dialer := newCountingDialer()
	resolver := NewResolver(newTestRegistry(t, dialer.dial))

	ctxA := tenant.WithClinic(context.Background(), tenant.Clinic{ID: 1, DatabaseName: "clinic_a"})
	ctxB := tenant.WithClinic(context.Background(), tenant.Clinic{ID: 2, DatabaseName: "clinic_b"})

	_, err := resolver.Tenant(ctxA)
	require.NoError(t, err)
	_, err = resolver.Tenant(ctxB)
	require.NoError(t, err)

	// Each selection dials its own database, nothing else.
	require.Equal(t, 1, dialer.count("clinic_a"))
	require.Equal(t, 1, dialer.count("clinic_b"))

	// Repeat requests for the same clinic reuse the cached pool.
	_, err = resolver.Tenant(ctxA)
	require.NoError(t, err)
	require.Equal(t, 1, dialer.count("clinic_a"))
}
