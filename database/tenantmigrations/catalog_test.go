package tenantmigrations

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCatalogIsWellFormed(t *testing.T) {
	t.Parallel()

	catalog := Catalog()
	require.NotEmpty(t, catalog)

	seen := make(map[string]struct{}, len(catalog))
	var prev int64
	for _, m := range catalog {
		require.NotNil(t, m.Up, "migration %s has no Up", m.Name)

		ts, ok := m.Timestamp()
		require.True(t, ok, "migration %s has no trailing timestamp", m.Name)
		require.Greater(t, ts, prev, "migration %s is out of order", m.Name)
		prev = ts

		_, dup := seen[m.Name]
		require.False(t, dup, "duplicate migration name %s", m.Name)
		seen[m.Name] = struct{}{}
	}
}

func TestCatalogReturnsFreshSlice(t *testing.T) {
	t.Parallel()

	a := Catalog()
	b := Catalog()
	require.Equal(t, len(a), len(b))

	// Mutating one caller's copy must not affect another's.
	a[0].Name = "tampered"
	require.NotEqual(t, a[0].Name, b[0].Name)
}
