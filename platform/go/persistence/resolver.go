package persistence

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinica-io/clinica-backend/platform/go/tenant"
)

// Resolver hands domain repositories the pool bound to the clinic selected on
// the request context. It is a thin, repeatable lookup; all caching lives in
// the Registry.
type Resolver struct {
	registry *Registry
}

// NewResolver constructs a Resolver over the shared registry.
func NewResolver(registry *Registry) *Resolver {
	if registry == nil {
		panic("resolver requires a registry")
	}
	return &Resolver{registry: registry}
}

// Tenant returns the pool for the clinic on ctx. ErrNoTenantSelected when the
// request never passed the access guard; registry errors propagate typed.
func (r *Resolver) Tenant(ctx context.Context) (*pgxpool.Pool, error) {
	c, ok := tenant.FromContext(ctx)
	if !ok {
		return nil, ErrNoTenantSelected
	}
	return r.registry.GetOrCreate(ctx, c.DatabaseName)
}
