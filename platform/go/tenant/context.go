package tenant

import (
	"context"
)

// Clinic captures the resolved tenant routing metadata for a request.
// It is attached to the context by the access guard once the clinic has been
// resolved from the request and its database connection verified.
type Clinic struct {
	ID           int64
	DatabaseName string
}

type ctxKey string

const clinicKey ctxKey = "CLINICA_TENANT_CLINIC"

// WithClinic returns a derived context carrying the clinic selection.
// A clinic without a database name is not a valid selection; the call is a
// no-op in that case rather than clearing a previously attached value.
func WithClinic(ctx context.Context, c Clinic) context.Context {
	if c.DatabaseName == "" {
		return ctx
	}
	return context.WithValue(ctx, clinicKey, c)
}

// FromContext extracts the clinic selection and a boolean indicating presence.
func FromContext(ctx context.Context) (Clinic, bool) {
	v := ctx.Value(clinicKey)
	if v == nil {
		return Clinic{}, false
	}

	c, ok := v.(Clinic)
	return c, ok
}

// IsTenantScope reports whether the request is executing against a clinic
// database rather than the control plane.
func IsTenantScope(ctx context.Context) bool {
	_, ok := FromContext(ctx)
	return ok
}
