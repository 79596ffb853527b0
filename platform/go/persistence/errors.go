package persistence

import "errors"

// Failure classes surfaced by the tenant routing layer. The access guard maps
// these onto HTTP statuses; administrative tooling prints them verbatim.
var (
	// ErrDatabaseNotFound means the sanitized identifier is valid but no such
	// database exists on the server. Permanent for the given identifier.
	ErrDatabaseNotFound = errors.New("tenant database not found")

	// ErrDatabaseUnreachable means the database server could not be reached or
	// refused the connection. Transient; safe to retry.
	ErrDatabaseUnreachable = errors.New("tenant database unreachable")

	// ErrNoTenantSelected means a tenant-scoped data access was attempted on a
	// request that never passed the access guard. A wiring bug, not a
	// connectivity failure.
	ErrNoTenantSelected = errors.New("no tenant selected on request context")
)
