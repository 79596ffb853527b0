package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SQLSTATE classes used to split "no such database" from plain unreachability.
const (
	codeInvalidCatalogName   = "3D000"
	codeInvalidAuthorization = "28000"
	codeInvalidPassword      = "28P01"
)

// Dialer opens and verifies a pooled connection to one tenant database,
// identified by its sanitized name. Implementations must return a pool that
// has already proven reachable, or a typed error (ErrDatabaseNotFound /
// ErrDatabaseUnreachable).
type Dialer func(ctx context.Context, databaseName string) (*pgxpool.Pool, error)

// TenantPoolConfig carries the per-tenant pool knobs applied on every dial.
type TenantPoolConfig struct {
	MaxConns        int32
	MinConns        int32
	MaxConnIdleTime time.Duration // zero leaves the pgxpool default
}

// NewPgxDialer builds a Dialer that rewrites the database of a base DSN.
// The base DSN points at the control-plane server; only the database name
// changes per tenant, so credentials and TLS settings stay uniform.
func NewPgxDialer(baseConnString string, cfg TenantPoolConfig) (Dialer, error) {
	if baseConnString == "" {
		return nil, fmt.Errorf("base conn string is required")
	}
	// Validate eagerly so a malformed DSN fails at startup, not per request.
	if _, err := pgxpool.ParseConfig(baseConnString); err != nil {
		return nil, fmt.Errorf("parse base conn string: %w", err)
	}

	return func(ctx context.Context, databaseName string) (*pgxpool.Pool, error) {
		poolConfig, err := pgxpool.ParseConfig(baseConnString)
		if err != nil {
			return nil, fmt.Errorf("parse base conn string: %w", err)
		}
		poolConfig.ConnConfig.Database = databaseName
		if cfg.MaxConns > 0 {
			poolConfig.MaxConns = cfg.MaxConns
		}
		if cfg.MinConns > 0 {
			poolConfig.MinConns = cfg.MinConns
		}
		if cfg.MaxConnIdleTime > 0 {
			poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
		}

		pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			return nil, classifyDialError(databaseName, err)
		}

		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, classifyDialError(databaseName, err)
		}

		return pool, nil
	}, nil
}

// classifyDialError folds a raw pgx failure into the routing error taxonomy.
func classifyDialError(databaseName string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeInvalidCatalogName:
			return fmt.Errorf("%w: %s: %s", ErrDatabaseNotFound, databaseName, pgErr.Message)
		case codeInvalidAuthorization, codeInvalidPassword:
			// Bad credentials read as unreachable to the caller; the operator
			// log keeps the SQLSTATE for diagnosis.
			return fmt.Errorf("%w: %s: SQLSTATE %s", ErrDatabaseUnreachable, databaseName, pgErr.Code)
		}
	}
	return fmt.Errorf("%w: %s: %v", ErrDatabaseUnreachable, databaseName, err)
}
