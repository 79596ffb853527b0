package provisioning

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinica-io/clinica-backend/platform/go/migrate"
)

// DBProvisioner creates per-clinic databases and applies the migration
// catalog. Implements the clinic service's DBProvisioner port.
type DBProvisioner struct {
	controlPool *pgxpool.Pool
	runner      *migrate.Runner
}

// NewDBProvisioner constructs a provisioner over the control-plane pool and
// the shared migration runner.
func NewDBProvisioner(controlPool *pgxpool.Pool, runner *migrate.Runner) *DBProvisioner {
	if controlPool == nil {
		panic("db provisioner requires control-plane pool")
	}
	if runner == nil {
		panic("db provisioner requires migration runner")
	}
	return &DBProvisioner{controlPool: controlPool, runner: runner}
}

// CreateDatabase creates the physical database when missing. databaseName
// must already be sanitized; CREATE DATABASE cannot be parameterized, so the
// identifier is additionally quoted through pgx. Runs outside a transaction
// because PostgreSQL forbids CREATE DATABASE inside one.
func (p *DBProvisioner) CreateDatabase(ctx context.Context, databaseName string) error {
	var exists bool
	if err := p.controlPool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)`, databaseName).Scan(&exists); err != nil {
		return fmt.Errorf("probe database: %w", err)
	}
	if exists {
		return nil
	}

	if _, err := p.controlPool.Exec(ctx,
		"CREATE DATABASE "+pgx.Identifier{databaseName}.Sanitize()); err != nil {
		return fmt.Errorf("create database: %w", err)
	}
	return nil
}

// Migrate brings the clinic database's schema up to the head of the catalog.
func (p *DBProvisioner) Migrate(ctx context.Context, databaseName string) (int, error) {
	return p.runner.Run(ctx, databaseName)
}
