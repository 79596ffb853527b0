package migrate

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinica-io/clinica-backend/platform/go/persistence"
)

// The ledger lives in a table named "migrations" inside each tenant database.
const ledgerDDL = `
CREATE TABLE IF NOT EXISTS migrations (
	id serial PRIMARY KEY,
	"timestamp" bigint NOT NULL UNIQUE,
	name varchar(255) NOT NULL UNIQUE
)`

// pgStore implements Store over one tenant pool.
type pgStore struct {
	pool         *pgxpool.Pool
	databaseName string
}

// NewPgStore wraps a verified tenant pool as a ledger store.
func NewPgStore(pool *pgxpool.Pool, databaseName string) Store {
	if pool == nil {
		panic("pg store requires a pool")
	}
	return &pgStore{pool: pool, databaseName: databaseName}
}

// NewStoreOpener resolves tenant pools through the shared registry, so the
// migration path and the request path use the same cached connections.
func NewStoreOpener(registry *persistence.Registry) StoreOpener {
	if registry == nil {
		panic("store opener requires a registry")
	}
	return func(ctx context.Context, databaseName string) (Store, error) {
		pool, err := registry.GetOrCreate(ctx, databaseName)
		if err != nil {
			return nil, err
		}
		return NewPgStore(pool, databaseName), nil
	}
}

// Lock takes a session advisory lock scoped to this database's migration run,
// held on a dedicated connection until release. Blocks until the holder
// finishes, serializing runs across processes.
func (s *pgStore) Lock(ctx context.Context) (func(), error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire conn: %w", err)
	}

	key := advisoryLockKey(s.databaseName)
	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", key); err != nil {
		conn.Release()
		return nil, fmt.Errorf("advisory lock: %w", err)
	}

	release := func() {
		// Best effort; releasing the connection drops the session lock anyway.
		_, _ = conn.Exec(context.WithoutCancel(ctx), "SELECT pg_advisory_unlock($1)", key)
		conn.Release()
	}
	return release, nil
}

func (s *pgStore) EnsureLedger(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, ledgerDDL); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}
	return nil
}

func (s *pgStore) AppliedTimestamps(ctx context.Context) (map[int64]struct{}, error) {
	rows, err := s.pool.Query(ctx, `SELECT "timestamp" FROM migrations`)
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	defer rows.Close()

	applied := make(map[int64]struct{})
	for rows.Next() {
		var ts int64
		if err := rows.Scan(&ts); err != nil {
			return nil, fmt.Errorf("scan ledger row: %w", err)
		}
		applied[ts] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger: %w", err)
	}
	return applied, nil
}

// Apply runs the migration and records it in one transaction, so a crash
// mid-apply leaves no ledger row.
func (s *pgStore) Apply(ctx context.Context, m Migration, ts int64) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if err := m.Up(ctx, tx); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO migrations ("timestamp", name) VALUES ($1, $2)`, ts, m.Name); err != nil {
		return fmt.Errorf("record ledger row: %w", err)
	}

	return tx.Commit(ctx)
}

// advisoryLockKey hashes the database name into the 64-bit advisory lock
// space, namespaced so unrelated tooling on the same server cannot collide.
func advisoryLockKey(databaseName string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte("clinica:migrations:" + databaseName))
	return int64(h.Sum64())
}
