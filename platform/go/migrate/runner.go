package migrate

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/clinica-io/clinica-backend/platform/go/metrics"
)

// Store is the ledger of one tenant database. Apply must run the migration
// body and record the ledger row in a single transaction: a row exists if and
// only if the migration fully applied.
type Store interface {
	// Lock takes an exclusive cross-process lock for the whole run and
	// returns its release func.
	Lock(ctx context.Context) (release func(), err error)
	// EnsureLedger creates the ledger table if absent. Idempotent.
	EnsureLedger(ctx context.Context) error
	// AppliedTimestamps returns the set of recorded migration timestamps.
	AppliedTimestamps(ctx context.Context) (map[int64]struct{}, error)
	// Apply executes m.Up and records (ts, m.Name) atomically.
	Apply(ctx context.Context, m Migration, ts int64) error
}

// StoreOpener yields the ledger store for a sanitized database name,
// establishing connectivity on the way.
type StoreOpener func(ctx context.Context, databaseName string) (Store, error)

// AbortError reports the migration that stopped a run. Migrations recorded
// before it stay recorded; the tenant is not fully migrated until a later run
// gets past it.
type AbortError struct {
	Migration string
	Err       error
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("migration %s aborted: %v", e.Migration, e.Err)
}

func (e *AbortError) Unwrap() error { return e.Err }

// Runner applies the ordered migration catalog to tenant databases, exactly
// once each per database, fail-fast. Runs for one database are serialized by
// an in-process keyed mutex plus the store's cross-process lock; distinct
// databases migrate concurrently.
type Runner struct {
	open    StoreOpener
	catalog []Migration
	logger  *zap.Logger
	metrics *metrics.RoutingMetrics

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// RunnerConfig wires the runner dependencies.
type RunnerConfig struct {
	Open    StoreOpener
	Catalog []Migration
	Logger  *zap.Logger
	Metrics *metrics.RoutingMetrics // optional
}

// NewRunner constructs a Runner over a static catalog.
func NewRunner(cfg RunnerConfig) *Runner {
	if cfg.Open == nil {
		panic("runner requires a store opener")
	}
	if cfg.Logger == nil {
		panic("runner requires a logger")
	}

	return &Runner{
		open:    cfg.Open,
		catalog: cfg.Catalog,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		locks:   make(map[string]*sync.Mutex),
	}
}

// Run brings databaseName up to the head of the catalog. It returns the
// number of migrations applied in this run; on failure the count covers the
// migrations recorded before the aborting one.
func (r *Runner) Run(ctx context.Context, databaseName string) (int, error) {
	lock := r.lockFor(databaseName)
	lock.Lock()
	defer lock.Unlock()

	store, err := r.open(ctx, databaseName)
	if err != nil {
		return 0, err
	}

	release, err := store.Lock(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire migration lock for %s: %w", databaseName, err)
	}
	defer release()

	if err := store.EnsureLedger(ctx); err != nil {
		return 0, fmt.Errorf("ensure ledger for %s: %w", databaseName, err)
	}

	applied, err := store.AppliedTimestamps(ctx)
	if err != nil {
		// A fresh ledger can be briefly unreadable; migrations probe before
		// creating, so re-attempting from zero is safe.
		r.logger.Warn("ledger read failed, assuming nothing applied",
			zap.String("database", databaseName), zap.Error(err))
		applied = map[int64]struct{}{}
	}

	count := 0
	for _, m := range r.catalog {
		ts, ok := m.Timestamp()
		if !ok {
			r.logger.Warn("migration name has no trailing timestamp, skipping",
				zap.String("migration", m.Name))
			continue
		}
		if _, done := applied[ts]; done {
			continue
		}

		if err := store.Apply(ctx, m, ts); err != nil {
			if r.metrics != nil {
				r.metrics.MigrationFailures.Inc()
			}
			r.logger.Error("migration failed, aborting run",
				zap.String("database", databaseName),
				zap.String("migration", m.Name),
				zap.Error(err))
			return count, &AbortError{Migration: m.Name, Err: err}
		}

		count++
		if r.metrics != nil {
			r.metrics.MigrationsApplied.Inc()
		}
		r.logger.Info("migration applied",
			zap.String("database", databaseName),
			zap.String("migration", m.Name),
			zap.Int64("timestamp", ts))
	}

	return count, nil
}

// Pending reports the catalog entries not yet recorded for databaseName,
// in apply order, without applying anything. A missing ledger reads as
// nothing applied.
func (r *Runner) Pending(ctx context.Context, databaseName string) ([]Migration, error) {
	store, err := r.open(ctx, databaseName)
	if err != nil {
		return nil, err
	}

	applied, err := store.AppliedTimestamps(ctx)
	if err != nil {
		applied = map[int64]struct{}{}
	}

	var pending []Migration
	for _, m := range r.catalog {
		ts, ok := m.Timestamp()
		if !ok {
			continue
		}
		if _, done := applied[ts]; !done {
			pending = append(pending, m)
		}
	}
	return pending, nil
}

// Summary aggregates a RunAll sweep.
type Summary struct {
	Applied map[string]int   // databases migrated successfully → count applied
	Failed  map[string]error // databases whose run aborted
}

// RunAll migrates every listed database, continuing past per-database
// failures.
func (r *Runner) RunAll(ctx context.Context, databaseNames []string) Summary {
	summary := Summary{
		Applied: make(map[string]int, len(databaseNames)),
		Failed:  make(map[string]error),
	}

	// Deterministic sweep order keeps operator output stable.
	names := append([]string(nil), databaseNames...)
	sort.Strings(names)

	for _, name := range names {
		count, err := r.Run(ctx, name)
		if err != nil {
			summary.Failed[name] = err
			continue
		}
		summary.Applied[name] = count
	}

	return summary
}

func (r *Runner) lockFor(databaseName string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.locks[databaseName]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[databaseName] = lock
	}
	return lock
}
