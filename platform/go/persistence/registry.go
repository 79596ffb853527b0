package persistence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/clinica-io/clinica-backend/platform/go/metrics"
)

const defaultDialTimeout = 10 * time.Second

// Registry owns the cache of live tenant connection pools, keyed by sanitized
// database name. Creation is single-flighted per key: concurrent callers for
// one clinic share a single initialization, while distinct clinics never block
// each other. Failed initializations are never cached, so a later call retries
// cleanly.
type Registry struct {
	dial        Dialer
	logger      *zap.Logger
	dialTimeout time.Duration
	metrics     *metrics.RoutingMetrics

	group   singleflight.Group
	mu      sync.RWMutex
	entries map[string]*poolEntry
}

type poolEntry struct {
	pool     *pgxpool.Pool
	lastUsed atomic.Int64 // unix nanos
}

func (e *poolEntry) touch() {
	e.lastUsed.Store(time.Now().UnixNano())
}

// RegistryConfig wires the registry dependencies.
type RegistryConfig struct {
	Dial        Dialer
	Logger      *zap.Logger
	DialTimeout time.Duration
	Metrics     *metrics.RoutingMetrics // optional
}

// NewRegistry constructs a Registry.
func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.Dial == nil {
		panic("registry requires a dialer")
	}
	if cfg.Logger == nil {
		panic("registry requires a logger")
	}
	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}

	return &Registry{
		dial:        cfg.Dial,
		logger:      cfg.Logger,
		dialTimeout: timeout,
		metrics:     cfg.Metrics,
		entries:     make(map[string]*poolEntry),
	}
}

// GetOrCreate returns the cached pool for the sanitized database name, opening
// and verifying it first if needed. The name must already have passed
// tenant.SanitizeDatabaseName; the registry does not re-sanitize.
func (r *Registry) GetOrCreate(ctx context.Context, databaseName string) (*pgxpool.Pool, error) {
	if databaseName == "" {
		return nil, fmt.Errorf("database name is required")
	}

	if entry := r.lookup(databaseName); entry != nil {
		if r.metrics != nil {
			r.metrics.PoolCacheHits.Inc()
		}
		return entry.pool, nil
	}

	v, err, _ := r.group.Do(databaseName, func() (any, error) {
		// A previous flight may have populated the cache while this caller
		// queued on the group.
		if entry := r.lookup(databaseName); entry != nil {
			return entry.pool, nil
		}

		// The dial runs on its own deadline, detached from the winning
		// caller's cancellation, so co-waiters are not failed by a client
		// that gave up first.
		dialCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.dialTimeout)
		defer cancel()

		pool, err := r.dial(dialCtx, databaseName)
		if err != nil {
			r.recordFailure(databaseName, err)
			return nil, err
		}

		entry := &poolEntry{pool: pool}
		entry.touch()

		r.mu.Lock()
		r.entries[databaseName] = entry
		r.mu.Unlock()

		if r.metrics != nil {
			r.metrics.PoolCreatesTotal.Inc()
			r.metrics.PoolsOpen.Inc()
		}
		r.logger.Info("tenant pool initialized", zap.String("database", databaseName))

		return pool, nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrDatabaseUnreachable, databaseName, ctx.Err())
		}
		return nil, err
	}

	return v.(*pgxpool.Pool), nil
}

// HealthCheck reports whether a cached pool for the database is reachable.
// Unknown databases report false without dialing.
func (r *Registry) HealthCheck(ctx context.Context, databaseName string) bool {
	entry := r.lookup(databaseName)
	if entry == nil {
		return false
	}

	pingCtx, cancel := context.WithTimeout(ctx, r.dialTimeout)
	defer cancel()

	if err := entry.pool.Ping(pingCtx); err != nil {
		r.logger.Warn("tenant pool health check failed",
			zap.String("database", databaseName), zap.Error(err))
		return false
	}
	return true
}

// EvictIdle closes and drops every pool untouched for longer than maxIdle,
// returning the number evicted. pgxpool drains in-flight acquires on Close,
// so no running query is interrupted.
func (r *Registry) EvictIdle(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle).UnixNano()

	r.mu.Lock()
	var stale []*poolEntry
	for name, entry := range r.entries {
		if entry.lastUsed.Load() < cutoff {
			stale = append(stale, entry)
			delete(r.entries, name)
		}
	}
	r.mu.Unlock()

	for _, entry := range stale {
		entry.pool.Close()
	}
	if len(stale) > 0 {
		if r.metrics != nil {
			r.metrics.PoolEvictions.Add(float64(len(stale)))
			r.metrics.PoolsOpen.Sub(float64(len(stale)))
		}
		r.logger.Info("evicted idle tenant pools", zap.Int("count", len(stale)))
	}

	return len(stale)
}

// Close tears down every cached pool. The registry stays usable; later calls
// re-initialize on demand.
func (r *Registry) Close() {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]*poolEntry)
	r.mu.Unlock()

	for _, entry := range entries {
		entry.pool.Close()
	}
	if r.metrics != nil {
		r.metrics.PoolsOpen.Sub(float64(len(entries)))
	}
}

// Len reports the number of cached pools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func (r *Registry) lookup(databaseName string) *poolEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[databaseName]
	if !ok {
		return nil
	}
	// Touched while the read lock is held; EvictIdle needs the write lock, so
	// an entry handed out here can never be evicted with a stale lastUsed.
	entry.touch()
	return entry
}

func (r *Registry) recordFailure(databaseName string, err error) {
	class := "unreachable"
	if errors.Is(err, ErrDatabaseNotFound) {
		class = "not_found"
	}
	if r.metrics != nil {
		r.metrics.PoolCreateFailures.WithLabelValues(class).Inc()
	}
	r.logger.Error("tenant pool initialization failed",
		zap.String("database", databaseName),
		zap.String("class", class),
		zap.Error(err))
}
