package persistence

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// countingDialer tracks dial invocations per database name. Returning a nil
// pool is fine for registry behavior tests; nothing here closes or pings it.
type countingDialer struct {
	mu    sync.Mutex
	calls map[string]int
	fail  map[string]error
	delay time.Duration
}

func newCountingDialer() *countingDialer {
	return &countingDialer{
		calls: make(map[string]int),
		fail:  make(map[string]error),
	}
}

func (d *countingDialer) dial(ctx context.Context, databaseName string) (*pgxpool.Pool, error) {
	if d.delay > 0 {
		time.Sleep(d.delay)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls[databaseName]++
	if err := d.fail[databaseName]; err != nil {
		return nil, err
	}
	return nil, nil
}

func (d *countingDialer) count(databaseName string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[databaseName]
}

func newTestRegistry(t *testing.T, dial Dialer) *Registry {
	t.Helper()
	return NewRegistry(RegistryConfig{
		Dial:   dial,
		Logger: zap.NewNop(),
	})
}

func TestRegistryGetOrCreateSingleFlight(t *testing.T) {
	t.Parallel()

	dialer := newCountingDialer()
	dialer.delay = 20 * time.Millisecond
	registry := newTestRegistry(t, dialer.dial)

	const workers = 16
	var wg sync.WaitGroup
	var failures atomic.Int64
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := registry.GetOrCreate(context.Background(), "clinic_a"); err != nil {
				failures.Add(1)
			}
		}()
	}
	wg.Wait()

	require.Zero(t, failures.Load())
	require.Equal(t, 1, dialer.count("clinic_a"))
	require.Equal(t, 1, registry.Len())
}

func TestRegistryDistinctDatabasesDialIndependently(t *testing.T) {
	t.Parallel()

	dialer := newCountingDialer()
	registry := newTestRegistry(t, dialer.dial)

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		name := fmt.Sprintf("clinic_%d", i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := registry.GetOrCreate(context.Background(), name)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	require.Equal(t, 4, registry.Len())
	for i := 0; i < 4; i++ {
		require.Equal(t, 1, dialer.count(fmt.Sprintf("clinic_%d", i)))
	}
}

func TestRegistryDoesNotCacheFailures(t *testing.T) {
	t.Parallel()

	dialer := newCountingDialer()
	dialer.fail["clinic_flaky"] = fmt.Errorf("%w: clinic_flaky: connection refused", ErrDatabaseUnreachable)
	registry := newTestRegistry(t, dialer.dial)

	_, err := registry.GetOrCreate(context.Background(), "clinic_flaky")
	require.ErrorIs(t, err, ErrDatabaseUnreachable)
	require.Zero(t, registry.Len())

	// The database comes back; the next call must re-dial and succeed.
	dialer.mu.Lock()
	delete(dialer.fail, "clinic_flaky")
	dialer.mu.Unlock()

	_, err = registry.GetOrCreate(context.Background(), "clinic_flaky")
	require.NoError(t, err)
	require.Equal(t, 2, dialer.count("clinic_flaky"))
	require.Equal(t, 1, registry.Len())
}

func TestRegistryNotFoundPassesThroughTyped(t *testing.T) {
	t.Parallel()

	dialer := newCountingDialer()
	dialer.fail["clinic_ghost"] = fmt.Errorf("%w: clinic_ghost", ErrDatabaseNotFound)
	registry := newTestRegistry(t, dialer.dial)

	_, err := registry.GetOrCreate(context.Background(), "clinic_ghost")
	require.ErrorIs(t, err, ErrDatabaseNotFound)
	require.Zero(t, registry.Len())
}

func TestRegistryEvictIdleSparesRecentlyUsed(t *testing.T) {
	t.Parallel()

	dialer := newCountingDialer()
	registry := newTestRegistry(t, dialer.dial)

	_, err := registry.GetOrCreate(context.Background(), "clinic_a")
	require.NoError(t, err)

	// The cached-path lookup must refresh lastUsed before a sweep can run.
	_, err = registry.GetOrCreate(context.Background(), "clinic_a")
	require.NoError(t, err)
	require.Equal(t, 1, dialer.count("clinic_a"))

	require.Zero(t, registry.EvictIdle(time.Minute))
	require.Equal(t, 1, registry.Len())
}

func TestRegistryRejectsEmptyName(t *testing.T) {
	t.Parallel()

	registry := newTestRegistry(t, newCountingDialer().dial)

	_, err := registry.GetOrCreate(context.Background(), "")
	require.Error(t, err)
}

func TestRegistryLifecycleIntegration(t *testing.T) {
	t.Parallel()

	url, ok := os.LookupEnv("TEST_DATABASE_URL")
	if !ok || url == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping integration test")
	}

	ctx := context.Background()

	cfg, err := pgxpool.ParseConfig(url)
	require.NoError(t, err)
	selfName := cfg.ConnConfig.Database

	dialer, err := NewPgxDialer(url, TenantPoolConfig{MaxConns: 2})
	require.NoError(t, err)

	registry := NewRegistry(RegistryConfig{Dial: dialer, Logger: zap.NewNop()})
	defer registry.Close()

	pool, err := registry.GetOrCreate(ctx, selfName)
	require.NoError(t, err)
	require.NotNil(t, pool)
	require.True(t, registry.HealthCheck(ctx, selfName))

	// A second call must return the cached instance.
	again, err := registry.GetOrCreate(ctx, selfName)
	require.NoError(t, err)
	require.Same(t, pool, again)

	// Databases that do not exist map to the typed not-found error.
	_, err = registry.GetOrCreate(ctx, "clinic_does_not_exist_anywhere")
	require.ErrorIs(t, err, ErrDatabaseNotFound)

	// Immediate eviction with a zero idle window drops the pool.
	require.Equal(t, 1, registry.EvictIdle(0))
	require.Zero(t, registry.Len())
	require.False(t, registry.HealthCheck(ctx, selfName))
}
