package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/clinica-io/clinica-backend/platform/go/persistence"
	"github.com/clinica-io/clinica-backend/platform/go/tenant"
)

type fakeResolver struct {
	mu     sync.Mutex
	routes map[int64]tenant.Route
	err    error
	calls  int
}

func (r *fakeResolver) ResolveClinicRoute(ctx context.Context, clinicID int64) (tenant.Route, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return tenant.Route{}, r.err
	}
	route, ok := r.routes[clinicID]
	if !ok {
		return tenant.Route{}, tenant.ErrRouteNotFound
	}
	return route, nil
}

func (r *fakeResolver) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type fakeVerifier struct {
	mu    sync.Mutex
	fail  map[string]error
	seen  []string
	calls int
}

func (v *fakeVerifier) GetOrCreate(ctx context.Context, databaseName string) (*pgxpool.Pool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls++
	v.seen = append(v.seen, databaseName)
	if err := v.fail[databaseName]; err != nil {
		return nil, err
	}
	return nil, nil
}

func newGuardHandler(resolver *fakeResolver, verifier *fakeVerifier, cfg Config) (http.Handler, *tenant.Clinic) {
	var captured tenant.Clinic
	guard := WithClinicAccess(resolver, verifier, zap.NewNop(), cfg)
	handler := guard(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, ok := tenant.FromContext(r.Context()); ok {
			captured = c
		}
		w.WriteHeader(http.StatusOK)
	}))
	return handler, &captured
}

func doRequest(handler http.Handler, clinicID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/doctors", nil)
	if clinicID != "" {
		req.Header.Set(ClinicIDHeader, clinicID)
	}
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	return resp
}

func TestGuardWithoutHeaderStaysControlPlane(t *testing.T) {
	t.Parallel()

	resolver := &fakeResolver{routes: map[int64]tenant.Route{}}
	verifier := &fakeVerifier{}
	handler, captured := newGuardHandler(resolver, verifier, Config{})

	resp := doRequest(handler, "")
	require.Equal(t, http.StatusOK, resp.Code)
	require.Empty(t, captured.DatabaseName)
	require.Zero(t, resolver.callCount())
}

func TestGuardAttachesClinicSelection(t *testing.T) {
	t.Parallel()

	resolver := &fakeResolver{routes: map[int64]tenant.Route{
		42: {DatabaseName: "clinic_sunrise", Active: true},
	}}
	verifier := &fakeVerifier{}
	handler, captured := newGuardHandler(resolver, verifier, Config{})

	resp := doRequest(handler, "42")
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, int64(42), captured.ID)
	require.Equal(t, "clinic_sunrise", captured.DatabaseName)
	require.Equal(t, []string{"clinic_sunrise"}, verifier.seen)
}

func TestGuardUnknownClinicIs404(t *testing.T) {
	t.Parallel()

	resolver := &fakeResolver{routes: map[int64]tenant.Route{}}
	verifier := &fakeVerifier{}
	handler, _ := newGuardHandler(resolver, verifier, Config{})

	resp := doRequest(handler, "99")
	require.Equal(t, http.StatusNotFound, resp.Code)
	require.Zero(t, verifier.calls)
}

func TestGuardMalformedClinicIDIs404(t *testing.T) {
	t.Parallel()

	resolver := &fakeResolver{routes: map[int64]tenant.Route{}}
	verifier := &fakeVerifier{}
	handler, _ := newGuardHandler(resolver, verifier, Config{})

	resp := doRequest(handler, "not-a-number")
	require.Equal(t, http.StatusNotFound, resp.Code)
	require.Zero(t, resolver.callCount())
}

func TestGuardInactiveClinicIs404(t *testing.T) {
	t.Parallel()

	resolver := &fakeResolver{routes: map[int64]tenant.Route{
		7: {DatabaseName: "clinic_dormant", Active: false},
	}}
	verifier := &fakeVerifier{}
	handler, _ := newGuardHandler(resolver, verifier, Config{})

	resp := doRequest(handler, "7")
	require.Equal(t, http.StatusNotFound, resp.Code)
	require.Zero(t, verifier.calls)
}

func TestGuardMissingDatabaseIs404(t *testing.T) {
	t.Parallel()

	resolver := &fakeResolver{routes: map[int64]tenant.Route{
		7: {DatabaseName: "clinic_ghost", Active: true},
	}}
	verifier := &fakeVerifier{
		fail: map[string]error{"clinic_ghost": persistence.ErrDatabaseNotFound},
	}
	handler, _ := newGuardHandler(resolver, verifier, Config{})

	resp := doRequest(handler, "7")
	require.Equal(t, http.StatusNotFound, resp.Code)
}

func TestGuardUnreachableDatabaseIs503(t *testing.T) {
	t.Parallel()

	resolver := &fakeResolver{routes: map[int64]tenant.Route{
		7: {DatabaseName: "clinic_down", Active: true},
	}}
	verifier := &fakeVerifier{
		fail: map[string]error{"clinic_down": persistence.ErrDatabaseUnreachable},
	}
	handler, _ := newGuardHandler(resolver, verifier, Config{})

	resp := doRequest(handler, "7")
	require.Equal(t, http.StatusServiceUnavailable, resp.Code)
}

func TestGuardRejectsUnroutableDatabaseName(t *testing.T) {
	t.Parallel()

	resolver := &fakeResolver{routes: map[int64]tenant.Route{
		7: {DatabaseName: "___", Active: true},
	}}
	verifier := &fakeVerifier{}
	handler, _ := newGuardHandler(resolver, verifier, Config{})

	// A registry value the sanitizer rejects must never reach the
	// connection layer.
	resp := doRequest(handler, "7")
	require.Equal(t, http.StatusNotFound, resp.Code)
	require.Zero(t, verifier.calls)
}

func TestGuardCachesRouteLookups(t *testing.T) {
	t.Parallel()

	resolver := &fakeResolver{routes: map[int64]tenant.Route{
		42: {DatabaseName: "clinic_sunrise", Active: true},
	}}
	verifier := &fakeVerifier{}
	handler, _ := newGuardHandler(resolver, verifier, Config{CacheTTL: time.Minute})

	for i := 0; i < 5; i++ {
		resp := doRequest(handler, "42")
		require.Equal(t, http.StatusOK, resp.Code)
	}

	// Only the first request hits the control plane; the rest are served
	// from the lookup cache. Connection verification still runs per request.
	require.Equal(t, 1, resolver.callCount())
	require.Equal(t, 5, verifier.calls)
}

func TestGuardDoesNotCacheNegativeLookups(t *testing.T) {
	t.Parallel()

	resolver := &fakeResolver{routes: map[int64]tenant.Route{}}
	verifier := &fakeVerifier{}
	handler, _ := newGuardHandler(resolver, verifier, Config{CacheTTL: time.Minute})

	resp := doRequest(handler, "42")
	require.Equal(t, http.StatusNotFound, resp.Code)

	// The clinic gets onboarded between requests.
	resolver.mu.Lock()
	resolver.routes[42] = tenant.Route{DatabaseName: "clinic_sunrise", Active: true}
	resolver.mu.Unlock()

	resp = doRequest(handler, "42")
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, 2, resolver.callCount())
}
