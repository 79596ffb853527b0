package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitBlocksAfterBurst(t *testing.T) {
	t.Parallel()

	handler := RateLimit(RateLimitConfig{RequestsPerSecond: 1, Burst: 3})(okHandler())

	var codes []int
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "203.0.113.9:1234"
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		codes = append(codes, resp.Code)
	}

	require.Equal(t, []int{200, 200, 200, 429, 429}, codes)
}

func TestRateLimitIsPerClient(t *testing.T) {
	t.Parallel()

	handler := RateLimit(RateLimitConfig{RequestsPerSecond: 1, Burst: 1})(okHandler())

	first := httptest.NewRequest(http.MethodGet, "/", nil)
	first.RemoteAddr = "203.0.113.1:1000"
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, first)
	require.Equal(t, http.StatusOK, resp.Code)

	// The first client's bucket is exhausted.
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, first)
	require.Equal(t, http.StatusTooManyRequests, resp.Code)

	// Another client gets a fresh bucket.
	second := httptest.NewRequest(http.MethodGet, "/", nil)
	second.RemoteAddr = "203.0.113.2:1000"
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, second)
	require.Equal(t, http.StatusOK, resp.Code)
}

func TestRateLimitSweepsIdleClients(t *testing.T) {
	t.Parallel()

	handler := RateLimit(RateLimitConfig{
		RequestsPerSecond: 0.01, // refill is negligible within this test
		Burst:             1,
		ClientTTL:         40 * time.Millisecond,
	})(okHandler())

	first := httptest.NewRequest(http.MethodGet, "/", nil)
	first.RemoteAddr = "203.0.113.1:1000"
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, first)
	require.Equal(t, http.StatusOK, resp.Code)

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, first)
	require.Equal(t, http.StatusTooManyRequests, resp.Code)

	time.Sleep(100 * time.Millisecond)

	// Any request past the TTL window triggers the sweep.
	second := httptest.NewRequest(http.MethodGet, "/", nil)
	second.RemoteAddr = "203.0.113.2:1000"
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, second)
	require.Equal(t, http.StatusOK, resp.Code)

	// The first client's exhausted bucket was dropped, so it gets a fresh one.
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, first)
	require.Equal(t, http.StatusOK, resp.Code)
}

func TestDefaultCORSPreflight(t *testing.T) {
	t.Parallel()

	handler := DefaultCORS()(okHandler())

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	require.Equal(t, http.StatusNoContent, resp.Code)
	require.Contains(t, resp.Header().Get("Access-Control-Allow-Headers"), "X-Clinic-ID")
}
