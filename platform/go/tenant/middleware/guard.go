package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	platformlogging "github.com/clinica-io/clinica-backend/platform/go/logging"
	"github.com/clinica-io/clinica-backend/platform/go/metrics"
	"github.com/clinica-io/clinica-backend/platform/go/persistence"
	"github.com/clinica-io/clinica-backend/platform/go/requesttrace"
	"github.com/clinica-io/clinica-backend/platform/go/tenant"
)

// ClinicIDHeader carries the tenant selection on inbound requests. Requests
// without it run in control-plane scope.
const ClinicIDHeader = "X-Clinic-ID"

// Resolver is the minimal control-plane lookup the guard needs. Implemented
// by the clinics service.
type Resolver interface {
	ResolveClinicRoute(ctx context.Context, clinicID int64) (tenant.Route, error)
}

// ConnectionVerifier initializes and verifies the tenant connection before
// the request proceeds. Implemented by the persistence registry.
type ConnectionVerifier interface {
	GetOrCreate(ctx context.Context, databaseName string) (*pgxpool.Pool, error)
}

// RouteCache is an optional lookup cache layer consulted before the
// resolver.
type RouteCache interface {
	Get(ctx context.Context, clinicID int64) (tenant.Route, bool)
	Put(ctx context.Context, clinicID int64, route tenant.Route)
}

// Config controls guard behavior.
type Config struct {
	// CacheTTL enables the in-memory lookup cache; zero disables it.
	CacheTTL time.Duration
	// Caches are extra layers (e.g. Redis) consulted after the in-memory one.
	Caches  []RouteCache
	Metrics *metrics.RoutingMetrics // optional
}

// WithClinicAccess resolves the clinic from the request, verifies its
// database connection, and attaches the selection to the request context.
// A request against an unknown or unreachable clinic fails here, before any
// business logic; it never falls back to the control plane or another
// clinic's connection.
func WithClinicAccess(resolver Resolver, verifier ConnectionVerifier, logger *zap.Logger, cfg Config) func(http.Handler) http.Handler {
	if resolver == nil {
		panic("clinic guard: resolver is required")
	}
	if verifier == nil {
		panic("clinic guard: connection verifier is required")
	}
	if logger == nil {
		panic("clinic guard: logger is required")
	}

	caches := cfg.Caches
	if cfg.CacheTTL > 0 {
		caches = append([]RouteCache{NewMemoryRouteCache(cfg.CacheTTL)}, caches...)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get(ClinicIDHeader)
			if raw == "" {
				// Control-plane scope; no tenant selection.
				next.ServeHTTP(w, r)
				return
			}

			log := platformlogging.FromRequest(r, logger)

			clinicID, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				http.Error(w, "invalid clinic id", http.StatusNotFound)
				return
			}

			route, cached := lookupCached(r.Context(), caches, clinicID, cfg.Metrics)
			if !cached {
				route, err = resolver.ResolveClinicRoute(r.Context(), clinicID)
				if err != nil {
					if errors.Is(err, tenant.ErrRouteNotFound) {
						http.Error(w, "clinic not found", http.StatusNotFound)
						return
					}
					log.Error("clinic route lookup failed",
						zap.Int64("clinic_id", clinicID), zap.Error(err))
					http.Error(w, "clinic lookup failed", http.StatusInternalServerError)
					return
				}
				if route.Active && route.DatabaseName != "" {
					for _, c := range caches {
						c.Put(r.Context(), clinicID, route)
					}
				}
			}

			if !route.Active || route.DatabaseName == "" {
				http.Error(w, "clinic not found", http.StatusNotFound)
				return
			}

			databaseName, err := tenant.SanitizeDatabaseName(route.DatabaseName)
			if err != nil {
				// Registry data that fails the whitelist never reaches the
				// connection layer.
				log.Error("clinic database name rejected",
					zap.Int64("clinic_id", clinicID), zap.Error(err))
				http.Error(w, "clinic not found", http.StatusNotFound)
				return
			}

			if _, err := verifier.GetOrCreate(r.Context(), databaseName); err != nil {
				if errors.Is(err, persistence.ErrDatabaseNotFound) {
					http.Error(w, "clinic database not found", http.StatusNotFound)
					return
				}
				log.Warn("clinic database unavailable",
					zap.Int64("clinic_id", clinicID),
					zap.String("database", databaseName),
					zap.Error(err))
				http.Error(w, "clinic temporarily unavailable", http.StatusServiceUnavailable)
				return
			}

			ctx := tenant.WithClinic(r.Context(), tenant.Clinic{
				ID:           clinicID,
				DatabaseName: databaseName,
			})
			if trace, ok := requesttrace.FromContext(ctx); ok {
				trace.ClinicID = &clinicID
				ctx = requesttrace.IntoContext(ctx, trace)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func lookupCached(ctx context.Context, caches []RouteCache, clinicID int64, m *metrics.RoutingMetrics) (tenant.Route, bool) {
	for i, c := range caches {
		if route, ok := c.Get(ctx, clinicID); ok {
			if m != nil {
				layer := "memory"
				if i > 0 {
					layer = "redis"
				}
				m.LookupCacheHits.WithLabelValues(layer).Inc()
			}
			return route, true
		}
	}
	return tenant.Route{}, false
}
