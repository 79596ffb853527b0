package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RoutingMetrics holds the Prometheus metrics for the tenant routing core.
type RoutingMetrics struct {
	PoolsOpen          prometheus.Gauge
	PoolCreatesTotal   prometheus.Counter
	PoolCreateFailures *prometheus.CounterVec
	PoolCacheHits      prometheus.Counter
	PoolEvictions      prometheus.Counter
	MigrationsApplied  prometheus.Counter
	MigrationFailures  prometheus.Counter
	LookupCacheHits    *prometheus.CounterVec
}

// NewRoutingMetrics initializes and registers the routing metrics on the
// default registry.
func NewRoutingMetrics() *RoutingMetrics {
	return &RoutingMetrics{
		PoolsOpen: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "clinica",
			Subsystem: "tenant_routing",
			Name:      "pools_open_gauge",
			Help:      "Number of live tenant connection pools currently cached.",
		}),
		PoolCreatesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "clinica",
			Subsystem: "tenant_routing",
			Name:      "pool_creates_total",
			Help:      "Total number of successful tenant pool initializations.",
		}),
		PoolCreateFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinica",
			Subsystem: "tenant_routing",
			Name:      "pool_create_failures_total",
			Help:      "Total number of failed tenant pool initializations by class.",
		}, []string{"class"}), // class: not_found, unreachable
		PoolCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "clinica",
			Subsystem: "tenant_routing",
			Name:      "pool_cache_hits_total",
			Help:      "Total number of tenant pool lookups served from cache.",
		}),
		PoolEvictions: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "clinica",
			Subsystem: "tenant_routing",
			Name:      "pool_evictions_total",
			Help:      "Total number of idle tenant pools evicted from the cache.",
		}),
		MigrationsApplied: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "clinica",
			Subsystem: "migrations",
			Name:      "applied_total",
			Help:      "Total number of tenant migrations applied successfully.",
		}),
		MigrationFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "clinica",
			Subsystem: "migrations",
			Name:      "failures_total",
			Help:      "Total number of aborted tenant migration runs.",
		}),
		LookupCacheHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinica",
			Subsystem: "tenant_routing",
			Name:      "lookup_cache_hits_total",
			Help:      "Clinic lookup cache hits by layer.",
		}, []string{"layer"}), // layer: memory, redis
	}
}
