package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	clinicshandler "github.com/clinica-io/clinica-backend/domains/clinics/be/handler"
	clinicsprov "github.com/clinica-io/clinica-backend/domains/clinics/be/provisioning"
	clinicsrepo "github.com/clinica-io/clinica-backend/domains/clinics/be/repo"
	clinicsservice "github.com/clinica-io/clinica-backend/domains/clinics/be/service"
	doctorshandler "github.com/clinica-io/clinica-backend/domains/doctors/be/handler"
	doctorsrepo "github.com/clinica-io/clinica-backend/domains/doctors/be/repo"
	doctorsservice "github.com/clinica-io/clinica-backend/domains/doctors/be/service"
	reservationshandler "github.com/clinica-io/clinica-backend/domains/reservations/be/handler"
	reservationsrepo "github.com/clinica-io/clinica-backend/domains/reservations/be/repo"
	reservationsservice "github.com/clinica-io/clinica-backend/domains/reservations/be/service"

	"github.com/clinica-io/clinica-backend/database/tenantmigrations"
	platformlogging "github.com/clinica-io/clinica-backend/platform/go/logging"
	"github.com/clinica-io/clinica-backend/platform/go/metrics"
	platformmiddleware "github.com/clinica-io/clinica-backend/platform/go/middleware"
	"github.com/clinica-io/clinica-backend/platform/go/migrate"
	"github.com/clinica-io/clinica-backend/platform/go/persistence"
	tenantmiddleware "github.com/clinica-io/clinica-backend/platform/go/tenant/middleware"
)

type config struct {
	Port            string        `env:"PORT" envDefault:"3000"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	DatabaseURL     string        `env:"DATABASE_URL,required"`
	DialTimeout     time.Duration `env:"TENANT_DIAL_TIMEOUT" envDefault:"10s"`
	PoolMaxConns    int32         `env:"TENANT_POOL_MAX_CONNS" envDefault:"4"`
	PoolIdleEvict   time.Duration `env:"TENANT_POOL_IDLE_EVICT" envDefault:"30m"`
	LookupCacheTTL  time.Duration `env:"CLINIC_LOOKUP_CACHE_TTL" envDefault:"30s"`
	RedisAddr       string        `env:"REDIS_ADDR"` // optional shared lookup cache
	RateLimitRPS    float64       `env:"RATE_LIMIT_RPS" envDefault:"50"`
	RateLimitBurst  int           `env:"RATE_LIMIT_BURST" envDefault:"100"`
}

func main() {
	ctx := context.Background()

	_ = godotenv.Load()

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := platformlogging.NewLogger(platformlogging.Config{
		Component: "api-server",
		Level:     cfg.LogLevel,
	})
	if err != nil {
		log.Fatalf("init zap logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	controlPool, err := persistence.NewControlPlanePool(ctx, persistence.PoolConfig{ConnString: cfg.DatabaseURL})
	if err != nil {
		logger.Fatal("init control-plane pool", zap.Error(err))
	}
	defer persistence.ClosePool(controlPool)

	routingMetrics := metrics.NewRoutingMetrics()

	dialer, err := persistence.NewPgxDialer(cfg.DatabaseURL, persistence.TenantPoolConfig{
		MaxConns: cfg.PoolMaxConns,
	})
	if err != nil {
		logger.Fatal("init tenant dialer", zap.Error(err))
	}

	registry := persistence.NewRegistry(persistence.RegistryConfig{
		Dial:        dialer,
		Logger:      logger,
		DialTimeout: cfg.DialTimeout,
		Metrics:     routingMetrics,
	})
	defer registry.Close()

	resolver := persistence.NewResolver(registry)

	runner := migrate.NewRunner(migrate.RunnerConfig{
		Open:    migrate.NewStoreOpener(registry),
		Catalog: tenantmigrations.Catalog(),
		Logger:  logger,
		Metrics: routingMetrics,
	})

	clinicsRepo := clinicsrepo.NewPostgresRepository(controlPool)
	dbProvisioner := clinicsprov.NewDBProvisioner(controlPool, runner)
	clinicsSvc := clinicsservice.New(clinicsRepo, dbProvisioner, logger)
	clinicsHTTP := clinicshandler.New(clinicsSvc, logger)

	doctorsSvc := doctorsservice.New(doctorsrepo.NewPostgresRepository(resolver))
	doctorsHTTP := doctorshandler.New(doctorsSvc, logger)

	reservationsSvc := reservationsservice.New(reservationsrepo.NewPostgresRepository(resolver))
	reservationsHTTP := reservationshandler.New(reservationsSvc, logger)

	guardCfg := tenantmiddleware.Config{
		CacheTTL: cfg.LookupCacheTTL,
		Metrics:  routingMetrics,
	}
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
		guardCfg.Caches = append(guardCfg.Caches,
			tenantmiddleware.NewRedisRouteCache(redisClient, cfg.LookupCacheTTL, logger))
	}
	clinicGuard := tenantmiddleware.WithClinicAccess(clinicsSvc, registry, logger, guardCfg)

	rootRouter := chi.NewRouter()
	rootRouter.Use(
		chimw.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		chimw.Timeout(cfg.RequestTimeout),
		platformmiddleware.DefaultCORS(),
		platformmiddleware.RateLimit(platformmiddleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimitRPS,
			Burst:             cfg.RateLimitBurst,
		}),
	)
	rootRouter.Use(platformmiddleware.RequestTrace)
	rootRouter.Use(platformlogging.RequestLogger(logger))

	rootRouter.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	rootRouter.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := controlPool.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	rootRouter.Method(http.MethodGet, "/metrics", promhttp.Handler())

	rootRouter.Route("/api/v1", func(r chi.Router) {
		r.Route("/admin/clinics", clinicsHTTP.Routes)

		// Tenant-scoped surface; the guard resolves and verifies the clinic
		// before any handler runs.
		r.Group(func(r chi.Router) {
			r.Use(clinicGuard)
			r.Route("/doctors", doctorsHTTP.Routes)
			r.Route("/reservations", reservationsHTTP.Routes)
		})
	})

	// Janitor: drop tenant pools nobody used for a while.
	janitorCtx, stopJanitor := context.WithCancel(ctx)
	defer stopJanitor()
	if cfg.PoolIdleEvict > 0 {
		go func() {
			ticker := time.NewTicker(cfg.PoolIdleEvict / 2)
			defer ticker.Stop()
			for {
				select {
				case <-janitorCtx.Done():
					return
				case <-ticker.C:
					registry.EvictIdle(cfg.PoolIdleEvict)
				}
			}
		}()
	}

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: rootRouter,
	}

	go func() {
		logger.Info("api server listening", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
