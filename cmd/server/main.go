package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"citizenly/internal/audit"
	"citizenly/internal/identity"
	"citizenly/internal/jurisdiction"
	"citizenly/internal/platform/config"
	"citizenly/internal/platform/httpserver"
	"citizenly/internal/platform/logger"
	"citizenly/internal/platform/metrics"
	"citizenly/internal/platform/middleware"
	"citizenly/internal/platform/postgres"
	"citizenly/internal/platform/redis"
	"citizenly/internal/registration/handler"
	regmetrics "citizenly/internal/registration/metrics"
	"citizenly/internal/registration/service"
	"citizenly/internal/registration/store/profile"
	"citizenly/internal/registration/store/role"
	"citizenly/internal/token"
	"citizenly/migrations"
	dErrors "citizenly/pkg/domain-errors"
	"citizenly/pkg/platform/httputil"
)

// main wires dependencies and owns the process lifecycle. Business logic
// lives in the internal services; everything here is selection and plumbing.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg.Postgres)
	if err != nil {
		log.Error("postgres connection failed", "error", err.Error())
		os.Exit(1)
	}
	if db != nil {
		defer db.Close()
		if err := migrations.Apply(ctx, db); err != nil {
			log.Error("migrations failed", "error", err.Error())
			os.Exit(1)
		}
	}

	cache, err := redis.New(cfg.Redis)
	if err != nil {
		log.Error("redis connection failed", "error", err.Error())
		os.Exit(1)
	}
	var cacheClient *goredis.Client
	if cache != nil {
		defer cache.Close()
		cacheClient = cache.Client
	}

	// Memory fallbacks keep dev mode runnable with zero external services.
	var profiles profile.Store = profile.NewMemory()
	var roles role.Store = role.NewMemory()
	if db != nil {
		profiles = profile.NewPostgres(db)
		roles = role.NewPostgres(db)
	}

	var identities identity.Provider = identity.NewMemory()
	if cfg.Identity.BaseURL != "" {
		identities = identity.NewHTTPClient(cfg.Identity.BaseURL, cfg.Identity.ServiceKey, cfg.Identity.Timeout)
	}

	var auditPub audit.Publisher = audit.NewLogPublisher(log)
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaPub, err := audit.NewKafkaPublisher(ctx, cfg.Kafka.Brokers, cfg.Kafka.AuditTopic, log)
		if err != nil {
			log.Error("kafka connection failed", "error", err.Error())
			os.Exit(1)
		}
		auditPub = kafkaPub
	}
	defer auditPub.Close()

	jurSvc := jurisdiction.New(profiles, cacheClient, cfg.Redis.AdminStatusTTL, log)

	regSvc := service.NewService(identities, profiles, roles,
		service.WithVisibilityPolicy(cfg.Visibility),
		service.WithMetrics(regmetrics.New()),
		service.WithAuditPublisher(auditPub),
		service.WithAdminStatusInvalidator(jurSvc),
		service.WithLogger(log),
	)

	platformMetrics := metrics.New()
	issuer := token.NewIssuer(cfg.Token.SigningKey, cfg.Token.TTL)

	r := chi.NewRouter()
	r.Use(
		middleware.Recovery(log),
		middleware.RequestID,
		middleware.ClientMetadata,
		middleware.Logger(log),
		middleware.Latency(platformMetrics),
		middleware.Timeout(cfg.HTTP.RequestTimeout),
		middleware.ContentTypeJSON,
	)
	handler.New(regSvc, jurSvc, issuer, log).Register(r)
	r.Get("/healthz", healthz(db, cache))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	srv := httpserver.New(cfg.HTTP.Addr, r)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("citizenly registration service listening", "addr", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited", "error", err.Error())
		os.Exit(1)
	}
	log.Info("shutdown complete")
}

// healthz reports readiness of the configured backing stores. Unconfigured
// stores are healthy by definition.
func healthz(db *sql.DB, cache *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := postgres.Health(ctx, db); err != nil {
			httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeUnavailable, "postgres unhealthy"))
			return
		}
		if cache != nil {
			if err := cache.Health(ctx); err != nil {
				httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeUnavailable, "redis unhealthy"))
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
