package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"planlens/internal/audit"
	"planlens/internal/jwt_token"
	"planlens/internal/platform/config"
	"planlens/internal/platform/httpserver"
	"planlens/internal/platform/logger"
	platformmetrics "planlens/internal/platform/metrics"
	"planlens/internal/platform/middleware"
	platformredis "planlens/internal/platform/redis"
	"planlens/internal/policy"
	policymetrics "planlens/internal/policy/metrics"
	"planlens/internal/policy/service"
	"planlens/internal/policy/store"
	"planlens/internal/policy/store/cache"
	"planlens/internal/policy/store/memory"
	"planlens/internal/policy/store/postgres"
)

// main wires dependencies, mounts the router, and runs the server lifecycle.
// Business logic lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Policy store: postgres when configured, in-memory otherwise, with an
	// optional redis read-through layer on top.
	var policies store.Store
	if cfg.Database.URL != "" {
		pg, err := postgres.New(ctx, cfg.Database.URL)
		if err != nil {
			log.Error("failed to connect postgres", "error", err)
			return
		}
		defer pg.Close()
		policies = pg
		log.Info("using postgres policy store")
	} else {
		policies = memory.NewInMemory()
		log.Info("using in-memory policy store; state is process-scoped")
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("failed to connect redis", "error", err)
		return
	}
	if redisClient != nil {
		defer redisClient.Close()
		policies = cache.New(policies, redisClient.Client, cfg.Redis.CacheTTL, cache.WithLogger(log))
		log.Info("policy reads cached in redis", "ttl", cfg.Redis.CacheTTL)
	}

	// Audit pipeline: publisher feeds a worker that persists to kafka when
	// brokers are configured, memory otherwise.
	var auditSink audit.Store
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaSink, err := audit.NewKafkaStore(cfg.Kafka.Brokers, cfg.Kafka.AuditTopic, log)
		if err != nil {
			log.Error("failed to connect kafka", "error", err)
			return
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := kafkaSink.Close(flushCtx); err != nil {
				log.Error("failed to flush audit events", "error", err)
			}
		}()
		auditSink = kafkaSink
		log.Info("audit events produced to kafka", "topic", cfg.Kafka.AuditTopic)
	} else {
		auditSink = audit.NewMemoryStore()
	}
	auditPublisher := audit.NewPublisher(cfg.AuditBuffer, log)

	policyService := policy.NewService(policies,
		service.WithLogger(log),
		service.WithMetrics(policymetrics.New()),
		service.WithAuditPublisher(auditPublisher),
	)

	jwtService := jwttoken.NewJWTService(cfg.Server.JWTSigningKey, cfg.Server.JWTIssuer, cfg.Server.JWTAudience)
	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit)
	httpMetrics := platformmetrics.New()

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RequestTime)
	router.Use(middleware.ClientMetadata)
	router.Use(chimiddleware.Timeout(30 * time.Second))
	router.Use(middleware.Recover(log))
	router.Use(middleware.Logging(log))
	router.Use(middleware.Metrics(httpMetrics))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireTenant(jwtService, cfg.Server.DevTenantHeader, log))
		r.Use(rateLimiter.Limit)
		policy.NewHandler(policyService, log).Register(r)
	})

	srv := httpserver.New(cfg.Server.Addr, router)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return audit.NewWorker(auditSink, auditPublisher.Inbox(), log).Run(groupCtx)
	})
	group.Go(func() error {
		log.Info("starting planlens", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server exited", "error", err)
	}
	log.Info("shutdown complete")
}
