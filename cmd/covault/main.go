package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"net/smtp"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"

	"github.com/covault/covault/pkg/api"
	"github.com/covault/covault/pkg/authz"
	"github.com/covault/covault/pkg/billing"
	"github.com/covault/covault/pkg/collections"
	"github.com/covault/covault/pkg/config"
	"github.com/covault/covault/pkg/events"
	"github.com/covault/covault/pkg/membership"
	"github.com/covault/covault/pkg/middleware"
	"github.com/covault/covault/pkg/notify"
	"github.com/covault/covault/pkg/observability"
	"github.com/covault/covault/pkg/orgcache"
	"github.com/covault/covault/pkg/orgs"
	"github.com/covault/covault/pkg/policy"
	"github.com/covault/covault/pkg/seats"
	"github.com/covault/covault/pkg/storage"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.WithField("self_hosted", cfg.SelfHosted).Info("starting covault")

	ctx := context.Background()

	db, err := storage.ConnectPostgres(cfg.Storage)
	if err != nil {
		logger.WithError(err).Error("failed to connect to postgres")
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer db.Close()

	if err := runMigrations(ctx, db); err != nil {
		logger.WithError(err).Error("failed to run migrations")
		log.Fatalf("Failed to run database migrations: %v", err)
	}
	logger.Info("database migrations applied")

	redisClient, err := storage.ConnectRedis(cfg.Storage)
	if err != nil {
		logger.WithError(err).Error("failed to connect to redis")
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	orgStore := orgs.NewPostgresStore(db)
	collectionStore := collections.NewPostgresStore(db)
	policyStore := policy.NewPostgresStore(db)
	recorder := events.NewPostgresStore(db)

	var gateway billing.Gateway
	if cfg.SelfHosted {
		gateway = billing.NoopGateway{}
	} else {
		gateway = billing.NewPostgresGateway(db)
	}

	mailer := buildMailer(cfg, logger)

	seatService := seats.NewService(orgStore, gateway, recorder, mailer, logger, cfg.SelfHosted)
	resolver := authz.NewAccessResolver(collectionStore)
	abilityCache := orgcache.New(orgStore, redisClient, orgcache.Config{}, logger)

	tokens := membership.NewInviteTokenIssuer([]byte(cfg.Auth.InviteSigningKey), cfg.Auth.InviteLifetime)
	service := membership.NewService(membership.Deps{
		Store:       orgStore,
		Collections: collectionStore,
		Policies:    policyStore,
		Seats:       seatService,
		Resolver:    resolver,
		Gateway:     gateway,
		Cache:       abilityCache,
		Recorder:    recorder,
		Mailer:      mailer,
		Tokens:      tokens,
		Logger:      logger,
	})

	verifier := middleware.NewTokenVerifier([]byte(cfg.Auth.SigningKey))
	auth := middleware.NewAuthMiddleware(verifier)
	principal := middleware.NewPrincipalMiddleware(orgStore, abilityCache)
	limiter := middleware.NewRateLimiter(redisClient, &middleware.RateLimitConfig{
		RequestsPerWindow: cfg.Server.RateLimitRequests,
		WindowDuration:    cfg.Server.RateLimitWindow,
	}, "covault")

	server := api.NewServer(service, orgStore, auth, principal, limiter, logger)

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	var handler http.Handler = server.Router()
	if cfg.Observability.MetricsEnabled {
		handler = observability.HTTPMetricsMiddleware(metrics)(handler)
	}

	httpServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthServer := startHealthServer(cfg, db, redisClient, registry, logger)

	scheduler := startScheduler(cfg, service, metrics, db, logger)

	sm := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	sm.RegisterShutdownFunc(func(ctx context.Context) error {
		stopCtx := scheduler.Stop()
		select {
		case <-stopCtx.Done():
		case <-ctx.Done():
		}
		return nil
	})
	sm.RegisterShutdownFunc(func(ctx context.Context) error {
		return healthServer.Shutdown(ctx)
	})

	go func() {
		logger.WithField("addr", httpServer.Addr).Info("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("http server failed")
		}
	}()

	if err := sm.WaitForShutdown(); err != nil {
		logger.WithError(err).Error("shutdown completed with errors")
	}
	logger.Info("covault stopped")
}

// runMigrations applies each package's schema migrations. Order matters:
// collections and policies reference organizations.
func runMigrations(ctx context.Context, db *sql.DB) error {
	if err := orgs.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("failed to migrate orgs schema: %w", err)
	}
	if err := collections.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("failed to migrate collections schema: %w", err)
	}
	if err := policy.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("failed to migrate policy schema: %w", err)
	}
	if err := billing.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("failed to migrate billing schema: %w", err)
	}
	if err := events.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("failed to migrate events schema: %w", err)
	}
	return nil
}

func buildMailer(cfg *config.Config, logger *observability.Logger) notify.Mailer {
	if cfg.Mail.Host == "" {
		logger.Warn("no smtp relay configured, outbound mail disabled")
		return notify.NoopMailer{}
	}
	var auth smtp.Auth
	if cfg.Mail.Username != "" {
		auth = smtp.PlainAuth("", cfg.Mail.Username, cfg.Mail.Password, cfg.Mail.Host)
	}
	addr := fmt.Sprintf("%s:%d", cfg.Mail.Host, cfg.Mail.Port)
	from := fmt.Sprintf("%s <%s>", cfg.Mail.FromName, cfg.Mail.FromAddress)
	return notify.NewAsyncMailer(notify.NewSMTPMailer(addr, from, auth), logger)
}

// startHealthServer serves liveness, readiness and metrics on a separate
// port so the main listener's auth stack never sits in front of probes.
func startHealthServer(cfg *config.Config, db *sql.DB, redisClient *redis.Client, registry *prometheus.Registry, logger *observability.Logger) *http.Server {
	checker := observability.NewHealthChecker(db, redisClient)

	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/healthz", checker.Liveness)
	healthMux.HandleFunc("/readyz", checker.Readiness)
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}

	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}
	go func() {
		logger.WithField("addr", healthServer.Addr).Info("health server listening")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("health server failed")
		}
	}()
	return healthServer
}

// startScheduler runs periodic maintenance: expired invite cleanup on the
// configured cron schedule, and a connection pool stats sweep for metrics.
func startScheduler(cfg *config.Config, service *membership.Service, metrics *observability.Metrics, db *sql.DB, logger *observability.Logger) *cron.Cron {
	c := cron.New()

	_, err := c.AddFunc(cfg.Auth.InviteCleanupSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		deleted, err := service.CleanupExpiredInvites(ctx, cfg.Auth.InviteLifetime)
		if err != nil {
			logger.WithError(err).Error("invite cleanup failed")
			return
		}
		logger.WithField("deleted", deleted).Info("invite cleanup completed")
	})
	if err != nil {
		log.Fatalf("Failed to schedule invite cleanup: %v", err)
	}

	if cfg.Observability.MetricsEnabled {
		_, err = c.AddFunc("@every 15s", func() {
			metrics.UpdateDBStats(db.Stats())
		})
		if err != nil {
			log.Fatalf("Failed to schedule db stats collection: %v", err)
		}
	}

	c.Start()
	logger.WithField("schedule", cfg.Auth.InviteCleanupSchedule).Info("scheduler started")
	return c
}
