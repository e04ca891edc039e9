package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/agency-service/internal/api/http"
	"github.com/spec-kit/agency-service/internal/api/http/handlers"
	"github.com/spec-kit/agency-service/internal/auth"
	"github.com/spec-kit/agency-service/internal/config"
	"github.com/spec-kit/agency-service/internal/emailcheck"
	"github.com/spec-kit/agency-service/internal/events"
	"github.com/spec-kit/agency-service/internal/identity"
	"github.com/spec-kit/agency-service/internal/observability"
	"github.com/spec-kit/agency-service/internal/persistence"
	"github.com/spec-kit/agency-service/internal/repository"
	"github.com/spec-kit/agency-service/internal/service"
)

type identityBackend interface {
	identity.Provider
	identity.Credentials
	identity.RevocationChecker
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.App, cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if pg.Enabled() && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	links := identity.ResetLinkConfig{BaseURL: cfg.Identity.ResetLinkBaseURL, TTL: cfg.Identity.ResetTTL()}
	var (
		documents repository.DocumentStore
		accounts  identityBackend
	)
	if pg.Enabled() {
		documents = repository.NewPostgresDocumentStore(pg.PoolHandle())
		accounts = identity.NewPostgresProvider(identity.PostgresDependencies{
			Pool:       pg.PoolHandle(),
			Revocation: identity.NewRedisRevocationStore(redis.Client),
			Links:      links,
			BcryptCost: cfg.Auth.BcryptCost,
		})
	} else {
		documents = repository.NewMemoryDocumentStore()
		accounts = identity.NewMemoryProvider(links, cfg.Auth.BcryptCost)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	dispatcher := events.NewInMemoryDispatcher()
	service.NewNotificationService(dispatcher, logger, cfg.Notification).RegisterHandlers()

	emails := emailcheck.New(nil, cfg.EmailCheck.ExtraDisposableDomains, cfg.EmailCheck.MXTimeout())
	agencyService := service.NewAgencyService(*cfg, service.OrchestratorDependencies{
		Identity:   accounts,
		Documents:  documents,
		Emails:     emails,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})
	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		Credentials: accounts,
		Logger:      logger,
	})

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Agencies:       handlers.NewAgencyHandler(agencyService),
		Invitations:    handlers.NewInvitationHandler(emails),
		Auth:           handlers.NewAuthHandler(authService),
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager(), accounts),
		Gatherer:       registry,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
