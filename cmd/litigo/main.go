package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/litigo-hq/litigo/internal/admission"
	"github.com/litigo-hq/litigo/internal/app"
	"github.com/litigo-hq/litigo/internal/audit"
	audithttp "github.com/litigo-hq/litigo/internal/audit/http"
	"github.com/litigo-hq/litigo/internal/auth"
	"github.com/litigo-hq/litigo/internal/guard"
	"github.com/litigo-hq/litigo/internal/impersonate"
	"github.com/litigo-hq/litigo/internal/observability"
	"github.com/litigo-hq/litigo/internal/platform/cache"
	"github.com/litigo-hq/litigo/internal/platform/db"
	"github.com/litigo-hq/litigo/internal/rbac"
	"github.com/litigo-hq/litigo/internal/tenants"
	"github.com/litigo-hq/litigo/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	catalog := rbac.NewCatalog()
	evaluator := rbac.NewEvaluator(catalog)

	codec := auth.NewTokenCodec(cfg.TokenSecret, cfg.TokenTTL)
	scope := db.NewTenantScope(pool, logger)
	tenantsRepo := tenants.NewRepository(pool, scope)
	authRepo := auth.NewRepository(pool)
	resolver := auth.NewResolver(authRepo, tenantsRepo, catalog, codec)

	recorder := audit.NewRecorder(pool)
	auditRepo := audit.NewRepository(scope)
	auditService := audit.NewService(auditRepo)

	authService := auth.NewService(authRepo, codec)
	authHandler := auth.NewHandler(logger, authService, recorder)
	auditHandler := audithttp.NewHandler(logger, auditService)
	tenantsHandler := tenants.NewHandler(logger, tenantsRepo)

	impersonateService := impersonate.NewService(
		logger, catalog, evaluator, authRepo, tenantsRepo, recorder, codec, metrics, cfg.ImpersonationTTL,
	)
	impersonateHandler := impersonate.NewHandler(logger, impersonateService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		Guard:              guard.Guard{Resolver: resolver, Evaluator: evaluator, Logger: logger, Metrics: metrics},
		Limiter:            admission.NewLimiter(redisClient, logger),
		Policies:           cfg.AdmissionPolicies(),
		AuthHandler:        authHandler,
		AuditHandler:       auditHandler,
		TenantsHandler:     tenantsHandler,
		ImpersonateHandler: impersonateHandler,
		JobsHandler:        jobsHandler,
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", slog.Any("error", err))
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server run", slog.Any("error", err))
			os.Exit(1)
		}
	}
}
