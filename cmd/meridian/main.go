package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridian-crm/meridian/internal/app"
	"github.com/meridian-crm/meridian/internal/authz"
	"github.com/meridian-crm/meridian/internal/entity"
	"github.com/meridian-crm/meridian/internal/gateway"
	"github.com/meridian-crm/meridian/internal/observability"
	"github.com/meridian-crm/meridian/internal/platform/cache"
	"github.com/meridian-crm/meridian/internal/platform/db"
	"github.com/meridian-crm/meridian/internal/provision"
	"github.com/meridian-crm/meridian/internal/retry"
	"github.com/meridian-crm/meridian/internal/session"
	"github.com/meridian-crm/meridian/jobs"
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	registry := gateway.DefaultRegistry()
	pg := gateway.NewPG(dbpool, registry, logger)
	auth := gateway.NewRedisAuth(redisClient, cfg.SessionTTL, logger)

	retryPolicy := retry.Policy{
		MaxRetries:   cfg.RetryMaxAttempts,
		InitialDelay: cfg.RetryInitialDelay,
		Multiplier:   cfg.RetryMultiplier,
	}

	sessions := session.NewRegistry(session.Deps{
		Auth:      auth,
		Data:      pg,
		Directory: pg,
		Rules:     pg,
		Registry:  registry,
		Retry:     retryPolicy,
		Logger:    logger,
	})
	if err := sessions.Start(ctx); err != nil {
		logger.Error("subscribe auth events", slog.Any("error", err))
		os.Exit(1)
	}
	defer sessions.Close()

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := asynqClient.Close(); err != nil {
			logger.Warn("asynq close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	provisionService := provision.NewService(pg, jobs.NewEnqueuer(asynqClient), retryPolicy, logger)

	sessionHandler := session.NewHandler(logger, sessions)
	entityHandler := entity.NewHandler(logger, registry, sessions, metrics)
	permissionHandler := authz.NewHandler(logger, pg)
	accountHandler := provision.NewHandler(logger, provisionService)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		Sessions:          sessions,
		SessionHandler:    sessionHandler,
		EntityHandler:     entityHandler,
		PermissionHandler: permissionHandler,
		AccountHandler:    accountHandler,
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
