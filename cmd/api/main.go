// Copyright (c) 2026 LifeLink. All rights reserved.
// Author: thanh.phandinh.vn@gmail.com

// Command api is the entry point for the LifeLink HTTP API server.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables.
//  3. Connect to PostgreSQL (pgxpool).
//  4. Connect to Redis.
//  5. Run database migrations (idempotent).
//  6. Wire the security engine and HTTP handlers.
//  7. Start the expiry sweeper and HTTP server with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
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

	"github.com/thanhphan-dev/lifelink/internal/api"
	"github.com/thanhphan-dev/lifelink/internal/jobs/sweeper"
	"github.com/thanhphan-dev/lifelink/internal/platform/config"
	"github.com/thanhphan-dev/lifelink/internal/platform/constants"
	"github.com/thanhphan-dev/lifelink/internal/platform/migration"
	pgstore "github.com/thanhphan-dev/lifelink/internal/platform/postgres"
	redisstore "github.com/thanhphan-dev/lifelink/internal/platform/redis"
	"github.com/thanhphan-dev/lifelink/internal/security/cache"
	"github.com/thanhphan-dev/lifelink/internal/security/devicetrust"
	"github.com/thanhphan-dev/lifelink/internal/security/notify"
	"github.com/thanhphan-dev/lifelink/internal/security/session"
	"github.com/thanhphan-dev/lifelink/internal/security/token"
	"github.com/thanhphan-dev/lifelink/internal/users/auth"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	rawLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Add global context to all log entries.
	log := rawLog.With(slog.String("app", "lifelink"))
	slog.SetDefault(log)

	log.Info("[LifeLink] service_initializing")

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		debugLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		log = debugLog.With(slog.String("app", "lifelink"))
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
	)

	// Root context for startup. Use a 30s deadline so misconfiguration is
	// caught quickly rather than hanging indefinitely.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// Application context: cancelled on shutdown to stop background workers.
	appCtx, appCancel := context.WithCancel(context.Background())
	defer appCancel()

	// ── 3. PostgreSQL ─────────────────────────────────────────────────────
	pool, err := pgstore.NewPool(startupCtx, cfg.DatabaseURL, log)
	must(log, err, "connect to postgres")
	defer func() {
		log.Info("closing postgres pool")
		pool.Close()
	}()

	// ── 4. Redis ──────────────────────────────────────────────────────────
	rdb, err := redisstore.NewClient(startupCtx, cfg.RedisURL, log)
	must(log, err, "connect to redis")
	defer func() {
		log.Info("closing redis client")
		if cerr := rdb.Close(); cerr != nil {
			log.Error("redis close error", slog.Any("error", cerr))
		}
	}()

	// ── 5. Migrations ─────────────────────────────────────────────────────
	must(log, migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, log), "run migrations")

	// ── 6. Security Engine ────────────────────────────────────────────────
	// Device trust first: it records the security events every other
	// component emits.
	devices := devicetrust.NewService(devicetrust.NewPostgresStore(pool))

	notifications := notify.NewManager(
		notify.WithQueueCapacity(constants.NotifyQueueCapacity))

	sessionCache := cache.New[*session.Session](
		constants.SessionCacheCeiling, constants.SessionCacheTTL)
	sessions := session.NewManager(session.NewPostgresStore(pool), sessionCache,
		session.WithTTL(cfg.RefreshTokenTTL),
		session.WithEventRecorder(devices),
		session.WithNotifier(notifications))

	tokenManager := token.NewManager(cfg.JWTSecret, constants.AuthIssuer,
		cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	tokens := token.NewService(tokenManager, token.NewPostgresRefreshStore(pool))

	identityCache := cache.New[*auth.User](
		constants.IdentityCacheCeiling, constants.IdentityCacheTTL)

	// ── 7. Domain Wiring ──────────────────────────────────────────────────
	authService := auth.NewService(
		auth.NewUserRepository(pool),
		auth.NewResetTokenRepository(rdb),
		auth.NewVerificationTokenRepository(rdb),
		tokens, sessions, devices, identityCache,
	)
	authHandler := auth.NewHandler(authService)
	eventsHandler := api.NewEventsHandler(notifications, log)

	// ── 8. Health handlers (wired with real dependency checkers) ──────────
	liveness, readiness := api.NewHealthHandlers(api.HealthDependencies{
		CheckDatabase: func() error {
			return pgstore.Ping(context.Background(), pool)
		},
		CheckCache: func() error {
			return redisstore.Ping(context.Background(), rdb)
		},
	}, log)

	// ── 9. HTTP Server ────────────────────────────────────────────────────
	handlers := api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Auth:      authHandler,
		Events:    eventsHandler,
	}

	server := api.NewServer(appCtx, cfg, log, authService, handlers)

	// ── 10. Background Expiry Sweeper ─────────────────────────────────────
	expirySweeper := sweeper.New(sessions, tokens, cfg.SweepInterval, log)
	go expirySweeper.Run(appCtx)

	// ── 11. Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until OS signal or server error.
	select {
	case sig := <-quit:
		log.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server startup error", slog.Any("error", err))
	}

	// Stop background workers, then give in-flight requests time to complete.
	appCancel()

	shutdownTimeout := constants.ShutdownTimeout
	log.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))

	if err := server.Shutdown(shutdownTimeout); err != nil {
		log.Error("shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	log.Info("server stopped cleanly")
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// It is intentionally limited to startup wiring. After startup, all errors
// must be returned and handled explicitly (never panic).
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
