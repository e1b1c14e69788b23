package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hostfold/renewal-engine/internal/application/command"
	"github.com/hostfold/renewal-engine/internal/application/middleware"
	"github.com/hostfold/renewal-engine/internal/application/query"
	"github.com/hostfold/renewal-engine/internal/infrastructure/config"
	"github.com/hostfold/renewal-engine/internal/infrastructure/logging"
	"github.com/hostfold/renewal-engine/internal/infrastructure/persistence/pool"
	"github.com/hostfold/renewal-engine/internal/infrastructure/persistence/repository"
	"github.com/hostfold/renewal-engine/internal/interfaces/http/handlers"
)

// Ops API: reconciliation queue and renewal history for support staff.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logging.Init(&cfg.Sentry); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logging.Sync()

	logging.Logger.Info("Starting renewal ops API",
		zap.Int("port", cfg.Server.Port),
		zap.String("environment", cfg.Sentry.Environment),
	)

	ctx := context.Background()
	dbPool, err := pool.NewPool(ctx, cfg.Database)
	if err != nil {
		logging.Logger.Fatal("Failed to create database pool", zap.Error(err))
	}
	defer pool.Close(dbPool)

	if err := pool.Ping(ctx, dbPool); err != nil {
		logging.Logger.Fatal("Failed to ping database", zap.Error(err))
	}

	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		logging.Logger.Fatal("Failed to parse Redis URL", zap.Error(err))
	}
	opts.PoolSize = cfg.Redis.PoolSize
	redisClient := redis.NewClient(opts)
	defer redisClient.Close()

	ledger := repository.NewRenewalLedger(dbPool)

	reconciliationQuery := query.NewListReconciliationQuery(ledger)
	attemptsQuery := query.NewListAttemptsQuery(ledger)
	resolveCmd := command.NewResolveAttemptCommand(ledger)

	attemptsHandler := handlers.NewAttemptsHandler(reconciliationQuery, attemptsQuery, resolveCmd)
	healthHandler := handlers.NewHealthHandler(dbPool)

	rateLimiter := middleware.NewRateLimiter(redisClient, true, logging.WithComponent("ratelimit")) // fail open

	if cfg.Sentry.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(
		gin.Recovery(),
		logging.RequestMiddleware(logging.Logger),
	)

	router.GET("/health", healthHandler.Live)
	router.GET("/ready", healthHandler.Ready)

	api := router.Group("/api/v1")
	api.Use(
		rateLimiter.Middleware(middleware.RateLimitConfig{Rate: 10, Burst: 20}),
		middleware.AdminAuth(cfg.Auth.JWTSecret),
	)
	{
		api.GET("/attempts/reconciliation", attemptsHandler.ListReconciliation)
		api.GET("/entitlements/:id/attempts", attemptsHandler.ListByEntitlement)
		api.POST("/attempts/:id/resolve", attemptsHandler.Resolve)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Logger.Info("Shutting down ops API...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logging.Logger.Info("Ops API exited")
}
