package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hostfold/renewal-engine/internal/domain/service"
	"github.com/hostfold/renewal-engine/internal/infrastructure/config"
	"github.com/hostfold/renewal-engine/internal/infrastructure/external/payments"
	"github.com/hostfold/renewal-engine/internal/infrastructure/external/registrar"
	"github.com/hostfold/renewal-engine/internal/infrastructure/logging"
	"github.com/hostfold/renewal-engine/internal/infrastructure/notify"
	"github.com/hostfold/renewal-engine/internal/infrastructure/persistence/pool"
	"github.com/hostfold/renewal-engine/internal/infrastructure/persistence/repository"
	workertasks "github.com/hostfold/renewal-engine/internal/worker/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logging.Init(&cfg.Sentry); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logging.Sync()

	logging.Logger.Info("Starting renewal worker")

	ctx := context.Background()
	dbPool, err := pool.NewPool(ctx, cfg.Database)
	if err != nil {
		logging.Logger.Fatal("Failed to create database pool", zap.Error(err))
	}
	defer pool.Close(dbPool)

	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		logging.Logger.Fatal("Failed to parse Redis URL", zap.Error(err))
	}
	opts.PoolSize = cfg.Redis.PoolSize
	redisClient := redis.NewClient(opts)
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		logging.Logger.Fatal("Failed to ping Redis", zap.Error(err))
	}

	entitlementRepo := repository.NewEntitlementRepository(dbPool)
	ledger := repository.NewRenewalLedger(dbPool)

	gateway := payments.NewClient(payments.Config{
		BaseURL: cfg.Gateway.BaseURL,
		APIKey:  cfg.Gateway.APIKey,
		Timeout: cfg.Gateway.Timeout,
	}, logging.WithComponent("payments"))

	registrarClient := registrar.NewClient(registrar.Config{
		BaseURL: cfg.Registrar.BaseURL,
		APIKey:  cfg.Registrar.APIKey,
		Timeout: cfg.Registrar.Timeout,
	}, logging.WithComponent("registrar"))

	notifier := notify.NewLogNotifier(logging.WithComponent("notifier"))

	scanner := service.NewScannerService(
		entitlementRepo,
		ledger,
		notifier,
		cfg.Renewal.Lookahead(),
		cfg.Renewal.ScanLimit,
		logging.WithComponent("scanner"),
	)
	orchestrator := service.NewOrchestratorService(
		ledger,
		entitlementRepo,
		gateway,
		registrarClient,
		notifier,
		cfg.Renewal.MaxRetries,
		cfg.Renewal.BaseBackoff,
		logging.WithComponent("orchestrator"),
	)
	asynqClient := asynq.NewClientFromRedisClient(redisClient)
	defer asynqClient.Close()

	taskHandlers := workertasks.NewTaskHandlers(scanner, orchestrator, asynqClient)

	server := asynq.NewServerFromRedisClient(redisClient, asynq.Config{
		Concurrency: cfg.Renewal.Workers,
		Queues: map[string]int{
			"critical": 6,
			"default":  3,
			"low":      1,
		},
		RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
			// Exponential backoff: 2^n seconds
			return time.Duration(1<<uint(n)) * time.Second
		},
	})

	mux := asynq.NewServeMux()
	workertasks.RegisterHandlers(mux, taskHandlers)

	if err := server.Start(mux); err != nil {
		logging.Logger.Fatal("Failed to start worker", zap.Error(err))
	}

	scheduler := asynq.NewSchedulerFromRedisClient(redisClient, nil)
	workertasks.RegisterScheduledTasks(scheduler)

	if err := scheduler.Start(); err != nil {
		logging.Logger.Fatal("Failed to start scheduler", zap.Error(err))
	}

	logging.Logger.Info("Worker started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Logger.Info("Shutting down worker...")

	scheduler.Shutdown()
	server.Shutdown()

	logging.Logger.Info("Worker exited")
}
