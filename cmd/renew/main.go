package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/hostfold/renewal-engine/internal/application/command"
	"github.com/hostfold/renewal-engine/internal/domain/service"
	"github.com/hostfold/renewal-engine/internal/infrastructure/config"
	"github.com/hostfold/renewal-engine/internal/infrastructure/external/payments"
	"github.com/hostfold/renewal-engine/internal/infrastructure/external/registrar"
	"github.com/hostfold/renewal-engine/internal/infrastructure/logging"
	"github.com/hostfold/renewal-engine/internal/infrastructure/notify"
	"github.com/hostfold/renewal-engine/internal/infrastructure/persistence/pool"
	"github.com/hostfold/renewal-engine/internal/infrastructure/persistence/repository"
)

// Cron-invoked batch entry point. Exits non-zero only when startup itself
// fails (bad config, ledger store unreachable); individual renewal failures
// are logged and left resumable in the ledger.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logging.Init(&cfg.Sentry); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logging.Sync()

	logging.Logger.Info("Starting renewal batch run",
		zap.Int("lookahead_days", cfg.Renewal.LookaheadDays),
		zap.Int("workers", cfg.Renewal.Workers),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool, err := pool.NewPool(ctx, cfg.Database)
	if err != nil {
		logging.Logger.Fatal("Failed to create database pool", zap.Error(err))
	}
	defer pool.Close(dbPool)

	if err := pool.Ping(ctx, dbPool); err != nil {
		logging.Logger.Fatal("Failed to ping database", zap.Error(err))
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

	runCmd := command.NewRunRenewalsCommand(scanner, orchestrator, cfg.Renewal.Workers, logging.Logger)

	result, err := runCmd.Execute(ctx)
	if err != nil {
		if ctx.Err() != nil {
			// Interrupted mid-run: in-flight attempts stay resumable.
			processed := 0
			if result != nil {
				processed = result.Processed
			}
			logging.Logger.Warn("Renewal run interrupted", zap.Int("processed", processed))
			return
		}
		logging.Logger.Fatal("Renewal run aborted", zap.Error(err))
	}

	logging.Logger.Info("Renewal run finished",
		zap.Int("scanned", result.Scanned),
		zap.Int("processed", result.Processed),
		zap.Int("errors", result.Errors),
	)
}
