package command

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/hostfold/renewal-engine/internal/domain/entity"
	"github.com/hostfold/renewal-engine/internal/domain/service"
)

// DefaultWorkers is the per-run processing concurrency
const DefaultWorkers = 8

// RunRenewalsResult summarizes one batch run
type RunRenewalsResult struct {
	Scanned   int
	Processed int
	Errors    int
}

// RunRenewalsCommand executes one full renewal batch: scan for due
// entitlements, then drive each pending attempt through the orchestrator.
// Attempts are independent, so they are processed by a bounded worker pool;
// each attempt's own transitions stay strictly sequential inside
// ProcessAttempt.
type RunRenewalsCommand struct {
	scanner      *service.ScannerService
	orchestrator *service.OrchestratorService
	workers      int
	logger       *zap.Logger
}

// NewRunRenewalsCommand creates a new batch run command
func NewRunRenewalsCommand(
	scanner *service.ScannerService,
	orchestrator *service.OrchestratorService,
	workers int,
	logger *zap.Logger,
) *RunRenewalsCommand {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RunRenewalsCommand{
		scanner:      scanner,
		orchestrator: orchestrator,
		workers:      workers,
		logger:       logger,
	}
}

// Execute runs one batch. Per-attempt failures are counted and logged, never
// propagated: the ledger keeps them resumable for the next run. The returned
// error is reserved for failures that abort the whole run (the scan itself).
func (c *RunRenewalsCommand) Execute(ctx context.Context) (*RunRenewalsResult, error) {
	pending, err := c.scanner.Scan(ctx)
	if err != nil {
		return nil, err
	}

	result := &RunRenewalsResult{Scanned: len(pending)}

	jobs := make(chan *entity.RenewalAttempt)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for attempt := range jobs {
				err := c.orchestrator.ProcessAttempt(ctx, attempt.ID)
				mu.Lock()
				if err != nil {
					result.Errors++
				} else {
					result.Processed++
				}
				mu.Unlock()
				if err != nil {
					c.logger.Error("attempt left resumable",
						zap.String("attempt_id", attempt.ID.String()),
						zap.Error(err),
					)
				}
			}
		}()
	}

	for _, attempt := range pending {
		select {
		case <-ctx.Done():
			// Cancellation mid-run is safe: in-flight attempts stay pending
			// or charged and the next scan resumes them.
			close(jobs)
			wg.Wait()
			return result, ctx.Err()
		case jobs <- attempt:
		}
	}
	close(jobs)
	wg.Wait()

	c.logger.Info("renewal batch finished",
		zap.Int("scanned", result.Scanned),
		zap.Int("processed", result.Processed),
		zap.Int("errors", result.Errors),
	)
	return result, nil
}
