package tasks

import (
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/hostfold/renewal-engine/internal/domain/service"
	"github.com/hostfold/renewal-engine/internal/infrastructure/logging"
)

// Task names
const (
	TypeScanRenewals   = "renewal:scan"
	TypeProcessAttempt = "renewal:process_attempt"
)

// TaskHandlers holds dependencies for all task handlers.
type TaskHandlers struct {
	scanner      *service.ScannerService
	orchestrator *service.OrchestratorService
	client       *asynq.Client
	logger       *zap.Logger
}

// NewTaskHandlers creates task handlers wired to the renewal services.
func NewTaskHandlers(
	scanner *service.ScannerService,
	orchestrator *service.OrchestratorService,
	client *asynq.Client,
) *TaskHandlers {
	return &TaskHandlers{
		scanner:      scanner,
		orchestrator: orchestrator,
		client:       client,
		logger:       logging.Logger,
	}
}

// RegisterHandlers registers all task handlers with the server mux.
func RegisterHandlers(mux *asynq.ServeMux, h *TaskHandlers) {
	mux.HandleFunc(TypeScanRenewals, h.HandleScanRenewals)
	mux.HandleFunc(TypeProcessAttempt, h.HandleProcessAttempt)
}

// RegisterScheduledTasks registers all scheduled (cron) tasks
func RegisterScheduledTasks(scheduler *asynq.Scheduler) {
	// Daily renewal scan at 04:00 UTC
	_, err := scheduler.Register("0 4 * * *", asynq.NewTask(TypeScanRenewals, nil))
	if err != nil {
		logging.Logger.Error("Failed to schedule renewal scan", zap.Error(err))
	}
}
