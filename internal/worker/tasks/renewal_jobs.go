package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// ProcessAttemptPayload is the payload for processing one renewal attempt
type ProcessAttemptPayload struct {
	AttemptID uuid.UUID `json:"attempt_id"`
}

// HandleScanRenewals runs the eligibility scan and fans out one
// process-attempt task per pending attempt. Enqueue failures are logged and
// skipped; the next scan picks those attempts up again.
func (h *TaskHandlers) HandleScanRenewals(ctx context.Context, t *asynq.Task) error {
	pending, err := h.scanner.Scan(ctx)
	if err != nil {
		return fmt.Errorf("renewal scan failed: %w", err)
	}

	enqueued := 0
	for _, attempt := range pending {
		payload, err := json.Marshal(ProcessAttemptPayload{AttemptID: attempt.ID})
		if err != nil {
			return err
		}
		task := asynq.NewTask(TypeProcessAttempt, payload)
		if _, err := h.client.EnqueueContext(ctx, task, asynq.Queue("default")); err != nil {
			h.logger.Error("failed to enqueue process-attempt task",
				zap.String("attempt_id", attempt.ID.String()),
				zap.Error(err),
			)
			continue
		}
		enqueued++
	}

	h.logger.Info("renewal scan enqueued attempts",
		zap.Int("pending", len(pending)),
		zap.Int("enqueued", enqueued),
	)
	return nil
}

// HandleProcessAttempt drives one renewal attempt through the orchestrator.
// A returned error leaves the attempt resumable and lets asynq retry with
// its own backoff; the ledger's conditional updates make the retry safe.
func (h *TaskHandlers) HandleProcessAttempt(ctx context.Context, t *asynq.Task) error {
	var p ProcessAttemptPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("invalid payload: %v: %w", err, asynq.SkipRetry)
	}

	if err := h.orchestrator.ProcessAttempt(ctx, p.AttemptID); err != nil {
		return fmt.Errorf("attempt %s not finished: %w", p.AttemptID, err)
	}
	return nil
}
