package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/hostfold/renewal-engine/internal/domain/service"
)

// LogNotifier emits renewal events to the structured log. It stands in for
// the mail pipeline; the event shape is what a real sender would consume.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a new log-backed notifier
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// Notify logs the renewal event. Payment-declined and charged-but-not-extended
// failures carry different remediation, so PaymentCaptured is always logged.
func (n *LogNotifier) Notify(ctx context.Context, event service.RenewalEvent) error {
	fields := []zap.Field{
		zap.String("entitlement_id", event.EntitlementID.String()),
		zap.String("account_id", event.AccountID.String()),
		zap.String("domain", event.DomainName),
		zap.String("outcome", string(event.Outcome)),
	}
	if event.Reason != "" {
		fields = append(fields, zap.String("reason", event.Reason))
	}
	if event.NewExpiresAt != nil {
		fields = append(fields, zap.Time("new_expires_at", *event.NewExpiresAt))
	}

	switch event.Outcome {
	case service.OutcomeFailure:
		fields = append(fields, zap.Bool("payment_captured", event.PaymentCaptured))
		n.logger.Warn("renewal notification", fields...)
	default:
		n.logger.Info("renewal notification", fields...)
	}
	return nil
}
