package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hostfold/renewal-engine/internal/domain/entity"
	domainerrors "github.com/hostfold/renewal-engine/internal/domain/errors"
	"github.com/hostfold/renewal-engine/internal/domain/repository"
)

const (
	// DefaultMaxRetries bounds transient retries per external call
	DefaultMaxRetries = 3
	// DefaultBaseBackoff is the first retry delay; subsequent delays double
	DefaultBaseBackoff = 2 * time.Second
	// maxStateHops bounds one ProcessAttempt pass through the state machine,
	// including conflict re-reads.
	maxStateHops = 8
)

// OrchestratorService drives a renewal attempt through its state machine:
//
//	pending --charge ok--> charged --extend ok--> extended --close--> completed
//	pending --declined--------------------------------------------> failed
//	charged --extend exhausted------------------------------------> failed (reconciliation)
//
// Every transition goes through the ledger's conditional update, so two
// overlapping runs can never both advance the same attempt past the same
// step. The registrar is never called without a confirmed charge.
type OrchestratorService struct {
	ledger       repository.RenewalLedger
	entitlements repository.EntitlementRepository
	gateway      PaymentGateway
	registrar    Registrar
	notifier     Notifier
	maxRetries   int
	baseBackoff  time.Duration
	logger       *zap.Logger
}

// NewOrchestratorService creates a new renewal orchestrator
func NewOrchestratorService(
	ledger repository.RenewalLedger,
	entitlements repository.EntitlementRepository,
	gateway PaymentGateway,
	registrar Registrar,
	notifier Notifier,
	maxRetries int,
	baseBackoff time.Duration,
	logger *zap.Logger,
) *OrchestratorService {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	if baseBackoff <= 0 {
		baseBackoff = DefaultBaseBackoff
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrchestratorService{
		ledger:       ledger,
		entitlements: entitlements,
		gateway:      gateway,
		registrar:    registrar,
		notifier:     notifier,
		maxRetries:   maxRetries,
		baseBackoff:  baseBackoff,
		logger:       logger,
	}
}

// ProcessAttempt advances one renewal attempt as far as it can. Re-invoking
// on a terminal attempt is a no-op. A non-nil error means the attempt was
// left in a resumable state (pending or charged) and the next run picks it
// up; terminal failures are recorded in the ledger, not returned.
func (o *OrchestratorService) ProcessAttempt(ctx context.Context, id uuid.UUID) error {
	for hop := 0; hop < maxStateHops; hop++ {
		attempt, err := o.ledger.GetByID(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to load attempt: %w", err)
		}
		if attempt.IsTerminal() {
			return nil
		}

		ent, err := o.entitlements.GetByID(ctx, attempt.EntitlementID)
		if err != nil {
			return fmt.Errorf("failed to load entitlement: %w", err)
		}

		switch attempt.State {
		case entity.AttemptStatePending:
			err = o.charge(ctx, attempt, ent)
		case entity.AttemptStateCharged:
			err = o.extend(ctx, attempt, ent)
		case entity.AttemptStateExtended:
			err = o.complete(ctx, attempt, ent)
		default:
			return fmt.Errorf("unexpected attempt state %q", attempt.State)
		}

		if err != nil {
			// Another processor advanced the attempt first; re-read and let
			// the loop continue from whatever state it reached.
			if errors.Is(err, domainerrors.ErrLedgerConflict) {
				o.logger.Warn("ledger conflict, re-reading attempt",
					zap.String("attempt_id", attempt.ID.String()),
					zap.String("state", string(attempt.State)),
				)
				continue
			}
			return err
		}
	}
	return fmt.Errorf("attempt %s did not reach a stable state", id)
}

// charge takes payment for the renewal. The attempt id doubles as the
// gateway idempotency key, so a retried charge cannot double-bill.
func (o *OrchestratorService) charge(ctx context.Context, attempt *entity.RenewalAttempt, ent *entity.Entitlement) error {
	if ent.PaymentMethodID == nil || *ent.PaymentMethodID == "" {
		return o.fail(ctx, attempt, ent, entity.AttemptStatePending, entity.ReasonPaymentDeclined, nil)
	}

	var result *ChargeResult
	var err error
	for try := 0; try <= o.maxRetries; try++ {
		result, err = o.gateway.Charge(ctx, *ent.PaymentMethodID, ent.RenewalPrice, attempt.ID.String())
		if err == nil {
			break
		}
		if errors.Is(err, domainerrors.ErrPaymentDeclined) {
			o.logger.Info("payment declined",
				zap.String("attempt_id", attempt.ID.String()),
				zap.String("domain", ent.DomainName),
			)
			return o.fail(ctx, attempt, ent, entity.AttemptStatePending, entity.ReasonPaymentDeclined, nil)
		}
		// Gateway unavailable or unknown: transient, retry with backoff.
		if try < o.maxRetries {
			if werr := o.wait(ctx, try); werr != nil {
				return werr
			}
		}
	}
	if err != nil {
		// No money moved; leave pending for the next run.
		return fmt.Errorf("%w: %v", domainerrors.ErrGatewayUnavailable, err)
	}

	txID := result.TransactionID
	update := repository.AttemptUpdate{TransactionID: &txID}
	if err := o.ledger.UpdateState(ctx, attempt.ID, entity.AttemptStatePending, entity.AttemptStateCharged, update); err != nil {
		return err
	}

	o.logger.Info("renewal charged",
		zap.String("attempt_id", attempt.ID.String()),
		zap.String("domain", ent.DomainName),
		zap.String("transaction_id", txID),
		zap.String("amount", ent.RenewalPrice.String()),
	)
	return nil
}

// extend asks the registrar to push the registration out by the entitlement's
// term. Runs only after the charge is durably recorded.
func (o *OrchestratorService) extend(ctx context.Context, attempt *entity.RenewalAttempt, ent *entity.Entitlement) error {
	years := ent.TermYears
	if years <= 0 {
		years = 1
	}

	var result *ExtendResult
	var err error
	for try := 0; try <= o.maxRetries; try++ {
		result, err = o.registrar.Extend(ctx, ent.DomainName, years, attempt.ID.String())
		if err == nil {
			break
		}
		if try < o.maxRetries {
			o.logger.Warn("registrar extend failed, retrying",
				zap.String("attempt_id", attempt.ID.String()),
				zap.String("domain", ent.DomainName),
				zap.Int("try", try+1),
				zap.Error(err),
			)
			if werr := o.wait(ctx, try); werr != nil {
				return werr
			}
		}
	}
	if err != nil {
		// Money was captured but the domain was not extended. Terminal, but
		// flagged so support can settle it; the transaction id stays on the
		// ledger row as evidence.
		o.logger.Error("registrar extend exhausted retries",
			zap.String("attempt_id", attempt.ID.String()),
			zap.String("domain", ent.DomainName),
			zap.Error(err),
		)
		return o.fail(ctx, attempt, ent, entity.AttemptStateCharged, entity.ReasonRegistrarExtendFailed, err)
	}

	// Advance the expiration before closing the step; the conditional update
	// means a stale prior expiration cannot roll the date back.
	if err := o.entitlements.AdvanceExpiration(ctx, ent.ID, ent.ExpiresAt, result.NewExpiresAt); err != nil {
		return fmt.Errorf("failed to advance expiration: %w", err)
	}

	confID := result.ConfirmationID
	update := repository.AttemptUpdate{ConfirmationID: &confID}
	if err := o.ledger.UpdateState(ctx, attempt.ID, entity.AttemptStateCharged, entity.AttemptStateExtended, update); err != nil {
		return err
	}

	o.logger.Info("registration extended",
		zap.String("attempt_id", attempt.ID.String()),
		zap.String("domain", ent.DomainName),
		zap.String("confirmation_id", confID),
		zap.Time("new_expires_at", result.NewExpiresAt),
	)
	return nil
}

// complete closes an extended attempt and notifies the account holder
func (o *OrchestratorService) complete(ctx context.Context, attempt *entity.RenewalAttempt, ent *entity.Entitlement) error {
	if err := o.ledger.UpdateState(ctx, attempt.ID, entity.AttemptStateExtended, entity.AttemptStateCompleted, repository.AttemptUpdate{}); err != nil {
		return err
	}

	expiresAt := ent.ExpiresAt
	_ = o.notifier.Notify(ctx, RenewalEvent{
		EntitlementID: ent.ID,
		AccountID:     ent.AccountID,
		DomainName:    ent.DomainName,
		Outcome:       OutcomeSuccess,
		NewExpiresAt:  &expiresAt,
	})

	o.logger.Info("renewal completed",
		zap.String("attempt_id", attempt.ID.String()),
		zap.String("domain", ent.DomainName),
	)
	return nil
}

// fail records a terminal failure and sends the matching notification. A
// failure out of charged keeps the transaction id and raises the
// reconciliation flag.
func (o *OrchestratorService) fail(ctx context.Context, attempt *entity.RenewalAttempt, ent *entity.Entitlement, from entity.AttemptState, reason entity.FailureReason, cause error) error {
	update := repository.AttemptUpdate{
		FailureReason:       &reason,
		NeedsReconciliation: from == entity.AttemptStateCharged,
	}
	if err := o.ledger.UpdateState(ctx, attempt.ID, from, entity.AttemptStateFailed, update); err != nil {
		return err
	}

	_ = o.notifier.Notify(ctx, RenewalEvent{
		EntitlementID:   ent.ID,
		AccountID:       ent.AccountID,
		DomainName:      ent.DomainName,
		Outcome:         OutcomeFailure,
		Reason:          string(reason),
		PaymentCaptured: from == entity.AttemptStateCharged,
	})

	if cause != nil {
		o.logger.Error("renewal failed",
			zap.String("attempt_id", attempt.ID.String()),
			zap.String("domain", ent.DomainName),
			zap.String("reason", string(reason)),
			zap.Error(cause),
		)
	}
	return nil
}

// wait sleeps for the exponential backoff delay of the given try, honoring
// context cancellation.
func (o *OrchestratorService) wait(ctx context.Context, try int) error {
	delay := o.baseBackoff * time.Duration(1<<uint(try))
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
