package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/hostfold/renewal-engine/internal/domain/entity"
)

// AttemptUpdate carries the fields persisted alongside a state transition
type AttemptUpdate struct {
	TransactionID       *string
	ConfirmationID      *string
	FailureReason       *entity.FailureReason
	NeedsReconciliation bool
}

// RenewalLedger is the single source of truth for in-flight renewal state.
// Every transition is conditional on the currently recorded state, so two
// overlapping job runs can never both advance the same attempt past the same
// step.
type RenewalLedger interface {
	// Create opens a new attempt. Returns errors.ErrAttemptExists when a live
	// (non-failed) attempt already occupies the (entitlement, cycle) slot.
	Create(ctx context.Context, attempt *entity.RenewalAttempt) error

	// GetByID retrieves an attempt by ID
	GetByID(ctx context.Context, id uuid.UUID) (*entity.RenewalAttempt, error)

	// GetOpenAttempt retrieves the live attempt for an entitlement's cycle,
	// or nil when none exists.
	GetOpenAttempt(ctx context.Context, entitlementID uuid.UUID, cycleKey string) (*entity.RenewalAttempt, error)

	// UpdateState transitions an attempt from expected to next, persisting
	// the update fields. Returns errors.ErrLedgerConflict when the recorded
	// state no longer matches expected.
	UpdateState(ctx context.Context, id uuid.UUID, expected, next entity.AttemptState, update AttemptUpdate) error

	// ListPending retrieves attempts still awaiting processing, oldest first
	ListPending(ctx context.Context, limit int) ([]*entity.RenewalAttempt, error)

	// ListNeedingReconciliation retrieves failed attempts where the charge
	// was captured but the registration was never extended.
	ListNeedingReconciliation(ctx context.Context, limit int) ([]*entity.RenewalAttempt, error)

	// ListByEntitlement retrieves all attempts for an entitlement, newest first
	ListByEntitlement(ctx context.Context, entitlementID uuid.UUID) ([]*entity.RenewalAttempt, error)

	// MarkResolved clears the reconciliation flag on a failed attempt
	MarkResolved(ctx context.Context, id uuid.UUID) error
}
