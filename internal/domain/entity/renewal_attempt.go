package entity

import (
	"time"

	"github.com/google/uuid"
)

// AttemptState represents the state of a renewal attempt
type AttemptState string

const (
	AttemptStatePending   AttemptState = "pending"
	AttemptStateCharged   AttemptState = "charged"
	AttemptStateExtended  AttemptState = "extended"
	AttemptStateCompleted AttemptState = "completed"
	AttemptStateFailed    AttemptState = "failed"
)

// FailureReason classifies why a renewal attempt failed
type FailureReason string

const (
	ReasonPaymentDeclined       FailureReason = "payment_declined"
	ReasonGatewayUnavailable    FailureReason = "payment_gateway_unavailable"
	ReasonRegistrarExtendFailed FailureReason = "registrar_extend_failed"
)

// RenewalAttempt is the ledger record for one renewal of one entitlement
// within one cycle. At most one non-failed attempt may exist per
// (entitlement id, cycle key) pair; that pair is the idempotency key that
// keeps overlapping job runs from double-charging.
type RenewalAttempt struct {
	ID                   uuid.UUID
	EntitlementID        uuid.UUID
	CycleKey             string
	State                AttemptState
	TransactionID        *string
	ConfirmationID       *string
	FailureReason        *FailureReason
	NeedsReconciliation  bool
	ChargedAt            *time.Time
	ExtendedAt           *time.Time
	CompletedAt          *time.Time
	FailedAt             *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// NewRenewalAttempt opens a pending attempt for an entitlement's current cycle
func NewRenewalAttempt(entitlementID uuid.UUID, cycleKey string) *RenewalAttempt {
	now := time.Now()
	return &RenewalAttempt{
		ID:            uuid.New(),
		EntitlementID: entitlementID,
		CycleKey:      cycleKey,
		State:         AttemptStatePending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// IsTerminal returns true once the attempt can no longer be advanced
func (a *RenewalAttempt) IsTerminal() bool {
	return a.State == AttemptStateCompleted || a.State == AttemptStateFailed
}

// IsLive returns true while the attempt still occupies its cycle slot
func (a *RenewalAttempt) IsLive() bool {
	return a.State != AttemptStateFailed
}

// MarkCharged records a confirmed charge and its gateway transaction id
func (a *RenewalAttempt) MarkCharged(transactionID string) {
	now := time.Now()
	a.State = AttemptStateCharged
	a.TransactionID = &transactionID
	a.ChargedAt = &now
	a.UpdatedAt = now
}

// MarkExtended records a confirmed registrar extension
func (a *RenewalAttempt) MarkExtended(confirmationID string) {
	now := time.Now()
	a.State = AttemptStateExtended
	a.ConfirmationID = &confirmationID
	a.ExtendedAt = &now
	a.UpdatedAt = now
}

// MarkCompleted closes the attempt successfully
func (a *RenewalAttempt) MarkCompleted() {
	now := time.Now()
	a.State = AttemptStateCompleted
	a.CompletedAt = &now
	a.UpdatedAt = now
}

// MarkFailed closes the attempt with a failure reason. A failure after the
// charge succeeded keeps the transaction id and flags the attempt for manual
// reconciliation: money was taken but the registration was not extended.
func (a *RenewalAttempt) MarkFailed(reason FailureReason) {
	now := time.Now()
	if a.State == AttemptStateCharged {
		a.NeedsReconciliation = true
	}
	a.State = AttemptStateFailed
	a.FailureReason = &reason
	a.FailedAt = &now
	a.UpdatedAt = now
}

// Resolve clears the reconciliation flag once support has settled the attempt
func (a *RenewalAttempt) Resolve() {
	a.NeedsReconciliation = false
	a.UpdatedAt = time.Now()
}
