package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hostfold/renewal-engine/internal/domain/valueobject"
)

// ChargeResult is the gateway's answer to a charge request
type ChargeResult struct {
	TransactionID string
}

// PaymentGateway charges a stored payment method. Implementations are remote,
// fallible and possibly duplicating; the idempotency key makes a retried
// charge recognizable as the same logical payment.
type PaymentGateway interface {
	Charge(ctx context.Context, paymentMethodID string, amount valueobject.Money, idempotencyKey string) (*ChargeResult, error)
}

// ExtendResult is the registrar's answer to an extension request
type ExtendResult struct {
	ConfirmationID string
	NewExpiresAt   time.Time
}

// Registrar extends a domain registration by a number of years. The
// idempotency key is forwarded so a retried call is recognized as the same
// logical extension (best effort on the registrar side).
type Registrar interface {
	Extend(ctx context.Context, domainName string, years int, idempotencyKey string) (*ExtendResult, error)
}

// Outcome classifies a renewal notification
type Outcome string

const (
	OutcomeUpcoming Outcome = "upcoming"
	OutcomeSuccess  Outcome = "success"
	OutcomeFailure  Outcome = "failure"
)

// RenewalEvent is delivered to the account holder. PaymentCaptured
// distinguishes "payment failed, update your payment method" from "payment
// succeeded but the renewal could not complete, support has been notified" —
// the two must never be conflated.
type RenewalEvent struct {
	EntitlementID   uuid.UUID
	AccountID       uuid.UUID
	DomainName      string
	Outcome         Outcome
	Reason          string
	PaymentCaptured bool
	NewExpiresAt    *time.Time
}

// Notifier delivers renewal events to the account holder
type Notifier interface {
	Notify(ctx context.Context, event RenewalEvent) error
}
