package errors

import (
	"errors"
	"fmt"
)

var (
	// Entitlement errors
	ErrEntitlementNotFound = errors.New("entitlement not found")

	// Ledger errors
	ErrAttemptNotFound = errors.New("renewal attempt not found")
	ErrAttemptExists   = errors.New("live renewal attempt already exists for cycle")
	ErrLedgerConflict  = errors.New("ledger write conflict")

	// Payment errors
	ErrPaymentDeclined    = errors.New("payment declined")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")

	// Registrar errors
	ErrRegistrarExtendFailed = errors.New("registrar extension failed")
)

// ConflictError wraps a ledger conflict with the attempt context so callers
// can decide to re-read and retry the step.
type ConflictError struct {
	AttemptID     string
	ExpectedState string
	Err           error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("attempt %s conflict (expected state %s): %v", e.AttemptID, e.ExpectedState, e.Err)
}

func (e *ConflictError) Unwrap() error {
	return e.Err
}
