package query

import (
	"context"

	"github.com/google/uuid"

	"github.com/hostfold/renewal-engine/internal/domain/entity"
	"github.com/hostfold/renewal-engine/internal/domain/repository"
)

// ListReconciliationQuery lists failed attempts where money was captured but
// the registration was never extended.
type ListReconciliationQuery struct {
	ledger repository.RenewalLedger
}

// NewListReconciliationQuery creates a new reconciliation listing query
func NewListReconciliationQuery(ledger repository.RenewalLedger) *ListReconciliationQuery {
	return &ListReconciliationQuery{ledger: ledger}
}

// Execute returns attempts awaiting manual reconciliation
func (q *ListReconciliationQuery) Execute(ctx context.Context, limit int) ([]*entity.RenewalAttempt, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return q.ledger.ListNeedingReconciliation(ctx, limit)
}

// ListAttemptsQuery lists the renewal history of one entitlement
type ListAttemptsQuery struct {
	ledger repository.RenewalLedger
}

// NewListAttemptsQuery creates a new attempt history query
func NewListAttemptsQuery(ledger repository.RenewalLedger) *ListAttemptsQuery {
	return &ListAttemptsQuery{ledger: ledger}
}

// Execute returns all attempts for an entitlement, newest first
func (q *ListAttemptsQuery) Execute(ctx context.Context, entitlementID uuid.UUID) ([]*entity.RenewalAttempt, error) {
	return q.ledger.ListByEntitlement(ctx, entitlementID)
}
