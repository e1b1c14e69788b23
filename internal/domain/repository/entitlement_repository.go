package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hostfold/renewal-engine/internal/domain/entity"
)

// EntitlementRepository defines the interface for entitlement data access
type EntitlementRepository interface {
	// GetByID retrieves an entitlement by ID
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Entitlement, error)

	// Create persists a new entitlement
	Create(ctx context.Context, entitlement *entity.Entitlement) error

	// ListDueForRenewal retrieves entitlements with auto_renew enabled, a
	// saved payment method, and an expiration on or before the cutoff.
	ListDueForRenewal(ctx context.Context, cutoff time.Time, limit int) ([]*entity.Entitlement, error)

	// AdvanceExpiration moves the expiration forward after a confirmed
	// registrar extension. The update is conditional on the stored expiration
	// still matching prior, so a stale writer cannot roll the date back.
	AdvanceExpiration(ctx context.Context, id uuid.UUID, prior, next time.Time) error
}
