package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/hostfold/renewal-engine/internal/domain/valueobject"
)

// Entitlement represents a renewable domain registration
type Entitlement struct {
	ID              uuid.UUID
	AccountID       uuid.UUID
	DomainName      string
	ExpiresAt       time.Time
	AutoRenew       bool
	PaymentMethodID *string
	RenewalPrice    valueobject.Money
	TermYears       int
	Locked          bool
	WhoisPrivacy    bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewEntitlement creates a new entitlement record
func NewEntitlement(accountID uuid.UUID, domainName string, expiresAt time.Time, price valueobject.Money, termYears int) *Entitlement {
	now := time.Now()
	return &Entitlement{
		ID:           uuid.New(),
		AccountID:    accountID,
		DomainName:   domainName,
		ExpiresAt:    expiresAt,
		AutoRenew:    true,
		RenewalPrice: price,
		TermYears:    termYears,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// IsRenewable returns true if the entitlement qualifies for automatic renewal
func (e *Entitlement) IsRenewable() bool {
	return e.AutoRenew && e.PaymentMethodID != nil && *e.PaymentMethodID != ""
}

// DueWithin returns true if the entitlement expires inside the lookahead window
func (e *Entitlement) DueWithin(now time.Time, window time.Duration) bool {
	return !e.ExpiresAt.After(now.Add(window))
}

// CycleKey derives the renewal cycle identifier from the current expiration.
// It is stable across re-scans of the same cycle and changes only once a
// confirmed extension has moved the expiration forward.
func (e *Entitlement) CycleKey() string {
	return "renew-before-" + e.ExpiresAt.UTC().Format("2006-01-02")
}

// ApplyExtension advances the expiration after a confirmed registrar
// extension. The expiration never moves backward.
func (e *Entitlement) ApplyExtension(newExpiresAt time.Time) bool {
	if !newExpiresAt.After(e.ExpiresAt) {
		return false
	}
	e.ExpiresAt = newExpiresAt
	e.UpdatedAt = time.Now()
	return true
}
