package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hostfold/renewal-engine/internal/domain/entity"
	domainerrors "github.com/hostfold/renewal-engine/internal/domain/errors"
	"github.com/hostfold/renewal-engine/internal/domain/valueobject"
)

// EntitlementRepositoryImpl implements EntitlementRepository using pgxpool
type EntitlementRepositoryImpl struct {
	pool *pgxpool.Pool
}

// NewEntitlementRepository creates a new entitlement repository
func NewEntitlementRepository(pool *pgxpool.Pool) *EntitlementRepositoryImpl {
	return &EntitlementRepositoryImpl{
		pool: pool,
	}
}

const entitlementColumns = `
	id, account_id, domain_name, expires_at, auto_renew, payment_method_id,
	renewal_price_minor, renewal_currency, term_years, locked, whois_privacy,
	created_at, updated_at
`

// Create persists a new entitlement
func (r *EntitlementRepositoryImpl) Create(ctx context.Context, e *entity.Entitlement) error {
	query := `
		INSERT INTO entitlements (` + entitlementColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.pool.Exec(ctx, query,
		e.ID, e.AccountID, e.DomainName, e.ExpiresAt, e.AutoRenew, e.PaymentMethodID,
		e.RenewalPrice.AmountMinor, e.RenewalPrice.Currency, e.TermYears, e.Locked, e.WhoisPrivacy,
		e.CreatedAt, e.UpdatedAt,
	)
	return err
}

// GetByID retrieves an entitlement by ID
func (r *EntitlementRepositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*entity.Entitlement, error) {
	query := `SELECT ` + entitlementColumns + ` FROM entitlements WHERE id = $1`
	e, err := scanEntitlement(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domainerrors.ErrEntitlementNotFound
	}
	return e, err
}

// ListDueForRenewal retrieves entitlements eligible for automatic renewal
// with an expiration on or before the cutoff.
func (r *EntitlementRepositoryImpl) ListDueForRenewal(ctx context.Context, cutoff time.Time, limit int) ([]*entity.Entitlement, error) {
	query := `
		SELECT ` + entitlementColumns + `
		FROM entitlements
		WHERE auto_renew = TRUE
		  AND payment_method_id IS NOT NULL
		  AND expires_at <= $1
		ORDER BY expires_at ASC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*entity.Entitlement
	for rows.Next() {
		e, err := scanEntitlement(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, e)
	}
	return results, rows.Err()
}

// AdvanceExpiration moves the expiration forward, conditional on the stored
// expiration still matching prior so a stale writer cannot roll it back.
func (r *EntitlementRepositoryImpl) AdvanceExpiration(ctx context.Context, id uuid.UUID, prior, next time.Time) error {
	query := `
		UPDATE entitlements
		SET expires_at = $3, updated_at = $4
		WHERE id = $1 AND expires_at = $2 AND expires_at < $3
	`
	tag, err := r.pool.Exec(ctx, query, id, prior, next, time.Now())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// Either the row moved under us or next would not advance the date.
		current, err := r.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !current.ExpiresAt.Before(next) {
			// Already at or past next expiration; treat as settled.
			return nil
		}
		return domainerrors.ErrLedgerConflict
	}
	return nil
}

func scanEntitlement(row pgx.Row) (*entity.Entitlement, error) {
	e := &entity.Entitlement{}
	var amountMinor int64
	var currency string
	err := row.Scan(
		&e.ID, &e.AccountID, &e.DomainName, &e.ExpiresAt, &e.AutoRenew, &e.PaymentMethodID,
		&amountMinor, &currency, &e.TermYears, &e.Locked, &e.WhoisPrivacy,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.RenewalPrice = valueobject.Money{AmountMinor: amountMinor, Currency: currency}
	return e, nil
}
