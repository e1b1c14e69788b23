package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hostfold/renewal-engine/internal/domain/entity"
	domainerrors "github.com/hostfold/renewal-engine/internal/domain/errors"
	"github.com/hostfold/renewal-engine/internal/domain/repository"
)

// uniqueViolation is the Postgres error code raised by the partial unique
// index guarding one live attempt per (entitlement, cycle).
const uniqueViolation = "23505"

// RenewalLedgerImpl implements RenewalLedger using pgxpool
type RenewalLedgerImpl struct {
	pool *pgxpool.Pool
}

// NewRenewalLedger creates a new ledger repository
func NewRenewalLedger(pool *pgxpool.Pool) *RenewalLedgerImpl {
	return &RenewalLedgerImpl{
		pool: pool,
	}
}

const attemptColumns = `
	id, entitlement_id, cycle_key, state, transaction_id, confirmation_id,
	failure_reason, needs_reconciliation, charged_at, extended_at, completed_at,
	failed_at, created_at, updated_at
`

// Create opens a new attempt. The partial unique index turns a concurrent
// create for the same cycle into ErrAttemptExists.
func (r *RenewalLedgerImpl) Create(ctx context.Context, a *entity.RenewalAttempt) error {
	query := `
		INSERT INTO renewal_attempts (` + attemptColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := r.pool.Exec(ctx, query,
		a.ID, a.EntitlementID, a.CycleKey, a.State, a.TransactionID, a.ConfirmationID,
		a.FailureReason, a.NeedsReconciliation, a.ChargedAt, a.ExtendedAt, a.CompletedAt,
		a.FailedAt, a.CreatedAt, a.UpdatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return domainerrors.ErrAttemptExists
	}
	return err
}

// GetByID retrieves an attempt by ID
func (r *RenewalLedgerImpl) GetByID(ctx context.Context, id uuid.UUID) (*entity.RenewalAttempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM renewal_attempts WHERE id = $1`
	a, err := scanAttempt(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domainerrors.ErrAttemptNotFound
	}
	return a, err
}

// GetOpenAttempt retrieves the live attempt for an entitlement's cycle
func (r *RenewalLedgerImpl) GetOpenAttempt(ctx context.Context, entitlementID uuid.UUID, cycleKey string) (*entity.RenewalAttempt, error) {
	query := `
		SELECT ` + attemptColumns + `
		FROM renewal_attempts
		WHERE entitlement_id = $1 AND cycle_key = $2 AND state <> 'failed'
		LIMIT 1
	`
	a, err := scanAttempt(r.pool.QueryRow(ctx, query, entitlementID, cycleKey))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

// UpdateState transitions an attempt conditionally on its current state.
// The transition also stamps the timestamp column belonging to next.
func (r *RenewalLedgerImpl) UpdateState(ctx context.Context, id uuid.UUID, expected, next entity.AttemptState, update repository.AttemptUpdate) error {
	stampColumn := ""
	switch next {
	case entity.AttemptStateCharged:
		stampColumn = "charged_at"
	case entity.AttemptStateExtended:
		stampColumn = "extended_at"
	case entity.AttemptStateCompleted:
		stampColumn = "completed_at"
	case entity.AttemptStateFailed:
		stampColumn = "failed_at"
	}

	query := `
		UPDATE renewal_attempts
		SET state = $3,
		    transaction_id = COALESCE($4, transaction_id),
		    confirmation_id = COALESCE($5, confirmation_id),
		    failure_reason = COALESCE($6, failure_reason),
		    needs_reconciliation = needs_reconciliation OR $7,
		    updated_at = $8
	`
	if stampColumn != "" {
		query += `, ` + stampColumn + ` = $8`
	}
	query += ` WHERE id = $1 AND state = $2`

	tag, err := r.pool.Exec(ctx, query,
		id, expected, next,
		update.TransactionID, update.ConfirmationID, update.FailureReason,
		update.NeedsReconciliation, time.Now(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &domainerrors.ConflictError{
			AttemptID:     id.String(),
			ExpectedState: string(expected),
			Err:           domainerrors.ErrLedgerConflict,
		}
	}
	return nil
}

// ListPending retrieves attempts awaiting processing, oldest first
func (r *RenewalLedgerImpl) ListPending(ctx context.Context, limit int) ([]*entity.RenewalAttempt, error) {
	query := `
		SELECT ` + attemptColumns + `
		FROM renewal_attempts
		WHERE state IN ('pending', 'charged', 'extended')
		ORDER BY created_at ASC
		LIMIT $1
	`
	return r.list(ctx, query, limit)
}

// ListNeedingReconciliation retrieves failed attempts with captured payments
func (r *RenewalLedgerImpl) ListNeedingReconciliation(ctx context.Context, limit int) ([]*entity.RenewalAttempt, error) {
	query := `
		SELECT ` + attemptColumns + `
		FROM renewal_attempts
		WHERE state = 'failed' AND needs_reconciliation = TRUE
		ORDER BY failed_at ASC
		LIMIT $1
	`
	return r.list(ctx, query, limit)
}

// ListByEntitlement retrieves all attempts for an entitlement, newest first
func (r *RenewalLedgerImpl) ListByEntitlement(ctx context.Context, entitlementID uuid.UUID) ([]*entity.RenewalAttempt, error) {
	query := `
		SELECT ` + attemptColumns + `
		FROM renewal_attempts
		WHERE entitlement_id = $1
		ORDER BY created_at DESC
	`
	return r.list(ctx, query, entitlementID)
}

// MarkResolved clears the reconciliation flag on a failed attempt
func (r *RenewalLedgerImpl) MarkResolved(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE renewal_attempts
		SET needs_reconciliation = FALSE, updated_at = $2
		WHERE id = $1 AND state = 'failed' AND needs_reconciliation = TRUE
	`
	tag, err := r.pool.Exec(ctx, query, id, time.Now())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domainerrors.ErrAttemptNotFound
	}
	return nil
}

func (r *RenewalLedgerImpl) list(ctx context.Context, query string, args ...any) ([]*entity.RenewalAttempt, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*entity.RenewalAttempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, a)
	}
	return results, rows.Err()
}

func scanAttempt(row pgx.Row) (*entity.RenewalAttempt, error) {
	a := &entity.RenewalAttempt{}
	err := row.Scan(
		&a.ID, &a.EntitlementID, &a.CycleKey, &a.State, &a.TransactionID, &a.ConfirmationID,
		&a.FailureReason, &a.NeedsReconciliation, &a.ChargedAt, &a.ExtendedAt, &a.CompletedAt,
		&a.FailedAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}
