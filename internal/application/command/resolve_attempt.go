package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/hostfold/renewal-engine/internal/domain/entity"
	domainerrors "github.com/hostfold/renewal-engine/internal/domain/errors"
	"github.com/hostfold/renewal-engine/internal/domain/repository"
)

var (
	// ErrNotReconcilable is returned when the attempt carries no open
	// reconciliation flag.
	ErrNotReconcilable = errors.New("attempt is not awaiting reconciliation")
)

// ResolveAttemptCommand closes out a charged-but-not-extended attempt after
// support has settled it (refund issued or extension completed manually).
type ResolveAttemptCommand struct {
	ledger repository.RenewalLedger
}

// NewResolveAttemptCommand creates a new resolve command
func NewResolveAttemptCommand(ledger repository.RenewalLedger) *ResolveAttemptCommand {
	return &ResolveAttemptCommand{ledger: ledger}
}

// Execute clears the reconciliation flag on a failed attempt
func (c *ResolveAttemptCommand) Execute(ctx context.Context, attemptID uuid.UUID) (*entity.RenewalAttempt, error) {
	attempt, err := c.ledger.GetByID(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.State != entity.AttemptStateFailed || !attempt.NeedsReconciliation {
		return nil, ErrNotReconcilable
	}

	if err := c.ledger.MarkResolved(ctx, attemptID); err != nil {
		if errors.Is(err, domainerrors.ErrAttemptNotFound) {
			return nil, ErrNotReconcilable
		}
		return nil, fmt.Errorf("failed to resolve attempt: %w", err)
	}

	attempt.Resolve()
	return attempt, nil
}
