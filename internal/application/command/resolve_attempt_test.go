package command_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostfold/renewal-engine/internal/application/command"
	"github.com/hostfold/renewal-engine/internal/domain/entity"
	"github.com/hostfold/renewal-engine/tests/mocks"
)

func TestResolveAttemptCommand(t *testing.T) {
	ctx := context.Background()

	t.Run("resolves a flagged failure", func(t *testing.T) {
		ledger := mocks.NewMockRenewalLedger()

		attempt := entity.NewRenewalAttempt(uuid.New(), "renew-before-2026-10-01")
		attempt.MarkCharged("tx123")
		attempt.MarkFailed(entity.ReasonRegistrarExtendFailed)
		require.True(t, attempt.NeedsReconciliation)

		ledger.On("GetByID", ctx, attempt.ID).Return(attempt, nil).Once()
		ledger.On("MarkResolved", ctx, attempt.ID).Return(nil).Once()

		cmd := command.NewResolveAttemptCommand(ledger)
		resolved, err := cmd.Execute(ctx, attempt.ID)
		require.NoError(t, err)
		assert.False(t, resolved.NeedsReconciliation)
		ledger.AssertExpectations(t)
	})

	t.Run("rejects attempts with nothing to reconcile", func(t *testing.T) {
		ledger := mocks.NewMockRenewalLedger()

		attempt := entity.NewRenewalAttempt(uuid.New(), "renew-before-2026-10-01")
		attempt.MarkFailed(entity.ReasonPaymentDeclined)

		ledger.On("GetByID", ctx, attempt.ID).Return(attempt, nil).Once()

		cmd := command.NewResolveAttemptCommand(ledger)
		_, err := cmd.Execute(ctx, attempt.ID)
		assert.ErrorIs(t, err, command.ErrNotReconcilable)
		ledger.AssertNotCalled(t, "MarkResolved", ctx, attempt.ID)
	})

	t.Run("rejects live attempts", func(t *testing.T) {
		ledger := mocks.NewMockRenewalLedger()

		attempt := entity.NewRenewalAttempt(uuid.New(), "renew-before-2026-10-01")
		attempt.MarkCharged("tx123")

		ledger.On("GetByID", ctx, attempt.ID).Return(attempt, nil).Once()

		cmd := command.NewResolveAttemptCommand(ledger)
		_, err := cmd.Execute(ctx, attempt.ID)
		assert.ErrorIs(t, err, command.ErrNotReconcilable)
	})
}
