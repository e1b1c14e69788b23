//go:build integration

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostfold/renewal-engine/internal/domain/entity"
	domainerrors "github.com/hostfold/renewal-engine/internal/domain/errors"
	domainrepo "github.com/hostfold/renewal-engine/internal/domain/repository"
	"github.com/hostfold/renewal-engine/internal/domain/valueobject"
	"github.com/hostfold/renewal-engine/internal/infrastructure/persistence/repository"
	"github.com/hostfold/renewal-engine/tests/testutil"
)

func newStoredEntitlement(t *testing.T, ctx context.Context, ents *repository.EntitlementRepositoryImpl) *entity.Entitlement {
	t.Helper()
	price, err := valueobject.NewMoney(1499, "USD")
	require.NoError(t, err)
	ent := entity.NewEntitlement(
		uuid.New(), "example.com",
		time.Now().AddDate(0, 0, 10).Truncate(time.Microsecond), price, 1,
	)
	pm := "pm_123"
	ent.PaymentMethodID = &pm
	require.NoError(t, ents.Create(ctx, ent))
	return ent
}

func TestRenewalLedgerRepository(t *testing.T) {
	ctx := context.Background()

	dbContainer, err := testutil.SetupTestDBContainer(ctx, t)
	require.NoError(t, err)
	defer dbContainer.Teardown(ctx, t)

	require.NoError(t, testutil.RunMigrations(ctx, dbContainer.Pool))

	ledger := repository.NewRenewalLedger(dbContainer.Pool)
	ents := repository.NewEntitlementRepository(dbContainer.Pool)

	t.Run("Create and GetByID", func(t *testing.T) {
		ent := newStoredEntitlement(t, ctx, ents)
		attempt := entity.NewRenewalAttempt(ent.ID, ent.CycleKey())

		require.NoError(t, ledger.Create(ctx, attempt))

		found, err := ledger.GetByID(ctx, attempt.ID)
		require.NoError(t, err)
		assert.Equal(t, attempt.ID, found.ID)
		assert.Equal(t, entity.AttemptStatePending, found.State)
		assert.Nil(t, found.TransactionID)
	})

	t.Run("second live attempt for the cycle is rejected", func(t *testing.T) {
		ent := newStoredEntitlement(t, ctx, ents)

		first := entity.NewRenewalAttempt(ent.ID, ent.CycleKey())
		require.NoError(t, ledger.Create(ctx, first))

		second := entity.NewRenewalAttempt(ent.ID, ent.CycleKey())
		err := ledger.Create(ctx, second)
		assert.ErrorIs(t, err, domainerrors.ErrAttemptExists)

		// A failed attempt frees the cycle for a fresh one.
		tx := "tx123"
		reason := entity.ReasonPaymentDeclined
		require.NoError(t, ledger.UpdateState(ctx, first.ID,
			entity.AttemptStatePending, entity.AttemptStateFailed,
			domainrepo.AttemptUpdate{TransactionID: &tx, FailureReason: &reason}))
		require.NoError(t, ledger.Create(ctx, second))
	})

	t.Run("GetOpenAttempt ignores failed attempts", func(t *testing.T) {
		ent := newStoredEntitlement(t, ctx, ents)

		open, err := ledger.GetOpenAttempt(ctx, ent.ID, ent.CycleKey())
		require.NoError(t, err)
		assert.Nil(t, open)

		attempt := entity.NewRenewalAttempt(ent.ID, ent.CycleKey())
		require.NoError(t, ledger.Create(ctx, attempt))

		open, err = ledger.GetOpenAttempt(ctx, ent.ID, ent.CycleKey())
		require.NoError(t, err)
		require.NotNil(t, open)
		assert.Equal(t, attempt.ID, open.ID)

		reason := entity.ReasonPaymentDeclined
		require.NoError(t, ledger.UpdateState(ctx, attempt.ID,
			entity.AttemptStatePending, entity.AttemptStateFailed,
			domainrepo.AttemptUpdate{FailureReason: &reason}))

		open, err = ledger.GetOpenAttempt(ctx, ent.ID, ent.CycleKey())
		require.NoError(t, err)
		assert.Nil(t, open)
	})

	t.Run("UpdateState is conditional on the current state", func(t *testing.T) {
		ent := newStoredEntitlement(t, ctx, ents)
		attempt := entity.NewRenewalAttempt(ent.ID, ent.CycleKey())
		require.NoError(t, ledger.Create(ctx, attempt))

		tx := "tx123"
		require.NoError(t, ledger.UpdateState(ctx, attempt.ID,
			entity.AttemptStatePending, entity.AttemptStateCharged,
			domainrepo.AttemptUpdate{TransactionID: &tx}))

		// A stale writer still expecting pending loses.
		err := ledger.UpdateState(ctx, attempt.ID,
			entity.AttemptStatePending, entity.AttemptStateCharged,
			domainrepo.AttemptUpdate{TransactionID: &tx})
		assert.ErrorIs(t, err, domainerrors.ErrLedgerConflict)

		found, err := ledger.GetByID(ctx, attempt.ID)
		require.NoError(t, err)
		assert.Equal(t, entity.AttemptStateCharged, found.State)
		require.NotNil(t, found.TransactionID)
		assert.Equal(t, tx, *found.TransactionID)
		require.NotNil(t, found.ChargedAt)
	})

	t.Run("failing after charge keeps the transaction id", func(t *testing.T) {
		ent := newStoredEntitlement(t, ctx, ents)
		attempt := entity.NewRenewalAttempt(ent.ID, ent.CycleKey())
		require.NoError(t, ledger.Create(ctx, attempt))

		tx := "tx123"
		require.NoError(t, ledger.UpdateState(ctx, attempt.ID,
			entity.AttemptStatePending, entity.AttemptStateCharged,
			domainrepo.AttemptUpdate{TransactionID: &tx}))

		reason := entity.ReasonRegistrarExtendFailed
		require.NoError(t, ledger.UpdateState(ctx, attempt.ID,
			entity.AttemptStateCharged, entity.AttemptStateFailed,
			domainrepo.AttemptUpdate{FailureReason: &reason, NeedsReconciliation: true}))

		found, err := ledger.GetByID(ctx, attempt.ID)
		require.NoError(t, err)
		assert.Equal(t, entity.AttemptStateFailed, found.State)
		assert.True(t, found.NeedsReconciliation)
		require.NotNil(t, found.TransactionID)
		assert.Equal(t, tx, *found.TransactionID)
		require.NotNil(t, found.FailedAt)

		flagged, err := ledger.ListNeedingReconciliation(ctx, 10)
		require.NoError(t, err)
		ids := make([]string, 0, len(flagged))
		for _, f := range flagged {
			ids = append(ids, f.ID.String())
		}
		assert.Contains(t, ids, attempt.ID.String())
	})

	t.Run("MarkResolved clears the flag exactly once", func(t *testing.T) {
		ent := newStoredEntitlement(t, ctx, ents)
		attempt := entity.NewRenewalAttempt(ent.ID, ent.CycleKey())
		require.NoError(t, ledger.Create(ctx, attempt))

		tx := "tx123"
		reason := entity.ReasonRegistrarExtendFailed
		require.NoError(t, ledger.UpdateState(ctx, attempt.ID,
			entity.AttemptStatePending, entity.AttemptStateCharged,
			domainrepo.AttemptUpdate{TransactionID: &tx}))
		require.NoError(t, ledger.UpdateState(ctx, attempt.ID,
			entity.AttemptStateCharged, entity.AttemptStateFailed,
			domainrepo.AttemptUpdate{FailureReason: &reason, NeedsReconciliation: true}))

		require.NoError(t, ledger.MarkResolved(ctx, attempt.ID))
		err := ledger.MarkResolved(ctx, attempt.ID)
		assert.ErrorIs(t, err, domainerrors.ErrAttemptNotFound)

		found, err := ledger.GetByID(ctx, attempt.ID)
		require.NoError(t, err)
		assert.False(t, found.NeedsReconciliation)
	})

	t.Run("ListByEntitlement returns the full history", func(t *testing.T) {
		ent := newStoredEntitlement(t, ctx, ents)

		first := entity.NewRenewalAttempt(ent.ID, ent.CycleKey())
		require.NoError(t, ledger.Create(ctx, first))
		reason := entity.ReasonPaymentDeclined
		require.NoError(t, ledger.UpdateState(ctx, first.ID,
			entity.AttemptStatePending, entity.AttemptStateFailed,
			domainrepo.AttemptUpdate{FailureReason: &reason}))

		second := entity.NewRenewalAttempt(ent.ID, ent.CycleKey())
		require.NoError(t, ledger.Create(ctx, second))

		history, err := ledger.ListByEntitlement(ctx, ent.ID)
		require.NoError(t, err)
		assert.Len(t, history, 2)
	})
}
