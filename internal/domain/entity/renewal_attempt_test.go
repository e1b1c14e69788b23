package entity_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostfold/renewal-engine/internal/domain/entity"
	"github.com/hostfold/renewal-engine/internal/domain/valueobject"
)

func TestRenewalAttemptLifecycle(t *testing.T) {
	attempt := entity.NewRenewalAttempt(uuid.New(), "renew-before-2026-10-01")

	assert.Equal(t, entity.AttemptStatePending, attempt.State)
	assert.False(t, attempt.IsTerminal())
	assert.True(t, attempt.IsLive())

	attempt.MarkCharged("tx123")
	assert.Equal(t, entity.AttemptStateCharged, attempt.State)
	require.NotNil(t, attempt.TransactionID)
	assert.Equal(t, "tx123", *attempt.TransactionID)
	require.NotNil(t, attempt.ChargedAt)

	attempt.MarkExtended("conf-9")
	assert.Equal(t, entity.AttemptStateExtended, attempt.State)
	require.NotNil(t, attempt.ConfirmationID)
	assert.Equal(t, "conf-9", *attempt.ConfirmationID)

	attempt.MarkCompleted()
	assert.True(t, attempt.IsTerminal())
	assert.True(t, attempt.IsLive())
	require.NotNil(t, attempt.CompletedAt)
}

func TestRenewalAttemptFailure(t *testing.T) {
	t.Run("failure before charge needs no reconciliation", func(t *testing.T) {
		attempt := entity.NewRenewalAttempt(uuid.New(), "renew-before-2026-10-01")
		attempt.MarkFailed(entity.ReasonPaymentDeclined)

		assert.True(t, attempt.IsTerminal())
		assert.False(t, attempt.IsLive())
		assert.False(t, attempt.NeedsReconciliation)
		require.NotNil(t, attempt.FailureReason)
		assert.Equal(t, entity.ReasonPaymentDeclined, *attempt.FailureReason)
	})

	t.Run("failure after charge keeps transaction and flags reconciliation", func(t *testing.T) {
		attempt := entity.NewRenewalAttempt(uuid.New(), "renew-before-2026-10-01")
		attempt.MarkCharged("tx123")
		attempt.MarkFailed(entity.ReasonRegistrarExtendFailed)

		assert.True(t, attempt.NeedsReconciliation)
		require.NotNil(t, attempt.TransactionID)
		assert.Equal(t, "tx123", *attempt.TransactionID)

		attempt.Resolve()
		assert.False(t, attempt.NeedsReconciliation)
	})
}

func TestEntitlement(t *testing.T) {
	price, err := valueobject.NewMoney(1499, "USD")
	require.NoError(t, err)

	t.Run("renewable requires auto renew and payment method", func(t *testing.T) {
		ent := entity.NewEntitlement(uuid.New(), "example.com", time.Now().AddDate(0, 0, 10), price, 1)
		assert.False(t, ent.IsRenewable())

		pm := "pm_123"
		ent.PaymentMethodID = &pm
		assert.True(t, ent.IsRenewable())

		ent.AutoRenew = false
		assert.False(t, ent.IsRenewable())
	})

	t.Run("cycle key tracks current expiration date", func(t *testing.T) {
		expires := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
		ent := entity.NewEntitlement(uuid.New(), "example.com", expires, price, 1)
		assert.Equal(t, "renew-before-2026-10-01", ent.CycleKey())
	})

	t.Run("expiration never moves backward", func(t *testing.T) {
		expires := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
		ent := entity.NewEntitlement(uuid.New(), "example.com", expires, price, 1)

		assert.False(t, ent.ApplyExtension(expires.AddDate(-1, 0, 0)))
		assert.Equal(t, expires, ent.ExpiresAt)

		next := expires.AddDate(1, 0, 0)
		assert.True(t, ent.ApplyExtension(next))
		assert.Equal(t, next, ent.ExpiresAt)
	})

	t.Run("due within window", func(t *testing.T) {
		now := time.Now()
		ent := entity.NewEntitlement(uuid.New(), "example.com", now.AddDate(0, 0, 10), price, 1)
		assert.True(t, ent.DueWithin(now, 30*24*time.Hour))
		assert.False(t, ent.DueWithin(now, 5*24*time.Hour))
	})
}

func TestMoney(t *testing.T) {
	m, err := valueobject.NewMoney(1499, "USD")
	require.NoError(t, err)
	assert.Equal(t, "14.99 USD", m.String())
	assert.False(t, m.IsZero())

	_, err = valueobject.NewMoney(-1, "USD")
	assert.ErrorIs(t, err, valueobject.ErrInvalidAmount)

	_, err = valueobject.NewMoney(100, "US")
	assert.ErrorIs(t, err, valueobject.ErrInvalidCurrency)
}
