package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hostfold/renewal-engine/internal/domain/entity"
	domainerrors "github.com/hostfold/renewal-engine/internal/domain/errors"
	"github.com/hostfold/renewal-engine/internal/domain/service"
	"github.com/hostfold/renewal-engine/tests/mocks"
)

func TestScannerService(t *testing.T) {
	ctx := context.Background()

	t.Run("opens pending attempt for due entitlement", func(t *testing.T) {
		ents := mocks.NewMockEntitlementRepository()
		ledger := mocks.NewMockRenewalLedger()
		notifier := mocks.NewMockNotifier()

		ent := testEntitlement()
		ents.On("ListDueForRenewal", ctx, mock.Anything, service.DefaultScanLimit).
			Return([]*entity.Entitlement{ent}, nil).Once()
		ledger.On("GetOpenAttempt", ctx, ent.ID, ent.CycleKey()).Return(nil, nil).Once()
		ledger.On("Create", ctx, mock.MatchedBy(func(a *entity.RenewalAttempt) bool {
			return a.EntitlementID == ent.ID &&
				a.CycleKey == ent.CycleKey() &&
				a.State == entity.AttemptStatePending
		})).Return(nil).Once()
		ledger.On("ListPending", ctx, service.DefaultScanLimit).
			Return([]*entity.RenewalAttempt{}, nil).Once()

		scanner := service.NewScannerService(ents, ledger, notifier, 0, 0, nil)
		pending, err := scanner.Scan(ctx)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, entity.AttemptStatePending, pending[0].State)

		events := notifier.Events()
		require.Len(t, events, 1)
		assert.Equal(t, service.OutcomeUpcoming, events[0].Outcome)
	})

	t.Run("skips entitlement without payment method", func(t *testing.T) {
		ents := mocks.NewMockEntitlementRepository()
		ledger := mocks.NewMockRenewalLedger()
		notifier := mocks.NewMockNotifier()

		ent := testEntitlement()
		ent.PaymentMethodID = nil
		ents.On("ListDueForRenewal", ctx, mock.Anything, service.DefaultScanLimit).
			Return([]*entity.Entitlement{ent}, nil).Once()
		ledger.On("ListPending", ctx, service.DefaultScanLimit).
			Return([]*entity.RenewalAttempt{}, nil).Once()

		scanner := service.NewScannerService(ents, ledger, notifier, 0, 0, nil)
		pending, err := scanner.Scan(ctx)
		require.NoError(t, err)
		assert.Empty(t, pending)
		ledger.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("does not duplicate a live attempt", func(t *testing.T) {
		ents := mocks.NewMockEntitlementRepository()
		ledger := mocks.NewMockRenewalLedger()
		notifier := mocks.NewMockNotifier()

		ent := testEntitlement()
		open := entity.NewRenewalAttempt(ent.ID, ent.CycleKey())
		ents.On("ListDueForRenewal", ctx, mock.Anything, service.DefaultScanLimit).
			Return([]*entity.Entitlement{ent}, nil).Once()
		ledger.On("GetOpenAttempt", ctx, ent.ID, ent.CycleKey()).Return(open, nil).Once()
		ledger.On("ListPending", ctx, service.DefaultScanLimit).
			Return([]*entity.RenewalAttempt{open}, nil).Once()

		scanner := service.NewScannerService(ents, ledger, notifier, 0, 0, nil)
		pending, err := scanner.Scan(ctx)
		require.NoError(t, err)

		// The existing pending attempt is handed back for processing, but no
		// second attempt is created and no fresh warning is sent.
		require.Len(t, pending, 1)
		assert.Equal(t, open.ID, pending[0].ID)
		ledger.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		assert.Empty(t, notifier.Events())
	})

	t.Run("losing the create race is not an error", func(t *testing.T) {
		ents := mocks.NewMockEntitlementRepository()
		ledger := mocks.NewMockRenewalLedger()
		notifier := mocks.NewMockNotifier()

		ent := testEntitlement()
		ents.On("ListDueForRenewal", ctx, mock.Anything, service.DefaultScanLimit).
			Return([]*entity.Entitlement{ent}, nil).Once()
		ledger.On("GetOpenAttempt", ctx, ent.ID, ent.CycleKey()).Return(nil, nil).Once()
		ledger.On("Create", ctx, mock.Anything).Return(domainerrors.ErrAttemptExists).Once()
		ledger.On("ListPending", ctx, service.DefaultScanLimit).
			Return([]*entity.RenewalAttempt{}, nil).Once()

		scanner := service.NewScannerService(ents, ledger, notifier, 0, 0, nil)
		pending, err := scanner.Scan(ctx)
		require.NoError(t, err)
		assert.Empty(t, pending)
	})

	t.Run("one failing entitlement does not abort the scan", func(t *testing.T) {
		ents := mocks.NewMockEntitlementRepository()
		ledger := mocks.NewMockRenewalLedger()
		notifier := mocks.NewMockNotifier()

		bad := testEntitlement()
		good := testEntitlement()
		good.DomainName = "other.net"

		ents.On("ListDueForRenewal", ctx, mock.Anything, service.DefaultScanLimit).
			Return([]*entity.Entitlement{bad, good}, nil).Once()
		ledger.On("GetOpenAttempt", ctx, bad.ID, bad.CycleKey()).
			Return(nil, errors.New("connection reset")).Once()
		ledger.On("GetOpenAttempt", ctx, good.ID, good.CycleKey()).Return(nil, nil).Once()
		ledger.On("Create", ctx, mock.Anything).Return(nil).Once()
		ledger.On("ListPending", ctx, service.DefaultScanLimit).
			Return([]*entity.RenewalAttempt{}, nil).Once()

		scanner := service.NewScannerService(ents, ledger, notifier, 0, 0, nil)
		pending, err := scanner.Scan(ctx)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, good.ID, pending[0].EntitlementID)
	})

	t.Run("resumes live attempt after the expiration already advanced", func(t *testing.T) {
		ents := mocks.NewMockEntitlementRepository()
		ledger := mocks.NewMockRenewalLedger()
		notifier := mocks.NewMockNotifier()

		// The registrar extension committed but the ledger close did not: the
		// entitlement now expires next year, so the due scan comes back empty
		// and the attempt's cycle key no longer matches the current expiration.
		ent := testEntitlement()
		stranded := entity.NewRenewalAttempt(ent.ID, ent.CycleKey())
		stranded.MarkCharged("tx123")

		ents.On("ListDueForRenewal", ctx, mock.Anything, service.DefaultScanLimit).
			Return([]*entity.Entitlement{}, nil).Once()
		ledger.On("ListPending", ctx, service.DefaultScanLimit).
			Return([]*entity.RenewalAttempt{stranded}, nil).Once()

		scanner := service.NewScannerService(ents, ledger, notifier, 0, 0, nil)
		pending, err := scanner.Scan(ctx)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, stranded.ID, pending[0].ID)
		assert.Equal(t, entity.AttemptStateCharged, pending[0].State)
	})

	t.Run("sweep failure keeps the due-scan results", func(t *testing.T) {
		ents := mocks.NewMockEntitlementRepository()
		ledger := mocks.NewMockRenewalLedger()
		notifier := mocks.NewMockNotifier()

		ent := testEntitlement()
		ents.On("ListDueForRenewal", ctx, mock.Anything, service.DefaultScanLimit).
			Return([]*entity.Entitlement{ent}, nil).Once()
		ledger.On("GetOpenAttempt", ctx, ent.ID, ent.CycleKey()).Return(nil, nil).Once()
		ledger.On("Create", ctx, mock.Anything).Return(nil).Once()
		ledger.On("ListPending", ctx, service.DefaultScanLimit).
			Return(nil, errors.New("connection reset")).Once()

		scanner := service.NewScannerService(ents, ledger, notifier, 0, 0, nil)
		pending, err := scanner.Scan(ctx)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, ent.ID, pending[0].EntitlementID)
	})

	t.Run("cutoff honors the lookahead window", func(t *testing.T) {
		ents := mocks.NewMockEntitlementRepository()
		ledger := mocks.NewMockRenewalLedger()
		notifier := mocks.NewMockNotifier()

		lookahead := 7 * 24 * time.Hour
		var gotCutoff time.Time
		ents.On("ListDueForRenewal", ctx, mock.MatchedBy(func(cutoff time.Time) bool {
			gotCutoff = cutoff
			return true
		}), 10).Return([]*entity.Entitlement{}, nil).Once()
		ledger.On("ListPending", ctx, 10).
			Return([]*entity.RenewalAttempt{}, nil).Once()

		scanner := service.NewScannerService(ents, ledger, notifier, lookahead, 10, nil)
		_, err := scanner.Scan(ctx)
		require.NoError(t, err)

		expected := time.Now().Add(lookahead)
		assert.WithinDuration(t, expected, gotCutoff, time.Minute)
	})
}
