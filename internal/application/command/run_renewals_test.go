package command_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hostfold/renewal-engine/internal/application/command"
	"github.com/hostfold/renewal-engine/internal/domain/entity"
	"github.com/hostfold/renewal-engine/internal/domain/service"
	"github.com/hostfold/renewal-engine/internal/domain/valueobject"
	"github.com/hostfold/renewal-engine/tests/mocks"
)

func fixtureEntitlement() *entity.Entitlement {
	price, _ := valueobject.NewMoney(1499, "USD")
	ent := entity.NewEntitlement(uuid.New(), "example.com", time.Now().AddDate(0, 0, 10), price, 1)
	pm := "pm_123"
	ent.PaymentMethodID = &pm
	return ent
}

func TestRunRenewalsCommand(t *testing.T) {
	ctx := context.Background()

	build := func(ledger *mocks.MockRenewalLedger, ents *mocks.MockEntitlementRepository, gw *mocks.MockPaymentGateway, reg *mocks.MockRegistrar, notifier *mocks.MockNotifier) *command.RunRenewalsCommand {
		scanner := service.NewScannerService(ents, ledger, notifier, 0, 0, nil)
		orchestrator := service.NewOrchestratorService(ledger, ents, gw, reg, notifier, 1, time.Millisecond, nil)
		return command.NewRunRenewalsCommand(scanner, orchestrator, 2, nil)
	}

	t.Run("scan failure aborts the run", func(t *testing.T) {
		ledger := mocks.NewMockRenewalLedger()
		ents := mocks.NewMockEntitlementRepository()
		ents.On("ListDueForRenewal", ctx, mock.Anything, mock.Anything).
			Return(nil, errors.New("store unreachable")).Once()

		cmd := build(ledger, ents, mocks.NewMockPaymentGateway(), mocks.NewMockRegistrar(), mocks.NewMockNotifier())
		_, err := cmd.Execute(ctx)
		require.Error(t, err)
	})

	t.Run("empty scan is a clean run", func(t *testing.T) {
		ledger := mocks.NewMockRenewalLedger()
		ents := mocks.NewMockEntitlementRepository()
		ents.On("ListDueForRenewal", ctx, mock.Anything, mock.Anything).
			Return([]*entity.Entitlement{}, nil).Once()
		ledger.On("ListPending", ctx, mock.Anything).
			Return([]*entity.RenewalAttempt{}, nil).Once()

		cmd := build(ledger, ents, mocks.NewMockPaymentGateway(), mocks.NewMockRegistrar(), mocks.NewMockNotifier())
		result, err := cmd.Execute(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, result.Scanned)
		assert.Equal(t, 0, result.Processed)
	})

	t.Run("per-attempt failures never abort the batch", func(t *testing.T) {
		ledger := mocks.NewMockRenewalLedger()
		ents := mocks.NewMockEntitlementRepository()
		gw := mocks.NewMockPaymentGateway()
		reg := mocks.NewMockRegistrar()
		notifier := mocks.NewMockNotifier()

		okEnt := fixtureEntitlement()
		badEnt := fixtureEntitlement()
		badEnt.DomainName = "other.net"

		ents.On("ListDueForRenewal", ctx, mock.Anything, mock.Anything).
			Return([]*entity.Entitlement{okEnt, badEnt}, nil).Once()
		ledger.On("GetOpenAttempt", ctx, okEnt.ID, okEnt.CycleKey()).Return(nil, nil).Once()
		ledger.On("GetOpenAttempt", ctx, badEnt.ID, badEnt.CycleKey()).Return(nil, nil).Once()
		ledger.On("ListPending", ctx, mock.Anything).
			Return([]*entity.RenewalAttempt{}, nil).Once()

		// Track which attempt belongs to which entitlement as the scanner
		// opens them, so the processing expectations can tell them apart.
		var mu sync.Mutex
		owners := make(map[uuid.UUID]uuid.UUID)
		ledger.On("Create", ctx, mock.Anything).Run(func(args mock.Arguments) {
			a := args.Get(1).(*entity.RenewalAttempt)
			mu.Lock()
			owners[a.ID] = a.EntitlementID
			mu.Unlock()
		}).Return(nil).Twice()

		ownedBy := func(entID uuid.UUID) func(uuid.UUID) bool {
			return func(id uuid.UUID) bool {
				mu.Lock()
				defer mu.Unlock()
				return owners[id] == entID
			}
		}

		// The good attempt was already completed elsewhere, so processing is
		// a no-op. The bad one hits a store error.
		done := entity.NewRenewalAttempt(okEnt.ID, okEnt.CycleKey())
		done.MarkCharged("tx123")
		done.MarkExtended("conf-9")
		done.MarkCompleted()
		ledger.On("GetByID", ctx, mock.MatchedBy(ownedBy(okEnt.ID))).Return(done, nil).Once()
		ledger.On("GetByID", ctx, mock.MatchedBy(ownedBy(badEnt.ID))).
			Return(nil, errors.New("connection reset")).Once()

		cmd := build(ledger, ents, gw, reg, notifier)
		result, err := cmd.Execute(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, result.Scanned)
		assert.Equal(t, 1, result.Processed)
		assert.Equal(t, 1, result.Errors)
	})
}
