package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/hostfold/renewal-engine/internal/domain/entity"
	"github.com/hostfold/renewal-engine/internal/domain/repository"
)

// MockRenewalLedger is a mock implementation of RenewalLedger
type MockRenewalLedger struct {
	mock.Mock
}

// NewMockRenewalLedger creates a new mock ledger
func NewMockRenewalLedger() *MockRenewalLedger {
	return &MockRenewalLedger{}
}

func (m *MockRenewalLedger) Create(ctx context.Context, attempt *entity.RenewalAttempt) error {
	args := m.Called(ctx, attempt)
	return args.Error(0)
}

func (m *MockRenewalLedger) GetByID(ctx context.Context, id uuid.UUID) (*entity.RenewalAttempt, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.RenewalAttempt), args.Error(1)
}

func (m *MockRenewalLedger) GetOpenAttempt(ctx context.Context, entitlementID uuid.UUID, cycleKey string) (*entity.RenewalAttempt, error) {
	args := m.Called(ctx, entitlementID, cycleKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.RenewalAttempt), args.Error(1)
}

func (m *MockRenewalLedger) UpdateState(ctx context.Context, id uuid.UUID, expected, next entity.AttemptState, update repository.AttemptUpdate) error {
	args := m.Called(ctx, id, expected, next, update)
	return args.Error(0)
}

func (m *MockRenewalLedger) ListPending(ctx context.Context, limit int) ([]*entity.RenewalAttempt, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entity.RenewalAttempt), args.Error(1)
}

func (m *MockRenewalLedger) ListNeedingReconciliation(ctx context.Context, limit int) ([]*entity.RenewalAttempt, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entity.RenewalAttempt), args.Error(1)
}

func (m *MockRenewalLedger) ListByEntitlement(ctx context.Context, entitlementID uuid.UUID) ([]*entity.RenewalAttempt, error) {
	args := m.Called(ctx, entitlementID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entity.RenewalAttempt), args.Error(1)
}

func (m *MockRenewalLedger) MarkResolved(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
