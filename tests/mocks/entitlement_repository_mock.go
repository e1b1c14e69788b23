package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/hostfold/renewal-engine/internal/domain/entity"
)

// MockEntitlementRepository is a mock implementation of EntitlementRepository
type MockEntitlementRepository struct {
	mock.Mock
}

// NewMockEntitlementRepository creates a new mock entitlement repository
func NewMockEntitlementRepository() *MockEntitlementRepository {
	return &MockEntitlementRepository{}
}

func (m *MockEntitlementRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Entitlement, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Entitlement), args.Error(1)
}

func (m *MockEntitlementRepository) Create(ctx context.Context, entitlement *entity.Entitlement) error {
	args := m.Called(ctx, entitlement)
	return args.Error(0)
}

func (m *MockEntitlementRepository) ListDueForRenewal(ctx context.Context, cutoff time.Time, limit int) ([]*entity.Entitlement, error) {
	args := m.Called(ctx, cutoff, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entity.Entitlement), args.Error(1)
}

func (m *MockEntitlementRepository) AdvanceExpiration(ctx context.Context, id uuid.UUID, prior, next time.Time) error {
	args := m.Called(ctx, id, prior, next)
	return args.Error(0)
}
