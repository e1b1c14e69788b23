package mocks

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/hostfold/renewal-engine/internal/domain/service"
	"github.com/hostfold/renewal-engine/internal/domain/valueobject"
)

// MockPaymentGateway is a mock implementation of PaymentGateway
type MockPaymentGateway struct {
	mock.Mock
}

// NewMockPaymentGateway creates a new mock payment gateway
func NewMockPaymentGateway() *MockPaymentGateway {
	return &MockPaymentGateway{}
}

func (m *MockPaymentGateway) Charge(ctx context.Context, paymentMethodID string, amount valueobject.Money, idempotencyKey string) (*service.ChargeResult, error) {
	args := m.Called(ctx, paymentMethodID, amount, idempotencyKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ChargeResult), args.Error(1)
}

// MockRegistrar is a mock implementation of Registrar
type MockRegistrar struct {
	mock.Mock
}

// NewMockRegistrar creates a new mock registrar
func NewMockRegistrar() *MockRegistrar {
	return &MockRegistrar{}
}

func (m *MockRegistrar) Extend(ctx context.Context, domainName string, years int, idempotencyKey string) (*service.ExtendResult, error) {
	args := m.Called(ctx, domainName, years, idempotencyKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ExtendResult), args.Error(1)
}

// MockNotifier is a mock implementation of Notifier. It records delivered
// events so tests can assert on outcomes without expectation ceremony.
type MockNotifier struct {
	mu     sync.Mutex
	events []service.RenewalEvent
}

// NewMockNotifier creates a new mock notifier
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

func (m *MockNotifier) Notify(ctx context.Context, event service.RenewalEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

// Events returns a copy of the delivered events
func (m *MockNotifier) Events() []service.RenewalEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]service.RenewalEvent, len(m.events))
	copy(out, m.events)
	return out
}
