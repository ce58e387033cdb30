package payment

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

// MockGateway — конфигурируемая заглушка PaymentGateway для тестов.
type MockGateway struct {
	mu sync.Mutex

	PrepareSession domain.CheckoutSession
	PrepareErr     error
	// PrepareErrTimes ограничивает число неуспешных Prepare; после этого
	// вызовы проходят успешно. Ноль означает "падать всегда, пока задана ошибка".
	PrepareErrTimes int
	CancelErr       error

	PrepareCalls int
	CancelCalls  int
}

// NewMockGateway возвращает mock с успешным сценарием по умолчанию.
func NewMockGateway() *MockGateway {
	return &MockGateway{
		PrepareSession: domain.CheckoutSession{
			ClientKey:  "client-key-test",
			SuccessURL: "https://shop.local/checkout/success",
			FailURL:    "https://shop.local/checkout/fail",
		},
	}
}

// Prepare возвращает настроенную сессию или ошибку и считает вызовы.
func (m *MockGateway) Prepare(ctx context.Context, orderID string, amountMinor int64) (domain.CheckoutSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.PrepareCalls++
	if m.PrepareErr != nil {
		if m.PrepareErrTimes == 0 || m.PrepareCalls <= m.PrepareErrTimes {
			return domain.CheckoutSession{}, m.PrepareErr
		}
	}
	return m.PrepareSession, nil
}

// CancelPayment возвращает настроенную ошибку и считает вызовы.
func (m *MockGateway) CancelPayment(ctx context.Context, orderID string, cancelAmountMinor int64, orderItemIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CancelCalls++
	return m.CancelErr
}

var _ domain.PaymentGateway = (*MockGateway)(nil)
