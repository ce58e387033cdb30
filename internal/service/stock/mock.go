package stock

import (
	"context"
	"fmt"
	"sync"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

// MockClient — конфигурируемая заглушка StockReservationClient для тестов.
type MockClient struct {
	mu sync.Mutex

	// ReserveErr возвращается каждым вызовом Reserve, если задана.
	ReserveErr error
	// FailFrom задаёт номер вызова Reserve (с единицы), начиная с которого
	// вызовы падают с FailFromErr. Ноль отключает сценарий частичного отказа.
	FailFrom    int
	FailFromErr error
	// ReleaseErr возвращается каждым вызовом Release, если задана.
	ReleaseErr error

	ReserveCalls int
	ReleaseCalls int
	Released     []string
}

// NewMockClient возвращает mock с успешным сценарием по умолчанию.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// Reserve выдаёт детерминированный токен и считает вызовы.
func (m *MockClient) Reserve(ctx context.Context, productID, variantID string, qty int32) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ReserveCalls++
	if m.ReserveErr != nil {
		return "", m.ReserveErr
	}
	if m.FailFrom > 0 && m.ReserveCalls >= m.FailFrom {
		err := m.FailFromErr
		if err == nil {
			err = domain.ErrStockUnavailable
		}
		return "", err
	}
	return fmt.Sprintf("token-%s-%d", productID, m.ReserveCalls), nil
}

// Release запоминает снятые токены и считает вызовы.
func (m *MockClient) Release(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ReleaseCalls++
	if m.ReleaseErr != nil {
		return m.ReleaseErr
	}
	m.Released = append(m.Released, token)
	return nil
}

// ReleasedTokens возвращает копию списка снятых токенов.
func (m *MockClient) ReleasedTokens() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Released...)
}

var _ domain.StockReservationClient = (*MockClient)(nil)
