package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

// paymentRepositoryInMemory хранит платежи по orderID: инвариант
// "один платёж на заказ" обеспечивается ключом карты.
type paymentRepositoryInMemory struct {
	mu      sync.RWMutex
	byOrder map[string]domain.Payment
}

// NewPaymentRepository возвращает in-memory репозиторий платежей.
func NewPaymentRepository() domain.PaymentRepository {
	return &paymentRepositoryInMemory{
		byOrder: make(map[string]domain.Payment),
	}
}

// Create сохраняет новый платёж; повтор по заказу — ErrPaymentAlreadyExists.
func (r *paymentRepositoryInMemory) Create(payment domain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byOrder[payment.OrderID]; exists {
		return domain.ErrPaymentAlreadyExists
	}
	r.byOrder[payment.OrderID] = payment
	return nil
}

// GetByOrderID возвращает платёж заказа или ErrPaymentNotFound.
func (r *paymentRepositoryInMemory) GetByOrderID(orderID string) (domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	payment, ok := r.byOrder[orderID]
	if !ok {
		return domain.Payment{}, domain.ErrPaymentNotFound
	}
	return payment, nil
}

// ExistsByOrderID проверяет наличие платежа по заказу.
func (r *paymentRepositoryInMemory) ExistsByOrderID(orderID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.byOrder[orderID]
	return ok, nil
}

// Save перезаписывает платёж, проверяя версию (optimistic locking).
func (r *paymentRepositoryInMemory) Save(payment domain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.byOrder[payment.OrderID]
	if !ok {
		return domain.ErrPaymentNotFound
	}
	if current.Version != payment.Version {
		return domain.ErrPaymentVersionConflict
	}
	payment.Version++
	r.byOrder[payment.OrderID] = payment
	return nil
}

// ListExpiredReady возвращает платежи в ready, созданные раньше before.
func (r *paymentRepositoryInMemory) ListExpiredReady(before time.Time, limit int) ([]domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Payment, 0)
	for _, payment := range r.byOrder {
		if payment.Status != domain.PaymentStatusReady {
			continue
		}
		if !payment.CreatedAt.Before(before) {
			continue
		}
		result = append(result, payment)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

var _ domain.PaymentRepository = (*paymentRepositoryInMemory)(nil)
