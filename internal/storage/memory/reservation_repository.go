package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

// reservationRepositoryInMemory хранит локальные записи складских резервов.
type reservationRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.StockReservation
}

// NewReservationRepository возвращает in-memory репозиторий резервов.
func NewReservationRepository() domain.ReservationRepository {
	return &reservationRepositoryInMemory{
		items: make(map[string]domain.StockReservation),
	}
}

// CreateAll сохраняет резервы заказа одной операцией.
func (r *reservationRepositoryInMemory) CreateAll(reservations []domain.StockReservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	for _, reservation := range reservations {
		if reservation.ID == "" {
			reservation.ID = uuid.NewString()
		}
		if reservation.CreatedAt.IsZero() {
			reservation.CreatedAt = now
		}
		reservation.UpdatedAt = now
		r.items[reservation.ID] = reservation
	}
	return nil
}

// ListByOrder возвращает резервы заказа в порядке создания.
func (r *reservationRepositoryInMemory) ListByOrder(orderID string) ([]domain.StockReservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.StockReservation, 0)
	for _, reservation := range r.items {
		if reservation.OrderID == orderID {
			result = append(result, reservation)
		}
	}
	sortReservations(result)
	return result, nil
}

// UpdateStatus переводит резерв в новый статус.
func (r *reservationRepositoryInMemory) UpdateStatus(id string, status domain.ReservationStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	reservation, ok := r.items[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	reservation.Status = status
	reservation.UpdatedAt = time.Now().UTC()
	r.items[id] = reservation
	return nil
}

// ListReleaseFailed возвращает резервы, ожидающие повторного снятия.
func (r *reservationRepositoryInMemory) ListReleaseFailed(limit int) ([]domain.StockReservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.StockReservation, 0)
	for _, reservation := range r.items {
		if reservation.Status != domain.ReservationStatusReleaseFailed {
			continue
		}
		result = append(result, reservation)
	}
	sortReservations(result)

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func sortReservations(reservations []domain.StockReservation) {
	sort.Slice(reservations, func(i, j int) bool {
		if !reservations[i].CreatedAt.Equal(reservations[j].CreatedAt) {
			return reservations[i].CreatedAt.Before(reservations[j].CreatedAt)
		}
		return reservations[i].ID < reservations[j].ID
	})
}

var _ domain.ReservationRepository = (*reservationRepositoryInMemory)(nil)
