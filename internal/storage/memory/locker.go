package memory

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

// orderLockerInMemory выдаёт по мьютексу на каждый orderID: подтверждение
// и отмена одного заказа взаимно исключены, разные заказы идут параллельно.
type orderLockerInMemory struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewOrderLocker возвращает in-memory реализацию OrderLocker.
func NewOrderLocker() domain.OrderLocker {
	return &orderLockerInMemory{
		locks: make(map[string]*sync.Mutex),
	}
}

// WithLock выполняет fn под эксклюзивной блокировкой заказа.
// Блокировки не освобождаются после использования: количество активных
// заказов за время жизни процесса ограничено, и простота важнее экономии.
func (l *orderLockerInMemory) WithLock(ctx context.Context, orderID string, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	lock, ok := l.locks[orderID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[orderID] = lock
	}
	l.mu.Unlock()

	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}

var _ domain.OrderLocker = (*orderLockerInMemory)(nil)
