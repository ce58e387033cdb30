package postgres

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

type orderLockerPostgres struct {
	store *Store
}

// NewOrderLocker создаёт OrderLocker на advisory-блокировках PostgreSQL.
// Ключ блокировки — fnv64a от orderID, блокировка живёт в пределах одного
// соединения и снимается до возврата из WithLock.
func NewOrderLocker(store *Store) domain.OrderLocker {
	return &orderLockerPostgres{store: store}
}

func (l *orderLockerPostgres) WithLock(ctx context.Context, orderID string, fn func(ctx context.Context) error) error {
	if orderID == "" {
		return fmt.Errorf("order id is required for locking")
	}

	conn, err := l.store.DB().Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire db connection: %w", err)
	}
	defer conn.Close()

	key := lockKey(orderID)
	if _, err := conn.ExecContext(ctx, "SELECT pg_advisory_lock($1)", key); err != nil {
		return fmt.Errorf("acquire order lock: %w", err)
	}
	defer func() {
		// Разблокировка не зависит от отмены исходного контекста.
		_, _ = conn.ExecContext(context.Background(), "SELECT pg_advisory_unlock($1)", key)
	}()

	return fn(ctx)
}

func lockKey(orderID string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(orderID))
	return int64(h.Sum64())
}

var _ domain.OrderLocker = (*orderLockerPostgres)(nil)
