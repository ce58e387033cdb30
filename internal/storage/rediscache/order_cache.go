package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

const (
	keyOrderPattern = "orderflow:order:%s"

	defaultCacheTTL  = 5 * time.Minute
	defaultOpTimeout = 2 * time.Second
)

// New создаёт Redis-клиент для кеша заказов.
func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr})
}

// orderCacheRepository — read-through кеш поверх OrderRepository. Get идёт
// через Redis, запись и обновление инвалидируют ключ. Ошибки кеша не ломают
// запрос: источником истины остаётся нижележащий репозиторий.
type orderCacheRepository struct {
	inner  domain.OrderRepository
	client *redis.Client
	ttl    time.Duration
	logger *log.Entry
}

// NewOrderCacheRepository оборачивает репозиторий заказов Redis-кешем.
func NewOrderCacheRepository(inner domain.OrderRepository, client *redis.Client, logger *log.Entry) domain.OrderRepository {
	if logger == nil {
		logger = log.WithField("component", "order-cache")
	}
	return &orderCacheRepository{
		inner:  inner,
		client: client,
		ttl:    defaultCacheTTL,
		logger: logger,
	}
}

func (r *orderCacheRepository) Create(order domain.Order) error {
	if err := r.inner.Create(order); err != nil {
		return err
	}
	r.invalidate(order.ID)
	return nil
}

func (r *orderCacheRepository) Get(id string) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultOpTimeout)
	defer cancel()

	key := orderKey(id)
	raw, err := r.client.Get(ctx, key).Bytes()
	if err == nil {
		var order domain.Order
		if unmarshalErr := json.Unmarshal(raw, &order); unmarshalErr == nil {
			return order, nil
		}
		// Битую запись проще выбросить, чем чинить.
		r.invalidate(id)
	} else if !errors.Is(err, redis.Nil) {
		r.logger.WithError(err).WithField("order_id", id).Warn("order cache read failed")
	}

	order, err := r.inner.Get(id)
	if err != nil {
		return domain.Order{}, err
	}

	if raw, marshalErr := json.Marshal(order); marshalErr == nil {
		if setErr := r.client.Set(ctx, key, raw, r.ttl).Err(); setErr != nil {
			r.logger.WithError(setErr).WithField("order_id", id).Warn("order cache write failed")
		}
	}

	return order, nil
}

func (r *orderCacheRepository) ListByCustomer(customerID string, limit int) ([]domain.Order, error) {
	return r.inner.ListByCustomer(customerID, limit)
}

func (r *orderCacheRepository) Save(order domain.Order) error {
	if err := r.inner.Save(order); err != nil {
		return err
	}
	r.invalidate(order.ID)
	return nil
}

func (r *orderCacheRepository) invalidate(orderID string) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultOpTimeout)
	defer cancel()

	if err := r.client.Del(ctx, orderKey(orderID)).Err(); err != nil {
		r.logger.WithError(err).WithField("order_id", orderID).Warn("order cache invalidation failed")
	}
}

func orderKey(orderID string) string {
	return fmt.Sprintf(keyOrderPattern, orderID)
}

var _ domain.OrderRepository = (*orderCacheRepository)(nil)
