package app

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
	"github.com/vladislavdragonenkov/orderflow/internal/service/payment"
	"github.com/vladislavdragonenkov/orderflow/internal/service/saga"
	"github.com/vladislavdragonenkov/orderflow/internal/service/stock"
	"github.com/vladislavdragonenkov/orderflow/internal/storage/memory"
	"github.com/vladislavdragonenkov/orderflow/internal/storage/postgres"
	"github.com/vladislavdragonenkov/orderflow/internal/storage/rediscache"
)

const (
	breakerMaxFailures  = 5
	breakerResetTimeout = 30 * time.Second
)

// Dependencies содержит все зависимости приложения.
type Dependencies struct {
	Orders       domain.OrderRepository
	Payments     domain.PaymentRepository
	Reservations domain.ReservationRepository
	Outbox       domain.OutboxRepository
	Idempotency  domain.IdempotencyRepository
	Locker       domain.OrderLocker
	Stock        domain.StockReservationClient
	Gateway      domain.PaymentGateway
	Logger       *log.Entry

	store       *postgres.Store
	redisClient *redis.Client
}

// NewDependencies создаёт зависимости согласно конфигурации: хранилище по
// StorageDriver, Redis-кеш заказов при заданном RedisAddr, реальные HTTP-клиенты
// склада и шлюза при заданных base URL, иначе моки.
func NewDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	deps := &Dependencies{Logger: logger}

	switch cfg.StorageDriver {
	case StorageDriverMemory, "":
		deps.Orders = memory.NewOrderRepository()
		deps.Payments = memory.NewPaymentRepository()
		deps.Reservations = memory.NewReservationRepository()
		deps.Outbox = memory.NewOutboxRepository()
		deps.Idempotency = memory.NewIdempotencyRepository()
		deps.Locker = memory.NewOrderLocker()
		logger.Info("using in-memory storage")
	case StorageDriverPostgres:
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if cfg.PostgresAutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("apply migrations: %w", err)
			}
		}
		deps.store = store
		deps.Orders = postgres.NewOrderRepository(store)
		deps.Payments = postgres.NewPaymentRepository(store)
		deps.Reservations = postgres.NewReservationRepository(store)
		deps.Outbox = postgres.NewOutboxRepository(store)
		deps.Idempotency = postgres.NewIdempotencyRepository(store)
		deps.Locker = postgres.NewOrderLocker(store)
		logger.Info("using postgres storage")
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}

	if cfg.RedisAddr != "" {
		client := rediscache.New(cfg.RedisAddr)
		if err := client.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Warn("redis is unavailable, continuing without order cache")
			_ = client.Close()
		} else {
			deps.redisClient = client
			deps.Orders = rediscache.NewOrderCacheRepository(deps.Orders, client, logger.WithField("component", "order-cache"))
			logger.WithField("addr", cfg.RedisAddr).Info("order cache enabled")
		}
	}

	if cfg.StockBaseURL != "" {
		deps.Stock = stock.NewClient(cfg.StockBaseURL, cfg.ClientTimeout, logger.WithField("component", "stock-client"))
	} else {
		// NOTE: мок используется для разработки и демо, в production задайте
		// ORDERFLOW_STOCK_BASE_URL.
		deps.Stock = stock.NewMockClient()
		logger.Warn("stock base URL is not set, using mock stock client")
	}

	var gateway domain.PaymentGateway
	if cfg.GatewayBaseURL != "" {
		gateway = payment.NewClient(cfg.GatewayBaseURL, cfg.GatewayAPIKey, cfg.ClientTimeout, logger.WithField("component", "payment-client"))
	} else {
		gateway = payment.NewMockGateway()
		logger.Warn("gateway base URL is not set, using mock payment gateway")
	}
	breaker := saga.NewCircuitBreaker(breakerMaxFailures, breakerResetTimeout, logger.WithField("component", "gateway-breaker"))
	deps.Gateway = saga.NewGatewayWithBreaker(gateway, breaker)

	return deps, nil
}

// Store возвращает postgres-хранилище или nil для in-memory драйвера.
func (d *Dependencies) Store() *postgres.Store {
	return d.store
}

// Redis возвращает redis-клиент или nil, если кеш выключен.
func (d *Dependencies) Redis() *redis.Client {
	return d.redisClient
}

// Close освобождает внешние ресурсы зависимостей.
func (d *Dependencies) Close() {
	if d.redisClient != nil {
		if err := d.redisClient.Close(); err != nil {
			d.Logger.WithError(err).Warn("failed to close redis client")
		}
	}
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			d.Logger.WithError(err).Warn("failed to close postgres store")
		}
	}
}
