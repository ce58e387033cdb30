package integration

import (
	"context"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
	"github.com/vladislavdragonenkov/orderflow/internal/service/payment"
	"github.com/vladislavdragonenkov/orderflow/internal/service/saga"
	"github.com/vladislavdragonenkov/orderflow/internal/service/stock"
	"github.com/vladislavdragonenkov/orderflow/internal/storage/memory"
)

// OrderLifecycleTestSuite тестирует полный жизненный цикл заказа через saga.
type OrderLifecycleTestSuite struct {
	suite.Suite
	orders       domain.OrderRepository
	payments     domain.PaymentRepository
	reservations domain.ReservationRepository
	outbox       domain.OutboxRepository
	stock        *stock.MockClient
	gateway      *payment.MockGateway
	saga         saga.Orchestrator
}

func (s *OrderLifecycleTestSuite) SetupTest() {
	baseLogger := log.New()
	baseLogger.SetLevel(log.WarnLevel) // Уменьшаем шум в тестах
	logger := baseLogger.WithField("component", "integration-test")

	s.orders = memory.NewOrderRepository()
	s.payments = memory.NewPaymentRepository()
	s.reservations = memory.NewReservationRepository()
	s.outbox = memory.NewOutboxRepository()
	s.stock = stock.NewMockClient()
	s.gateway = payment.NewMockGateway()

	s.saga = saga.NewOrchestratorWithoutMetrics(
		s.orders,
		s.payments,
		s.reservations,
		s.outbox,
		s.stock,
		s.gateway,
		memory.NewOrderLocker(),
		saga.DefaultConfig(),
		logger,
	)
}

func (s *OrderLifecycleTestSuite) createOrderInput() saga.CreateOrderInput {
	return saga.CreateOrderInput{
		CustomerID: "customer-123",
		Currency:   "KRW",
		Address: domain.Address{
			Recipient: "Hong Gildong",
			Phone:     "+82-10-1234-5678",
			Line1:     "1 Teheran-ro",
			City:      "Seoul",
			Zip:       "06234",
		},
		Items: []saga.CreateOrderItem{
			{ProductID: "laptop-pro", Qty: 1, PriceMinor: 199900},
			{ProductID: "mouse-wireless", Qty: 2, PriceMinor: 2500},
		},
		CartItemIDs: []string{"cart-1", "cart-2"},
	}
}

func (s *OrderLifecycleTestSuite) TestSuccessfulOrderLifecycle() {
	ctx := context.Background()

	// 1. Создаём заказ
	result, err := s.saga.CreateOrder(ctx, s.createOrderInput())
	require.NoError(s.T(), err)
	require.NotEmpty(s.T(), result.Order.ID)
	require.Equal(s.T(), domain.OrderStatusPending, result.Order.Status)
	require.Equal(s.T(), int64(204900), result.Order.AmountMinor)
	require.Equal(s.T(), domain.PaymentStatusReady, result.Payment.Status)
	require.NotEmpty(s.T(), result.Session.ClientKey)
	require.Equal(s.T(), 2, s.stock.ReserveCalls)

	// 2. Подтверждаем оплату
	confirmed, err := s.saga.ConfirmPayment(ctx, result.Order.ID, result.Session.ClientKey)
	require.NoError(s.T(), err)
	require.Equal(s.T(), domain.OrderStatusConfirmed, confirmed.Status)
	require.False(s.T(), confirmed.ConfirmedAt.IsZero())

	paid, err := s.payments.GetByOrderID(result.Order.ID)
	require.NoError(s.T(), err)
	require.Equal(s.T(), domain.PaymentStatusPaid, paid.Status)

	reservations, err := s.reservations.ListByOrder(result.Order.ID)
	require.NoError(s.T(), err)
	for _, reservation := range reservations {
		require.Equal(s.T(), domain.ReservationStatusConfirmed, reservation.Status)
	}

	// 3. События попали в outbox
	events, err := s.outbox.PullPending(10)
	require.NoError(s.T(), err)
	require.NotEmpty(s.T(), events)
}

func (s *OrderLifecycleTestSuite) TestCancelAfterConfirmReleasesEverything() {
	ctx := context.Background()

	result, err := s.saga.CreateOrder(ctx, s.createOrderInput())
	require.NoError(s.T(), err)

	_, err = s.saga.ConfirmPayment(ctx, result.Order.ID, result.Session.ClientKey)
	require.NoError(s.T(), err)

	canceled, err := s.saga.CancelOrder(ctx, result.Order.ID, "changed my mind")
	require.NoError(s.T(), err)
	require.Equal(s.T(), domain.OrderStatusCanceled, canceled.Status)

	// Резервы сняты, возврат через шлюз запрошен
	reservations, err := s.reservations.ListByOrder(result.Order.ID)
	require.NoError(s.T(), err)
	for _, reservation := range reservations {
		require.Equal(s.T(), domain.ReservationStatusReleased, reservation.Status)
	}
	require.Equal(s.T(), 1, s.gateway.CancelCalls)

	pay, err := s.payments.GetByOrderID(result.Order.ID)
	require.NoError(s.T(), err)
	require.Equal(s.T(), domain.PaymentStatusCanceled, pay.Status)
}

func (s *OrderLifecycleTestSuite) TestCancelPendingOrder() {
	ctx := context.Background()

	result, err := s.saga.CreateOrder(ctx, s.createOrderInput())
	require.NoError(s.T(), err)

	canceled, err := s.saga.CancelOrder(ctx, result.Order.ID, "customer request")
	require.NoError(s.T(), err)
	require.Equal(s.T(), domain.OrderStatusCanceled, canceled.Status)

	// Повторная отмена — no-op, возвращает текущее состояние
	again, err := s.saga.CancelOrder(ctx, result.Order.ID, "again")
	require.NoError(s.T(), err)
	require.Equal(s.T(), domain.OrderStatusCanceled, again.Status)
	require.Equal(s.T(), 1, s.gateway.CancelCalls)
}

func (s *OrderLifecycleTestSuite) TestStockFailureCompensatesReservations() {
	ctx := context.Background()

	// Второй Reserve падает: первый резерв обязан быть снят
	s.stock.FailFrom = 2

	_, err := s.saga.CreateOrder(ctx, s.createOrderInput())
	require.Error(s.T(), err)
	require.Len(s.T(), s.stock.ReleasedTokens(), 1)

	orders, listErr := s.orders.ListByCustomer("customer-123", 10)
	require.NoError(s.T(), listErr)
	require.Empty(s.T(), orders)
}

func (s *OrderLifecycleTestSuite) TestConfirmUnknownOrder() {
	_, err := s.saga.ConfirmPayment(context.Background(), "no-such-order", "key")
	require.ErrorIs(s.T(), err, domain.ErrOrderNotFound)
}

func TestOrderLifecycleTestSuite(t *testing.T) {
	suite.Run(t, new(OrderLifecycleTestSuite))
}
