package saga

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
	"github.com/vladislavdragonenkov/orderflow/internal/metrics"
)

// CreateOrderItem — одна позиция входящего запроса на оформление.
type CreateOrderItem struct {
	ProductID  string
	VariantID  string
	Qty        int32
	PriceMinor int64
}

// CreateOrderInput — входные данные оформления заказа.
type CreateOrderInput struct {
	CustomerID  string
	Currency    string
	Address     domain.Address
	Items       []CreateOrderItem
	CartItemIDs []string
}

// CreateOrderResult — результат успешного оформления: заказ, платёж и
// платёжная сессия для клиента.
type CreateOrderResult struct {
	Order   domain.Order
	Payment domain.Payment
	Session domain.CheckoutSession
}

// Orchestrator управляет жизненным циклом заказа: оформление с резервом и
// подготовкой платежа, подтверждение оплаты и отмена с компенсациями.
type Orchestrator interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (CreateOrderResult, error)
	ConfirmPayment(ctx context.Context, orderID, paymentKey string) (domain.Order, error)
	CancelOrder(ctx context.Context, orderID, reason string) (domain.Order, error)
}

// Config — настройки оркестратора.
type Config struct {
	// CancelGrace — окно после подтверждения, в котором заказ ещё можно отменить.
	CancelGrace time.Duration
	// PrepareMaxAttempts — число попыток регистрации платежа у шлюза.
	PrepareMaxAttempts int
	// PrepareRetryDelay — базовая задержка между попытками Prepare.
	PrepareRetryDelay time.Duration
	// Clock подменяется в тестах; nil означает time.Now.
	Clock func() time.Time
}

// DefaultConfig возвращает конфигурацию по умолчанию.
func DefaultConfig() Config {
	return Config{
		CancelGrace:        30 * time.Minute,
		PrepareMaxAttempts: 3,
		PrepareRetryDelay:  100 * time.Millisecond,
	}
}

type orchestrator struct {
	orders       domain.OrderRepository
	payments     domain.PaymentRepository
	reservations domain.ReservationRepository
	outbox       domain.OutboxRepository
	stock        domain.StockReservationClient
	gateway      domain.PaymentGateway
	locker       domain.OrderLocker
	logger       *log.Entry
	metrics      *metrics.CheckoutMetrics
	cfg          Config
	clock        func() time.Time
}

// NewOrchestrator создаёт рабочий экземпляр оркестратора.
func NewOrchestrator(
	orders domain.OrderRepository,
	payments domain.PaymentRepository,
	reservations domain.ReservationRepository,
	outbox domain.OutboxRepository,
	stock domain.StockReservationClient,
	gateway domain.PaymentGateway,
	locker domain.OrderLocker,
	cfg Config,
	logger *log.Entry,
) Orchestrator {
	return newOrchestrator(orders, payments, reservations, outbox, stock, gateway, locker, cfg, logger, metrics.NewCheckoutMetrics())
}

// NewOrchestratorWithoutMetrics создаёт оркестратор без метрик (для тестов).
func NewOrchestratorWithoutMetrics(
	orders domain.OrderRepository,
	payments domain.PaymentRepository,
	reservations domain.ReservationRepository,
	outbox domain.OutboxRepository,
	stock domain.StockReservationClient,
	gateway domain.PaymentGateway,
	locker domain.OrderLocker,
	cfg Config,
	logger *log.Entry,
) Orchestrator {
	return newOrchestrator(orders, payments, reservations, outbox, stock, gateway, locker, cfg, logger, nil)
}

func newOrchestrator(
	orders domain.OrderRepository,
	payments domain.PaymentRepository,
	reservations domain.ReservationRepository,
	outbox domain.OutboxRepository,
	stock domain.StockReservationClient,
	gateway domain.PaymentGateway,
	locker domain.OrderLocker,
	cfg Config,
	logger *log.Entry,
	checkoutMetrics *metrics.CheckoutMetrics,
) Orchestrator {
	if logger == nil {
		logger = log.New().WithField("component", "saga")
	}
	if cfg.CancelGrace <= 0 {
		cfg.CancelGrace = DefaultConfig().CancelGrace
	}
	if cfg.PrepareMaxAttempts <= 0 {
		cfg.PrepareMaxAttempts = DefaultConfig().PrepareMaxAttempts
	}
	if cfg.PrepareRetryDelay <= 0 {
		cfg.PrepareRetryDelay = DefaultConfig().PrepareRetryDelay
	}
	clock := cfg.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &orchestrator{
		orders:       orders,
		payments:     payments,
		reservations: reservations,
		outbox:       outbox,
		stock:        stock,
		gateway:      gateway,
		locker:       locker,
		logger:       logger,
		metrics:      checkoutMetrics,
		cfg:          cfg,
		clock:        clock,
	}
}

// CreateOrder оформляет заказ: валидация, по-позиционный резерв на складе,
// запись заказа и платежа, регистрация платежа у шлюза. Любой неуспех после
// первого полученного резерва запускает полную компенсацию.
func (o *orchestrator) CreateOrder(ctx context.Context, input CreateOrderInput) (CreateOrderResult, error) {
	start := time.Now()
	if o.metrics != nil {
		o.metrics.RecordCheckoutStarted()
	}
	defer func() {
		if o.metrics != nil {
			o.metrics.RecordCheckoutFinished()
			o.metrics.RecordCreateDuration(time.Since(start))
		}
	}()

	now := o.clock()
	order := o.assembleOrder(input, now)

	if errs := order.ValidateInvariants(); len(errs) > 0 {
		if o.metrics != nil {
			o.metrics.RecordCheckoutFailed()
		}
		return CreateOrderResult{}, fmt.Errorf("order validation: %w", errors.Join(errs...))
	}

	reserved, err := o.reserveItems(ctx, &order, now)
	if err != nil {
		if o.metrics != nil {
			o.metrics.RecordCheckoutFailed()
		}
		return CreateOrderResult{}, err
	}

	payment := domain.Payment{
		ID:          uuid.NewString(),
		OrderID:     order.ID,
		AmountMinor: order.AmountMinor,
		Status:      domain.PaymentStatusReady,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := o.persistCheckout(order, reserved, payment); err != nil {
		o.releaseTokens(ctx, order.ID, reserved)
		if o.metrics != nil {
			o.metrics.RecordCheckoutFailed()
		}
		return CreateOrderResult{}, err
	}

	session, err := o.prepareWithRetry(ctx, order.ID, order.AmountMinor)
	if err != nil {
		o.logger.WithError(err).WithField("order_id", order.ID).Warn("gateway prepare failed, compensating")
		o.compensateCheckout(ctx, order, payment, err)
		if o.metrics != nil {
			o.metrics.RecordCheckoutFailed()
		}
		return CreateOrderResult{}, fmt.Errorf("prepare payment: %w", err)
	}

	o.emitEvent(order.ID, domain.EventTypePaymentReady, map[string]interface{}{
		"payment_id":   payment.ID,
		"amount_minor": payment.AmountMinor,
		"ts":           now.Format(time.RFC3339Nano),
	})

	if o.metrics != nil {
		o.metrics.RecordOrderCreated()
	}
	o.logger.WithFields(log.Fields{
		"order_id":     order.ID,
		"customer_id":  order.CustomerID,
		"amount_minor": order.AmountMinor,
	}).Info("order created")

	return CreateOrderResult{Order: order, Payment: payment, Session: session}, nil
}

// ConfirmPayment подтверждает оплату заказа. Проверка и запись выполняются
// под эксклюзивной блокировкой заказа, поэтому конкурирующая отмена либо
// дождётся результата, либо увидит уже подтверждённый заказ. Повторный
// вызов для уже оплаченного заказа возвращает текущее состояние.
func (o *orchestrator) ConfirmPayment(ctx context.Context, orderID, paymentKey string) (domain.Order, error) {
	var confirmed domain.Order
	var replay bool

	err := o.locker.WithLock(ctx, orderID, func(ctx context.Context) error {
		order, err := o.orders.Get(orderID)
		if err != nil {
			return err
		}
		payment, err := o.payments.GetByOrderID(orderID)
		if err != nil {
			return err
		}

		// Сверка сумм обязана происходить до любых переходов: расхождение
		// означает повреждение данных и не исправляется молча.
		if payment.AmountMinor != order.AmountMinor {
			o.logger.WithFields(log.Fields{
				"order_id":       orderID,
				"order_amount":   order.AmountMinor,
				"payment_amount": payment.AmountMinor,
			}).Error("amount integrity violation")
			return domain.ErrAmountIntegrity
		}

		// Повторное подтверждение уже оплаченного заказа — no-op: возвращаем
		// текущее состояние, события не дублируются.
		if payment.Status == domain.PaymentStatusPaid {
			confirmed = order
			replay = true
			return nil
		}

		now := o.clock()
		if err := payment.MarkPaid(paymentKey, now); err != nil {
			return err
		}
		if err := order.Confirm(now); err != nil {
			return err
		}

		if err := o.payments.Save(payment); err != nil {
			return err
		}
		if err := o.orders.Save(order); err != nil {
			return err
		}
		order.Version++

		o.markReservations(orderID, domain.ReservationStatusConfirmed)

		// OrderCreated публикуется только для оплаченных заказов: слушатели
		// не должны видеть оформления, которые так и не подтвердились.
		o.emitEvent(orderID, domain.EventTypeOrderCreated, map[string]interface{}{
			"customer_id":  order.CustomerID,
			"amount_minor": order.AmountMinor,
			"ts":           now.Format(time.RFC3339Nano),
		})
		o.emitEvent(orderID, domain.EventTypeOrderConfirmed, map[string]interface{}{
			"customer_id":   order.CustomerID,
			"payment_key":   paymentKey,
			"cart_item_ids": order.CartItemIDs,
			"ts":            now.Format(time.RFC3339Nano),
		})

		confirmed = order
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	if replay {
		return confirmed, nil
	}

	if o.metrics != nil {
		o.metrics.RecordOrderConfirmed()
	}
	o.logger.WithField("order_id", orderID).Info("order confirmed")
	return confirmed, nil
}

// cancelSideEffects — данные для компенсаций, собранные под блокировкой и
// выполняемые после её снятия: блокировка не растягивается на сетевые вызовы.
type cancelSideEffects struct {
	reservations  []domain.StockReservation
	refundPayment bool
	cancelAmount  int64
	orderItemIDs  []string
}

// CancelOrder отменяет заказ. Переходы статусов выполняются под блокировкой,
// внешние компенсации (снятие резерва, отмена у шлюза) — после неё и
// best-effort: их неуспех логируется и добирается фоновой сверкой.
// Повторный вызов для уже отменённого заказа возвращает текущее состояние.
func (o *orchestrator) CancelOrder(ctx context.Context, orderID, reason string) (domain.Order, error) {
	var canceled domain.Order
	var effects cancelSideEffects
	var replay bool

	err := o.locker.WithLock(ctx, orderID, func(ctx context.Context) error {
		order, err := o.orders.Get(orderID)
		if err != nil {
			return err
		}

		// Повторная отмена уже отменённого заказа — no-op: компенсации не
		// перезапускаются, событие не дублируется.
		if order.Status == domain.OrderStatusCanceled {
			canceled = order
			replay = true
			return nil
		}

		now := o.clock()
		if err := order.Cancel(now, o.cfg.CancelGrace); err != nil {
			return err
		}

		payment, err := o.payments.GetByOrderID(orderID)
		switch {
		case err == nil:
			if payment.CanCancel() {
				effects.refundPayment = payment.Status == domain.PaymentStatusPaid
				if err := payment.Cancel(now); err != nil {
					return err
				}
				if err := o.payments.Save(payment); err != nil {
					return err
				}
			}
		case errors.Is(err, domain.ErrPaymentNotFound):
			// Заказ без платежа отменяется без платёжной компенсации.
		default:
			return err
		}

		if err := o.orders.Save(order); err != nil {
			return err
		}
		order.Version++

		effects.cancelAmount = order.AmountMinor
		effects.orderItemIDs = make([]string, 0, len(order.Items))
		for _, item := range order.Items {
			effects.orderItemIDs = append(effects.orderItemIDs, item.ID)
		}

		reservations, err := o.reservations.ListByOrder(orderID)
		if err != nil {
			o.logger.WithError(err).WithField("order_id", orderID).Warn("list reservations failed")
		} else {
			effects.reservations = reservations
		}

		o.emitEvent(orderID, domain.EventTypeOrderCanceled, map[string]interface{}{
			"customer_id": order.CustomerID,
			"reason":      reason,
			"ts":          now.Format(time.RFC3339Nano),
		})

		canceled = order
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	if replay {
		return canceled, nil
	}

	o.applyCancelEffects(ctx, orderID, effects)

	if o.metrics != nil {
		o.metrics.RecordOrderCanceled()
	}
	o.logger.WithFields(log.Fields{
		"order_id": orderID,
		"reason":   reason,
	}).Info("order canceled")
	return canceled, nil
}

func (o *orchestrator) assembleOrder(input CreateOrderInput, now time.Time) domain.Order {
	items := make([]domain.OrderItem, 0, len(input.Items))
	var amount int64
	for _, in := range input.Items {
		item := domain.OrderItem{
			ID:         uuid.NewString(),
			ProductID:  in.ProductID,
			VariantID:  in.VariantID,
			Qty:        in.Qty,
			PriceMinor: in.PriceMinor,
			CreatedAt:  now,
		}
		amount += item.Subtotal()
		items = append(items, item)
	}

	return domain.Order{
		ID:          uuid.NewString(),
		CustomerID:  input.CustomerID,
		Status:      domain.OrderStatusPending,
		Currency:    input.Currency,
		AmountMinor: amount,
		Address:     input.Address,
		Items:       items,
		CartItemIDs: append([]string(nil), input.CartItemIDs...),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// reserveItems выполняет по одной попытке Reserve на позицию. Первый отказ
// терминален: уже полученные резервы снимаются, заказ не сохраняется.
func (o *orchestrator) reserveItems(ctx context.Context, order *domain.Order, now time.Time) ([]domain.StockReservation, error) {
	reserved := make([]domain.StockReservation, 0, len(order.Items))

	for i := range order.Items {
		item := &order.Items[i]
		token, err := o.stock.Reserve(ctx, item.ProductID, item.VariantID, item.Qty)
		if err != nil {
			o.logger.WithError(err).WithFields(log.Fields{
				"order_id":   order.ID,
				"product_id": item.ProductID,
			}).Warn("stock reserve failed, compensating")
			if o.metrics != nil {
				o.metrics.RecordCompensation()
			}
			o.releaseTokens(ctx, order.ID, reserved)
			return nil, fmt.Errorf("reserve %s: %w", item.ProductID, err)
		}

		item.ReservationToken = token
		reserved = append(reserved, domain.StockReservation{
			ID:        uuid.NewString(),
			OrderID:   order.ID,
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Qty:       item.Qty,
			Token:     token,
			Status:    domain.ReservationStatusReserved,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}

	return reserved, nil
}

func (o *orchestrator) persistCheckout(order domain.Order, reserved []domain.StockReservation, payment domain.Payment) error {
	if err := o.orders.Create(order); err != nil {
		return err
	}
	if err := o.reservations.CreateAll(reserved); err != nil {
		return err
	}
	if err := o.payments.Create(payment); err != nil {
		return err
	}
	return nil
}

// prepareWithRetry регистрирует платёж у шлюза с ограниченным повтором
// только для временных ошибок.
func (o *orchestrator) prepareWithRetry(ctx context.Context, orderID string, amountMinor int64) (domain.CheckoutSession, error) {
	var lastErr error
	delay := o.cfg.PrepareRetryDelay

	for attempt := 1; attempt <= o.cfg.PrepareMaxAttempts; attempt++ {
		session, err := o.gateway.Prepare(ctx, orderID, amountMinor)
		if err == nil {
			return session, nil
		}
		lastErr = err

		if !domain.IsTemporary(err) {
			return domain.CheckoutSession{}, err
		}
		if attempt < o.cfg.PrepareMaxAttempts {
			o.logger.WithError(err).WithFields(log.Fields{
				"order_id": orderID,
				"attempt":  attempt,
			}).Warn("gateway prepare temporary failure, retrying")
			select {
			case <-ctx.Done():
				return domain.CheckoutSession{}, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
	}

	return domain.CheckoutSession{}, lastErr
}

// compensateCheckout разматывает уже сохранённое оформление: снимает резервы,
// проводит платёж в failed и отменяет заказ.
func (o *orchestrator) compensateCheckout(ctx context.Context, order domain.Order, payment domain.Payment, rootErr error) {
	if o.metrics != nil {
		o.metrics.RecordCompensation()
	}

	reservations, err := o.reservations.ListByOrder(order.ID)
	if err != nil {
		o.logger.WithError(err).WithField("order_id", order.ID).Warn("list reservations failed")
	}
	o.releaseReservations(ctx, reservations)

	now := o.clock()
	if err := payment.Fail(now); err == nil {
		if err := o.payments.Save(payment); err != nil {
			o.logger.WithError(err).WithField("order_id", order.ID).Error("persist failed payment")
		}
	}
	if err := order.Cancel(now, o.cfg.CancelGrace); err == nil {
		if err := o.orders.Save(order); err != nil {
			o.logger.WithError(err).WithField("order_id", order.ID).Error("persist canceled order")
		}
	}

	o.emitEvent(order.ID, domain.EventTypeOrderCanceled, map[string]interface{}{
		"customer_id": order.CustomerID,
		"reason":      rootErr.Error(),
		"ts":          now.Format(time.RFC3339Nano),
	})
}

func (o *orchestrator) applyCancelEffects(ctx context.Context, orderID string, effects cancelSideEffects) {
	active := make([]domain.StockReservation, 0, len(effects.reservations))
	for _, reservation := range effects.reservations {
		if reservation.Status == domain.ReservationStatusReserved || reservation.Status == domain.ReservationStatusConfirmed {
			active = append(active, reservation)
		}
	}
	o.releaseReservations(ctx, active)

	if err := o.gateway.CancelPayment(ctx, orderID, effects.cancelAmount, effects.orderItemIDs); err != nil {
		// Неуспех шлюза на пути отмены не фатален: доменные статусы уже
		// записаны, расхождение добирается сверкой с провайдером.
		o.logger.WithError(err).WithField("order_id", orderID).Warn("gateway cancel failed")
	}

	if effects.refundPayment {
		o.logger.WithField("order_id", orderID).Info("refund requested for paid order")
	}
}

// releaseReservations снимает резервы по их локальным записям, помечая
// неуспехи как release_failed для фоновой сверки.
func (o *orchestrator) releaseReservations(ctx context.Context, reservations []domain.StockReservation) {
	for _, reservation := range reservations {
		status := domain.ReservationStatusReleased
		if err := o.stock.Release(ctx, reservation.Token); err != nil {
			o.logger.WithError(err).WithFields(log.Fields{
				"order_id": reservation.OrderID,
				"token":    reservation.Token,
			}).Warn("stock release failed")
			status = domain.ReservationStatusReleaseFailed
		}
		if err := o.reservations.UpdateStatus(reservation.ID, status); err != nil {
			o.logger.WithError(err).WithField("reservation_id", reservation.ID).Warn("update reservation status failed")
		}
	}
}

// releaseTokens снимает резервы, у которых ещё нет сохранённых записей.
// Используется до персиста заказа, когда компенсировать можно только по токену.
func (o *orchestrator) releaseTokens(ctx context.Context, orderID string, reserved []domain.StockReservation) {
	failed := make([]domain.StockReservation, 0)
	for _, reservation := range reserved {
		if err := o.stock.Release(ctx, reservation.Token); err != nil {
			o.logger.WithError(err).WithFields(log.Fields{
				"order_id": orderID,
				"token":    reservation.Token,
			}).Warn("compensating release failed")
			reservation.Status = domain.ReservationStatusReleaseFailed
			failed = append(failed, reservation)
		}
	}
	// Неснятые резервы сохраняются для фоновой сверки даже при откате оформления.
	if len(failed) > 0 {
		if err := o.reservations.CreateAll(failed); err != nil {
			o.logger.WithError(err).WithField("order_id", orderID).Error("persist failed releases")
		}
	}
}

func (o *orchestrator) markReservations(orderID string, status domain.ReservationStatus) {
	reservations, err := o.reservations.ListByOrder(orderID)
	if err != nil {
		o.logger.WithError(err).WithField("order_id", orderID).Warn("list reservations failed")
		return
	}
	for _, reservation := range reservations {
		if reservation.Status != domain.ReservationStatusReserved {
			continue
		}
		if err := o.reservations.UpdateStatus(reservation.ID, status); err != nil {
			o.logger.WithError(err).WithField("reservation_id", reservation.ID).Warn("update reservation status failed")
		}
	}
}

func (o *orchestrator) emitEvent(orderID, eventType string, payload map[string]interface{}) {
	if payload == nil {
		payload = make(map[string]interface{})
	}
	payload["order_id"] = orderID

	data, err := json.Marshal(payload)
	if err != nil {
		o.logger.WithError(err).WithFields(log.Fields{
			"order_id": orderID,
			"event":    eventType,
		}).Error("marshal event failed")
		return
	}

	msg := domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   orderID,
		EventType:     eventType,
		Payload:       data,
	}
	if _, err := o.outbox.Enqueue(msg); err != nil {
		o.logger.WithError(err).WithFields(log.Fields{
			"order_id": orderID,
			"event":    eventType,
		}).Error("enqueue event failed")
	} else if o.metrics != nil {
		o.metrics.RecordOutboxEvent()
	}
}

var _ Orchestrator = (*orchestrator)(nil)
