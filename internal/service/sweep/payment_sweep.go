package sweep

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
	"github.com/vladislavdragonenkov/orderflow/internal/service/saga"
)

const defaultPaymentTTL = 30 * time.Minute

// CancelReasonPaymentExpired пишется в событие отмены при срабатывании TTL.
const CancelReasonPaymentExpired = "payment ttl expired"

var (
	paymentSweepRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orderflow_payment_sweep_runs_total",
		Help: "Total number of payment TTL sweep runs grouped by result.",
	}, []string{"result"})
	paymentSweepCanceledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orderflow_payment_sweep_canceled_total",
		Help: "Total number of orders canceled because their payment expired.",
	})
	paymentSweepLastCanceled = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "orderflow_payment_sweep_last_canceled",
		Help: "Number of orders canceled during the last sweep run.",
	})
)

// PaymentSweep периодически отменяет заказы, чей платёж завис в ready дольше TTL.
// Отмена идёт через оркестратор, поэтому попадает под ту же блокировку заказа,
// что и пользовательские подтверждение и отмена.
type PaymentSweep struct {
	payments  domain.PaymentRepository
	orch      saga.Orchestrator
	ttl       time.Duration
	logger    *log.Entry
	interval  time.Duration
	batchSize int
	clock     func() time.Time
}

// NewPaymentSweep создаёт воркер отмены просроченных платежей.
func NewPaymentSweep(payments domain.PaymentRepository, orch saga.Orchestrator, ttl time.Duration, options ...Option) *PaymentSweep {
	opts := buildOptions("payment-sweep", options)
	if ttl <= 0 {
		ttl = defaultPaymentTTL
	}
	return &PaymentSweep{
		payments:  payments,
		orch:      orch,
		ttl:       ttl,
		logger:    opts.Logger,
		interval:  opts.Interval,
		batchSize: opts.BatchSize,
		clock:     opts.Clock,
	}
}

// Run запускает периодическую отмену до отмены ctx.
func (w *PaymentSweep) Run(ctx context.Context) {
	if w.payments == nil || w.orch == nil {
		w.logger.Warn("payment sweep is disabled: dependencies are nil")
		return
	}

	w.sweep(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *PaymentSweep) sweep(ctx context.Context) {
	canceled, err := w.SweepOnce(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		paymentSweepRunsTotal.WithLabelValues("error").Inc()
		w.logger.WithError(err).Warn("payment sweep run failed")
		return
	}

	paymentSweepRunsTotal.WithLabelValues("ok").Inc()
	paymentSweepLastCanceled.Set(float64(canceled))
	if canceled > 0 {
		w.logger.WithField("canceled", canceled).Info("payment sweep completed")
	}
}

// SweepOnce выполняет один проход: отменяет заказы с просроченным ready-платежом.
// Возвращает число успешно отменённых заказов.
func (w *PaymentSweep) SweepOnce(ctx context.Context) (int, error) {
	before := w.clock().Add(-w.ttl)

	expired, err := w.payments.ListExpiredReady(before, w.batchSize)
	if err != nil {
		return 0, err
	}

	canceled := 0
	for _, payment := range expired {
		if err := ctx.Err(); err != nil {
			return canceled, err
		}

		if _, err := w.orch.CancelOrder(ctx, payment.OrderID, CancelReasonPaymentExpired); err != nil {
			// Заказ могли подтвердить или отменить между выборкой и захватом
			// блокировки: недопустимый переход здесь ожидаем и не ошибка.
			if errors.Is(err, domain.ErrInvalidStateTransition) || errors.Is(err, domain.ErrPaymentStateConflict) {
				continue
			}
			w.logger.WithError(err).WithField("order_id", payment.OrderID).Warn("sweep cancel failed")
			continue
		}
		canceled++
		paymentSweepCanceledTotal.Inc()
	}

	return canceled, nil
}
