package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics содержит метрики жизненного цикла заказа и его компенсаций.
type CheckoutMetrics struct {
	// Счётчики операций
	ordersCreated   prometheus.Counter
	ordersConfirmed prometheus.Counter
	ordersCanceled  prometheus.Counter
	checkoutFailed  prometheus.Counter
	compensations   prometheus.Counter

	// Гистограммы времени выполнения
	createDuration prometheus.Histogram
	stepDuration   *prometheus.HistogramVec

	// Счётчик событий outbox
	outboxEvents prometheus.Counter

	// Gauge для запросов в обработке
	activeCheckouts prometheus.Gauge
}

// NewCheckoutMetrics создаёт новый экземпляр метрик оформления заказа.
func NewCheckoutMetrics() *CheckoutMetrics {
	return newCheckoutMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newCheckoutMetricsWithRegisterer(registerer prometheus.Registerer) *CheckoutMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &CheckoutMetrics{
		ordersCreated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orderflow_orders_created_total",
			Help: "Total number of orders created",
		}),
		ordersConfirmed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orderflow_orders_confirmed_total",
			Help: "Total number of orders confirmed after payment",
		}),
		ordersCanceled: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orderflow_orders_canceled_total",
			Help: "Total number of orders canceled",
		}),
		checkoutFailed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orderflow_checkout_failed_total",
			Help: "Total number of failed order placement attempts",
		}),
		compensations: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orderflow_compensations_total",
			Help: "Total number of compensation flows executed",
		}),
		createDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "orderflow_order_create_duration_seconds",
			Help:    "Duration of order placement in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		stepDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "orderflow_checkout_step_duration_seconds",
			Help:    "Duration of individual checkout steps in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"step"}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orderflow_outbox_events_total",
			Help: "Total number of events enqueued to the transactional outbox",
		}),
		activeCheckouts: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "orderflow_active_checkouts",
			Help: "Number of order placements currently in flight",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}

// RecordOrderCreated увеличивает счётчик созданных заказов.
func (m *CheckoutMetrics) RecordOrderCreated() {
	m.ordersCreated.Inc()
}

// RecordOrderConfirmed увеличивает счётчик подтверждённых заказов.
func (m *CheckoutMetrics) RecordOrderConfirmed() {
	m.ordersConfirmed.Inc()
}

// RecordOrderCanceled увеличивает счётчик отменённых заказов.
func (m *CheckoutMetrics) RecordOrderCanceled() {
	m.ordersCanceled.Inc()
}

// RecordCheckoutFailed увеличивает счётчик неудачных оформлений.
func (m *CheckoutMetrics) RecordCheckoutFailed() {
	m.checkoutFailed.Inc()
}

// RecordCompensation увеличивает счётчик выполненных компенсаций.
func (m *CheckoutMetrics) RecordCompensation() {
	m.compensations.Inc()
}

// RecordCreateDuration записывает время оформления заказа.
func (m *CheckoutMetrics) RecordCreateDuration(duration time.Duration) {
	m.createDuration.Observe(duration.Seconds())
}

// RecordStepDuration записывает время выполнения шага оформления.
func (m *CheckoutMetrics) RecordStepDuration(step string, duration time.Duration) {
	m.stepDuration.WithLabelValues(step).Observe(duration.Seconds())
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *CheckoutMetrics) RecordOutboxEvent() {
	m.outboxEvents.Inc()
}

// RecordCheckoutStarted увеличивает количество оформлений в обработке.
func (m *CheckoutMetrics) RecordCheckoutStarted() {
	m.activeCheckouts.Inc()
}

// RecordCheckoutFinished уменьшает количество оформлений в обработке.
func (m *CheckoutMetrics) RecordCheckoutFinished() {
	m.activeCheckouts.Dec()
}
