package saga

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

// CircuitState — состояние circuit breaker.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

// CircuitBreaker — простая реализация circuit breaker паттерна для внешних
// вызовов платёжного шлюза и склада.
type CircuitBreaker struct {
	maxFailures  int
	resetTimeout time.Duration

	mu          sync.Mutex
	failures    int
	lastFailure time.Time
	state       CircuitState
	logger      *log.Entry
}

// NewCircuitBreaker создаёт новый circuit breaker.
func NewCircuitBreaker(maxFailures int, resetTimeout time.Duration, logger *log.Entry) *CircuitBreaker {
	if logger == nil {
		logger = log.New().WithField("component", "circuit-breaker")
	}
	return &CircuitBreaker{
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		state:        CircuitClosed,
		logger:       logger,
	}
}

// Execute выполняет операцию через circuit breaker. В открытом состоянии
// вызов блокируется с временной ошибкой шлюза.
func (cb *CircuitBreaker) Execute(operation string, fn func() error) error {
	cb.mu.Lock()
	if cb.state == CircuitOpen {
		if time.Since(cb.lastFailure) > cb.resetTimeout {
			cb.state = CircuitHalfOpen
			cb.logger.WithField("operation", operation).Info("circuit breaker half-open")
		} else {
			cb.mu.Unlock()
			return fmt.Errorf("%w: circuit breaker is open", domain.ErrGatewayTemporary)
		}
	}
	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.failures++
		cb.lastFailure = time.Now()

		if cb.state == CircuitHalfOpen || cb.failures >= cb.maxFailures {
			cb.state = CircuitOpen
			cb.logger.WithFields(log.Fields{
				"operation": operation,
				"failures":  cb.failures,
			}).Warn("circuit breaker opened")
		}
		return err
	}

	if cb.state == CircuitHalfOpen {
		cb.state = CircuitClosed
		cb.logger.WithField("operation", operation).Info("circuit breaker closed")
	}
	cb.failures = 0
	return nil
}

// State возвращает текущее состояние breaker.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// GatewayWithBreaker оборачивает платёжный шлюз circuit breaker защитой.
type GatewayWithBreaker struct {
	gateway domain.PaymentGateway
	breaker *CircuitBreaker
}

// NewGatewayWithBreaker создаёт защищённый платёжный шлюз.
func NewGatewayWithBreaker(gateway domain.PaymentGateway, breaker *CircuitBreaker) *GatewayWithBreaker {
	return &GatewayWithBreaker{gateway: gateway, breaker: breaker}
}

// Prepare регистрирует платёж через circuit breaker.
func (g *GatewayWithBreaker) Prepare(ctx context.Context, orderID string, amountMinor int64) (domain.CheckoutSession, error) {
	var session domain.CheckoutSession
	err := g.breaker.Execute("prepare", func() error {
		var innerErr error
		session, innerErr = g.gateway.Prepare(ctx, orderID, amountMinor)
		return innerErr
	})
	return session, err
}

// CancelPayment отменяет платёж через circuit breaker.
func (g *GatewayWithBreaker) CancelPayment(ctx context.Context, orderID string, cancelAmountMinor int64, orderItemIDs []string) error {
	return g.breaker.Execute("cancel", func() error {
		return g.gateway.CancelPayment(ctx, orderID, cancelAmountMinor, orderItemIDs)
	})
}

var _ domain.PaymentGateway = (*GatewayWithBreaker)(nil)
