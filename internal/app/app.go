package app

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/orderflow/internal/health"
	"github.com/vladislavdragonenkov/orderflow/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/orderflow/internal/service/idempotency"
	"github.com/vladislavdragonenkov/orderflow/internal/service/outbox"
	"github.com/vladislavdragonenkov/orderflow/internal/service/saga"
	"github.com/vladislavdragonenkov/orderflow/internal/service/sweep"
	"github.com/vladislavdragonenkov/orderflow/internal/transport/httpapi"
	"github.com/vladislavdragonenkov/orderflow/internal/version"
)

// Run собирает зависимости, поднимает API и ops-серверы, запускает фоновые
// воркеры и блокируется до отмены контекста или ошибки сервера.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	deps, err := NewDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	kafkaProducer, err := initKafkaProducer(cfg.KafkaBrokerList(), logger)
	if err != nil {
		// Приложение остаётся работоспособным: события уйдут после рестарта
		// с доступным брокером, outbox их не теряет.
		logger.Warn("events will stay in outbox until kafka is available")
	}
	defer closeKafka(kafkaProducer, logger)

	var publisher domain.OutboxPublisher
	var dlqPublisher domain.OutboxPublisher
	if kafkaProducer != nil {
		publisher = kafka.NewOutboxPublisher(kafkaProducer, cfg.OutboxTopic)
		dlqPublisher = kafka.NewOutboxPublisher(kafkaProducer, kafka.TopicDeadLetterQueue)
	} else {
		publisher = &logPublisher{logger: logger.WithField("component", "outbox-log-publisher")}
	}

	sagaCfg := saga.DefaultConfig()
	sagaCfg.CancelGrace = cfg.CancelGrace
	orchestrator := saga.NewOrchestrator(
		deps.Orders,
		deps.Payments,
		deps.Reservations,
		deps.Outbox,
		deps.Stock,
		deps.Gateway,
		deps.Locker,
		sagaCfg,
		logger,
	)

	relayOptions := []outbox.Option{
		outbox.WithLogger(logger.WithField("component", "outbox-relay")),
		outbox.WithPollInterval(cfg.OutboxPollInterval),
		outbox.WithBatchSize(cfg.OutboxBatchSize),
		outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
		outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
	}
	if dlqPublisher != nil {
		relayOptions = append(relayOptions, outbox.WithDLQPublisher(dlqPublisher))
	}
	relay := outbox.NewRelay(deps.Outbox, publisher, relayOptions...)

	paymentSweep := sweep.NewPaymentSweep(deps.Payments, orchestrator, cfg.PaymentTTL,
		sweep.WithLogger(logger.WithField("component", "payment-sweep")),
		sweep.WithInterval(cfg.PaymentSweepInterval),
	)
	reconcileSweep := sweep.NewReconcileSweep(deps.Reservations, deps.Stock,
		sweep.WithLogger(logger.WithField("component", "reconcile-sweep")),
		sweep.WithInterval(cfg.ReconcileInterval),
		sweep.WithBatchSize(cfg.ReconcileBatchSize),
	)
	cleanupWorker := idempotency.NewCleanupWorker(deps.Idempotency,
		idempotency.WithLogger(logger.WithField("component", "idempotency-cleanup")),
		idempotency.WithInterval(cfg.IdempotencyCleanupInterval),
		idempotency.WithBatchSize(cfg.IdempotencyCleanupBatchSize),
	)

	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()

	var wg sync.WaitGroup
	for _, worker := range []func(context.Context){relay.Run, paymentSweep.Run, reconcileSweep.Run, cleanupWorker.Run} {
		wg.Add(1)
		go func(run func(context.Context)) {
			defer wg.Done()
			run(workerCtx)
		}(worker)
	}

	healthHandler := newHealthHandler(ctx, deps)
	opsSrv := startOpsServer(ctx, cfg.OpsAddr, logger, healthHandler)

	handler := httpapi.NewHandler(orchestrator, deps.Orders, logger.WithField("component", "http"))
	router := httpapi.NewRouter(handler, deps.Idempotency, logger.WithField("component", "http"))
	apiSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP API слушает %s", cfg.HTTPAddr)
		errCh <- apiSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем сервис")
		shutdownHTTP(apiSrv, logger)
		shutdownHTTP(opsSrv, logger)
		stopWorkers()
		wg.Wait()
		return ctx.Err()
	case err := <-errCh:
		shutdownHTTP(opsSrv, logger)
		stopWorkers()
		wg.Wait()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// newHealthHandler регистрирует проверки внешних зависимостей.
func newHealthHandler(ctx context.Context, deps *Dependencies) *healthcheck.Handler {
	v, _, _ := version.Info()
	handler := healthcheck.NewHandler(v)

	if store := deps.Store(); store != nil {
		handler.RegisterChecker("postgres", healthcheck.NewSimpleChecker("postgres", func() error {
			pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			return store.Ping(pingCtx)
		}))
	}
	if client := deps.Redis(); client != nil {
		handler.RegisterChecker("redis", healthcheck.NewSimpleChecker("redis", func() error {
			pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			return client.Ping(pingCtx).Err()
		}))
	}

	return handler
}

// startOpsServer поднимает служебный HTTP-сервер с метриками и health-пробами.
func startOpsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/readyz, %s/livez", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("ops server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}

// logPublisher пишет события в лог вместо брокера, когда Kafka не настроен.
type logPublisher struct {
	logger *log.Entry
}

func (p *logPublisher) Publish(event domain.OutboxMessage) error {
	p.logger.WithFields(log.Fields{
		"event_type":   event.EventType,
		"aggregate_id": event.AggregateID,
	}).Info("outbox event (kafka disabled)")
	return nil
}
