package sweep

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

var (
	reconcileRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orderflow_release_reconcile_runs_total",
		Help: "Total number of release reconcile runs grouped by result.",
	}, []string{"result"})
	reconcileRetriedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orderflow_release_reconcile_retried_total",
		Help: "Total number of stock releases retried by the reconcile sweep.",
	})
	reconcilePendingGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "orderflow_release_reconcile_pending",
		Help: "Number of reservations still waiting for a successful release.",
	})
)

// ReconcileSweep повторяет неуспешные снятия складских резервов.
// Компенсация на пути отмены best-effort, поэтому неснятые резервы копятся
// в статусе release_failed и добираются здесь.
type ReconcileSweep struct {
	reservations domain.ReservationRepository
	stock        domain.StockReservationClient
	logger       *log.Entry
	interval     time.Duration
	batchSize    int
}

// NewReconcileSweep создаёт воркер повторного снятия резервов.
func NewReconcileSweep(reservations domain.ReservationRepository, stock domain.StockReservationClient, options ...Option) *ReconcileSweep {
	opts := buildOptions("release-reconcile", options)
	return &ReconcileSweep{
		reservations: reservations,
		stock:        stock,
		logger:       opts.Logger,
		interval:     opts.Interval,
		batchSize:    opts.BatchSize,
	}
}

// Run запускает периодическую сверку до отмены ctx.
func (w *ReconcileSweep) Run(ctx context.Context) {
	if w.reservations == nil || w.stock == nil {
		w.logger.Warn("release reconcile is disabled: dependencies are nil")
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

func (w *ReconcileSweep) sweep(ctx context.Context) {
	released, err := w.SweepOnce(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		reconcileRunsTotal.WithLabelValues("error").Inc()
		w.logger.WithError(err).Warn("release reconcile run failed")
		return
	}

	reconcileRunsTotal.WithLabelValues("ok").Inc()
	if released > 0 {
		w.logger.WithField("released", released).Info("release reconcile completed")
	}
}

// SweepOnce выполняет один проход по резервам в release_failed.
// Возвращает число успешно снятых резервов.
func (w *ReconcileSweep) SweepOnce(ctx context.Context) (int, error) {
	failed, err := w.reservations.ListReleaseFailed(w.batchSize)
	if err != nil {
		return 0, err
	}
	reconcilePendingGauge.Set(float64(len(failed)))

	released := 0
	for _, reservation := range failed {
		if err := ctx.Err(); err != nil {
			return released, err
		}

		if err := w.stock.Release(ctx, reservation.Token); err != nil {
			w.logger.WithError(err).WithFields(log.Fields{
				"order_id": reservation.OrderID,
				"token":    reservation.Token,
			}).Warn("release retry failed")
			continue
		}
		if err := w.reservations.UpdateStatus(reservation.ID, domain.ReservationStatusReleased); err != nil {
			w.logger.WithError(err).WithField("reservation_id", reservation.ID).Warn("update reservation status failed")
			continue
		}
		released++
		reconcileRetriedTotal.Inc()
	}

	if released > 0 {
		reconcilePendingGauge.Sub(float64(released))
	}
	return released, nil
}
