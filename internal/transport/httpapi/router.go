package httpapi

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

// NewRouter собирает chi-роутер с маршрутами API заказов.
// POST /api/v1/orders защищён idempotency-middleware.
func NewRouter(h *Handler, idempotency domain.IdempotencyRepository, logger *log.Entry) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/orders", func(r chi.Router) {
			r.With(IdempotencyMiddleware(idempotency, logger)).Post("/", h.CreateOrder)
			r.Get("/", h.ListOrders)
			r.Get("/{orderID}", h.GetOrder)
			r.Post("/{orderID}/payment/confirm", h.ConfirmPayment)
			r.Post("/{orderID}/cancel", h.CancelOrder)
		})
	})

	return r
}
