package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
	"github.com/vladislavdragonenkov/orderflow/internal/service/saga"
)

const defaultListLimit = 50

// Handler обслуживает REST API оформления заказов.
type Handler struct {
	orch   saga.Orchestrator
	orders domain.OrderRepository
	logger *log.Entry
}

// NewHandler создаёт HTTP handler поверх оркестратора.
func NewHandler(orch saga.Orchestrator, orders domain.OrderRepository, logger *log.Entry) *Handler {
	if logger == nil {
		logger = log.WithField("component", "http")
	}
	return &Handler{
		orch:   orch,
		orders: orders,
		logger: logger,
	}
}

type addressPayload struct {
	Recipient string `json:"recipient"`
	Phone     string `json:"phone"`
	Line1     string `json:"line1"`
	Line2     string `json:"line2,omitempty"`
	City      string `json:"city"`
	Zip       string `json:"zip"`
}

type orderItemPayload struct {
	ProductID  string `json:"product_id"`
	VariantID  string `json:"variant_id,omitempty"`
	Qty        int32  `json:"qty"`
	PriceMinor int64  `json:"price_minor"`
}

type createOrderRequest struct {
	CustomerID  string             `json:"customer_id"`
	Currency    string             `json:"currency"`
	Address     addressPayload     `json:"address"`
	Items       []orderItemPayload `json:"items"`
	CartItemIDs []string           `json:"cart_item_ids,omitempty"`
}

type confirmPaymentRequest struct {
	PaymentKey string `json:"payment_key"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason,omitempty"`
}

type orderItemResponse struct {
	ID         string `json:"id"`
	ProductID  string `json:"product_id"`
	VariantID  string `json:"variant_id,omitempty"`
	Qty        int32  `json:"qty"`
	PriceMinor int64  `json:"price_minor"`
}

type orderResponse struct {
	ID          string              `json:"id"`
	CustomerID  string              `json:"customer_id"`
	Status      string              `json:"status"`
	Currency    string              `json:"currency"`
	AmountMinor int64               `json:"amount_minor"`
	Address     addressPayload      `json:"address"`
	Items       []orderItemResponse `json:"items"`
	CreatedAt   time.Time           `json:"created_at"`
	ConfirmedAt *time.Time          `json:"confirmed_at,omitempty"`
}

type paymentResponse struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	AmountMinor int64  `json:"amount_minor"`
}

type checkoutSessionResponse struct {
	ClientKey  string `json:"client_key"`
	SuccessURL string `json:"success_url"`
	FailURL    string `json:"fail_url"`
}

type createOrderResponse struct {
	Order    orderResponse           `json:"order"`
	Payment  paymentResponse         `json:"payment"`
	Checkout checkoutSessionResponse `json:"checkout"`
}

func toOrderResponse(order domain.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemResponse{
			ID:         item.ID,
			ProductID:  item.ProductID,
			VariantID:  item.VariantID,
			Qty:        item.Qty,
			PriceMinor: item.PriceMinor,
		})
	}

	resp := orderResponse{
		ID:          order.ID,
		CustomerID:  order.CustomerID,
		Status:      string(order.Status),
		Currency:    order.Currency,
		AmountMinor: order.AmountMinor,
		Address: addressPayload{
			Recipient: order.Address.Recipient,
			Phone:     order.Address.Phone,
			Line1:     order.Address.Line1,
			Line2:     order.Address.Line2,
			City:      order.Address.City,
			Zip:       order.Address.Zip,
		},
		Items:     items,
		CreatedAt: order.CreatedAt,
	}
	if !order.ConfirmedAt.IsZero() {
		confirmedAt := order.ConfirmedAt
		resp.ConfirmedAt = &confirmedAt
	}
	return resp
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// CreateOrder обрабатывает POST /api/v1/orders.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid json"))
		return
	}

	items := make([]saga.CreateOrderItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, saga.CreateOrderItem{
			ProductID:  item.ProductID,
			VariantID:  item.VariantID,
			Qty:        item.Qty,
			PriceMinor: item.PriceMinor,
		})
	}

	result, err := h.orch.CreateOrder(r.Context(), saga.CreateOrderInput{
		CustomerID: req.CustomerID,
		Currency:   req.Currency,
		Address: domain.Address{
			Recipient: req.Address.Recipient,
			Phone:     req.Address.Phone,
			Line1:     req.Address.Line1,
			Line2:     req.Address.Line2,
			City:      req.Address.City,
			Zip:       req.Address.Zip,
		},
		Items:       items,
		CartItemIDs: req.CartItemIDs,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, createOrderResponse{
		Order: toOrderResponse(result.Order),
		Payment: paymentResponse{
			ID:          result.Payment.ID,
			Status:      string(result.Payment.Status),
			AmountMinor: result.Payment.AmountMinor,
		},
		Checkout: checkoutSessionResponse{
			ClientKey:  result.Session.ClientKey,
			SuccessURL: result.Session.SuccessURL,
			FailURL:    result.Session.FailURL,
		},
	})
}

// ConfirmPayment обрабатывает POST /api/v1/orders/{orderID}/payment/confirm.
func (h *Handler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	var req confirmPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid json"))
		return
	}
	if req.PaymentKey == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("payment_key is required"))
		return
	}

	order, err := h.orch.ConfirmPayment(r.Context(), orderID, req.PaymentKey)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// CancelOrder обрабатывает POST /api/v1/orders/{orderID}/cancel.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	var req cancelOrderRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid json"))
			return
		}
	}
	if req.Reason == "" {
		req.Reason = "customer request"
	}

	order, err := h.orch.CancelOrder(r.Context(), orderID, req.Reason)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// GetOrder обрабатывает GET /api/v1/orders/{orderID}.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	order, err := h.orders.Get(orderID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// ListOrders обрабатывает GET /api/v1/orders?customer_id=...
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	customerID := r.URL.Query().Get("customer_id")
	if customerID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("customer_id query parameter is required"))
		return
	}

	orders, err := h.orders.ListByCustomer(customerID, defaultListLimit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for _, order := range orders {
		resp = append(resp, toOrderResponse(order))
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": resp})
}
