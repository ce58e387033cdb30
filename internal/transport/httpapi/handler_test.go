package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
	"github.com/vladislavdragonenkov/orderflow/internal/service/payment"
	"github.com/vladislavdragonenkov/orderflow/internal/service/saga"
	"github.com/vladislavdragonenkov/orderflow/internal/service/stock"
	"github.com/vladislavdragonenkov/orderflow/internal/storage/memory"
)

type apiEnv struct {
	server  *httptest.Server
	stock   *stock.MockClient
	gateway *payment.MockGateway
	orders  domain.OrderRepository
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()

	logger := log.New()
	logger.SetLevel(log.PanicLevel)
	entry := logger.WithField("component", "http-test")

	orders := memory.NewOrderRepository()
	payments := memory.NewPaymentRepository()
	reservations := memory.NewReservationRepository()
	outbox := memory.NewOutboxRepository()
	idempotency := memory.NewIdempotencyRepository()
	stockMock := stock.NewMockClient()
	gatewayMock := payment.NewMockGateway()

	orch := saga.NewOrchestratorWithoutMetrics(
		orders, payments, reservations, outbox,
		stockMock, gatewayMock,
		memory.NewOrderLocker(),
		saga.DefaultConfig(),
		entry,
	)

	handler := NewHandler(orch, orders, entry)
	server := httptest.NewServer(NewRouter(handler, idempotency, entry))
	t.Cleanup(server.Close)

	return &apiEnv{
		server:  server,
		stock:   stockMock,
		gateway: gatewayMock,
		orders:  orders,
	}
}

func createOrderBody() []byte {
	return []byte(`{
		"customer_id": "customer-1",
		"currency": "KRW",
		"address": {
			"recipient": "Hong Gildong",
			"phone": "+82-10-0000-0000",
			"line1": "1 Teheran-ro",
			"city": "Seoul",
			"zip": "06234"
		},
		"items": [
			{"product_id": "prod-1", "variant_id": "var-1", "qty": 2, "price_minor": 1000},
			{"product_id": "prod-2", "qty": 1, "price_minor": 500}
		],
		"cart_item_ids": ["cart-1", "cart-2"]
	}`)
}

func (e *apiEnv) doCreate(t *testing.T, idempotencyKey string, body []byte) *http.Response {
	t.Helper()

	req, err := http.NewRequest(http.MethodPost, e.server.URL+"/api/v1/orders", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		req.Header.Set(HeaderIdempotencyKey, idempotencyKey)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("create order request failed: %v", err)
	}
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestAPI_CreateOrder_Success(t *testing.T) {
	t.Parallel()

	env := newAPIEnv(t)
	resp := env.doCreate(t, "key-1", createOrderBody())

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected status: got=%d want=%d", resp.StatusCode, http.StatusCreated)
	}

	var body createOrderResponse
	decodeJSON(t, resp, &body)

	if body.Order.ID == "" {
		t.Fatal("expected order id in response")
	}
	if body.Order.Status != string(domain.OrderStatusPending) {
		t.Fatalf("unexpected order status: %s", body.Order.Status)
	}
	if body.Order.AmountMinor != 2500 {
		t.Fatalf("unexpected amount: got=%d want=2500", body.Order.AmountMinor)
	}
	if body.Payment.Status != string(domain.PaymentStatusReady) {
		t.Fatalf("unexpected payment status: %s", body.Payment.Status)
	}
	if body.Checkout.ClientKey != "client-key-test" {
		t.Fatalf("unexpected client key: %s", body.Checkout.ClientKey)
	}
}

func TestAPI_CreateOrder_RequiresIdempotencyKey(t *testing.T) {
	t.Parallel()

	env := newAPIEnv(t)
	resp := env.doCreate(t, "", createOrderBody())
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unexpected status: got=%d want=%d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestAPI_CreateOrder_IdempotentReplay(t *testing.T) {
	t.Parallel()

	env := newAPIEnv(t)

	first := env.doCreate(t, "key-replay", createOrderBody())
	var firstBody createOrderResponse
	decodeJSON(t, first, &firstBody)

	second := env.doCreate(t, "key-replay", createOrderBody())
	if second.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected replay status: got=%d want=%d", second.StatusCode, http.StatusCreated)
	}
	if second.Header.Get(HeaderIdempotentReplay) != "true" {
		t.Fatal("expected replay header on second response")
	}

	var secondBody createOrderResponse
	decodeJSON(t, second, &secondBody)

	if secondBody.Order.ID != firstBody.Order.ID {
		t.Fatalf("replay returned different order: got=%s want=%s", secondBody.Order.ID, firstBody.Order.ID)
	}
	if env.stock.ReserveCalls != 2 {
		t.Fatalf("expected no extra reservations on replay: calls=%d", env.stock.ReserveCalls)
	}
}

func TestAPI_CreateOrder_IdempotencyHashMismatch(t *testing.T) {
	t.Parallel()

	env := newAPIEnv(t)

	first := env.doCreate(t, "key-mismatch", createOrderBody())
	first.Body.Close()

	other := bytes.Replace(createOrderBody(), []byte(`"customer_id": "customer-1"`), []byte(`"customer_id": "customer-2"`), 1)
	second := env.doCreate(t, "key-mismatch", other)
	defer second.Body.Close()

	if second.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("unexpected status: got=%d want=%d", second.StatusCode, http.StatusUnprocessableEntity)
	}
}

func TestAPI_CreateOrder_ValidationError(t *testing.T) {
	t.Parallel()

	env := newAPIEnv(t)
	body := []byte(`{"customer_id": "", "currency": "KRW", "items": []}`)

	resp := env.doCreate(t, "key-invalid", body)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unexpected status: got=%d want=%d", resp.StatusCode, http.StatusBadRequest)
	}
	if env.stock.ReserveCalls != 0 {
		t.Fatalf("stock must not be called for invalid order: calls=%d", env.stock.ReserveCalls)
	}
}

func TestAPI_CreateOrder_StockUnavailable(t *testing.T) {
	t.Parallel()

	env := newAPIEnv(t)
	env.stock.ReserveErr = domain.ErrStockUnavailable

	resp := env.doCreate(t, "key-stock", createOrderBody())
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("unexpected status: got=%d want=%d", resp.StatusCode, http.StatusConflict)
	}
}

func TestAPI_ConfirmPayment(t *testing.T) {
	t.Parallel()

	env := newAPIEnv(t)
	created := env.doCreate(t, "key-confirm", createOrderBody())
	var body createOrderResponse
	decodeJSON(t, created, &body)

	url := fmt.Sprintf("%s/api/v1/orders/%s/payment/confirm", env.server.URL, body.Order.ID)
	resp, err := http.Post(url, "application/json", bytes.NewReader([]byte(`{"payment_key":"pg-key-1"}`)))
	if err != nil {
		t.Fatalf("confirm request failed: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: got=%d want=%d", resp.StatusCode, http.StatusOK)
	}

	var confirmed orderResponse
	decodeJSON(t, resp, &confirmed)
	if confirmed.Status != string(domain.OrderStatusConfirmed) {
		t.Fatalf("unexpected status after confirm: %s", confirmed.Status)
	}
	if confirmed.ConfirmedAt == nil {
		t.Fatal("expected confirmed_at in response")
	}
}

func TestAPI_ConfirmPayment_UnknownOrder(t *testing.T) {
	t.Parallel()

	env := newAPIEnv(t)
	url := env.server.URL + "/api/v1/orders/missing/payment/confirm"
	resp, err := http.Post(url, "application/json", bytes.NewReader([]byte(`{"payment_key":"pg-key-1"}`)))
	if err != nil {
		t.Fatalf("confirm request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unexpected status: got=%d want=%d", resp.StatusCode, http.StatusNotFound)
	}
}

func TestAPI_ConfirmPayment_MissingKey(t *testing.T) {
	t.Parallel()

	env := newAPIEnv(t)
	created := env.doCreate(t, "key-nokey", createOrderBody())
	var body createOrderResponse
	decodeJSON(t, created, &body)

	url := fmt.Sprintf("%s/api/v1/orders/%s/payment/confirm", env.server.URL, body.Order.ID)
	resp, err := http.Post(url, "application/json", bytes.NewReader([]byte(`{}`)))
	if err != nil {
		t.Fatalf("confirm request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unexpected status: got=%d want=%d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestAPI_CancelOrder(t *testing.T) {
	t.Parallel()

	env := newAPIEnv(t)
	created := env.doCreate(t, "key-cancel", createOrderBody())
	var body createOrderResponse
	decodeJSON(t, created, &body)

	url := fmt.Sprintf("%s/api/v1/orders/%s/cancel", env.server.URL, body.Order.ID)
	resp, err := http.Post(url, "application/json", bytes.NewReader([]byte(`{"reason":"changed my mind"}`)))
	if err != nil {
		t.Fatalf("cancel request failed: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: got=%d want=%d", resp.StatusCode, http.StatusOK)
	}

	var canceled orderResponse
	decodeJSON(t, resp, &canceled)
	if canceled.Status != string(domain.OrderStatusCanceled) {
		t.Fatalf("unexpected status after cancel: %s", canceled.Status)
	}
}

func TestAPI_CancelOrder_AlreadyCanceled(t *testing.T) {
	t.Parallel()

	env := newAPIEnv(t)
	created := env.doCreate(t, "key-cancel-twice", createOrderBody())
	var body createOrderResponse
	decodeJSON(t, created, &body)

	url := fmt.Sprintf("%s/api/v1/orders/%s/cancel", env.server.URL, body.Order.ID)
	first, err := http.Post(url, "application/json", nil)
	if err != nil {
		t.Fatalf("cancel request failed: %v", err)
	}
	first.Body.Close()

	// Повторная отмена идемпотентна: возвращается текущее состояние.
	second, err := http.Post(url, "application/json", nil)
	if err != nil {
		t.Fatalf("second cancel request failed: %v", err)
	}

	if second.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: got=%d want=%d", second.StatusCode, http.StatusOK)
	}

	var canceled orderResponse
	decodeJSON(t, second, &canceled)
	if canceled.Status != string(domain.OrderStatusCanceled) {
		t.Fatalf("unexpected status after repeated cancel: %s", canceled.Status)
	}
}

func TestAPI_GetOrder(t *testing.T) {
	t.Parallel()

	env := newAPIEnv(t)
	created := env.doCreate(t, "key-get", createOrderBody())
	var body createOrderResponse
	decodeJSON(t, created, &body)

	resp, err := http.Get(env.server.URL + "/api/v1/orders/" + body.Order.ID)
	if err != nil {
		t.Fatalf("get request failed: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: got=%d want=%d", resp.StatusCode, http.StatusOK)
	}

	var fetched orderResponse
	decodeJSON(t, resp, &fetched)
	if fetched.ID != body.Order.ID {
		t.Fatalf("unexpected order id: got=%s want=%s", fetched.ID, body.Order.ID)
	}
	if len(fetched.Items) != 2 {
		t.Fatalf("unexpected items count: got=%d want=2", len(fetched.Items))
	}
}

func TestAPI_GetOrder_NotFound(t *testing.T) {
	t.Parallel()

	env := newAPIEnv(t)
	resp, err := http.Get(env.server.URL + "/api/v1/orders/missing")
	if err != nil {
		t.Fatalf("get request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unexpected status: got=%d want=%d", resp.StatusCode, http.StatusNotFound)
	}
}

func TestAPI_ListOrders(t *testing.T) {
	t.Parallel()

	env := newAPIEnv(t)
	env.doCreate(t, "key-list-1", createOrderBody()).Body.Close()

	resp, err := http.Get(env.server.URL + "/api/v1/orders?customer_id=customer-1")
	if err != nil {
		t.Fatalf("list request failed: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: got=%d want=%d", resp.StatusCode, http.StatusOK)
	}

	var listed struct {
		Orders []orderResponse `json:"orders"`
	}
	decodeJSON(t, resp, &listed)
	if len(listed.Orders) != 1 {
		t.Fatalf("unexpected orders count: got=%d want=1", len(listed.Orders))
	}

	missing, err := http.Get(env.server.URL + "/api/v1/orders")
	if err != nil {
		t.Fatalf("list request failed: %v", err)
	}
	defer missing.Body.Close()
	if missing.StatusCode != http.StatusBadRequest {
		t.Fatalf("unexpected status without customer_id: got=%d want=%d", missing.StatusCode, http.StatusBadRequest)
	}
}
