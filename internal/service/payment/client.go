package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

// Client — HTTP клиент платёжного шлюза.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *log.Entry
}

// NewClient создаёт клиент шлюза. Пустой timeout заменяется на 10 секунд.
func NewClient(baseURL, apiKey string, timeout time.Duration, logger *log.Entry) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = log.New().WithField("component", "payment-client")
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type prepareRequest struct {
	OrderID     string `json:"order_id"`
	AmountMinor int64  `json:"amount_minor"`
}

type prepareResponse struct {
	ClientKey  string `json:"client_key"`
	SuccessURL string `json:"success_url"`
	FailURL    string `json:"fail_url"`
}

type cancelRequest struct {
	OrderID           string   `json:"order_id"`
	CancelAmountMinor int64    `json:"cancel_amount_minor"`
	OrderItemIDs      []string `json:"order_item_ids,omitempty"`
}

// Prepare регистрирует платёж у провайдера и возвращает платёжную сессию.
// Сбои сети и 5xx — ErrGatewayTemporary, остальные отказы — ErrGatewayUnavailable.
func (c *Client) Prepare(ctx context.Context, orderID string, amountMinor int64) (domain.CheckoutSession, error) {
	var parsed prepareResponse
	if err := c.post(ctx, "/api/v1/payments/prepare", prepareRequest{OrderID: orderID, AmountMinor: amountMinor}, &parsed); err != nil {
		return domain.CheckoutSession{}, err
	}
	return domain.CheckoutSession{
		ClientKey:  parsed.ClientKey,
		SuccessURL: parsed.SuccessURL,
		FailURL:    parsed.FailURL,
	}, nil
}

// CancelPayment отменяет или возвращает платёж у провайдера.
func (c *Client) CancelPayment(ctx context.Context, orderID string, cancelAmountMinor int64, orderItemIDs []string) error {
	return c.post(ctx, "/api/v1/payments/cancel", cancelRequest{
		OrderID:           orderID,
		CancelAmountMinor: cancelAmountMinor,
		OrderItemIDs:      orderItemIDs,
	}, nil)
}

func (c *Client) post(ctx context.Context, path string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal gateway request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrGatewayTemporary, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode gateway response: %w", err)
		}
		return nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: status %d", domain.ErrGatewayTemporary, resp.StatusCode)
	default:
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", domain.ErrGatewayUnavailable, resp.StatusCode, detail)
	}
}

var _ domain.PaymentGateway = (*Client)(nil)
