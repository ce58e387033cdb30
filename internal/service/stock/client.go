package stock

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

// Client — HTTP клиент внешнего складского сервиса.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *log.Entry
}

// NewClient создаёт клиент склада. Пустой timeout заменяется на 5 секунд.
func NewClient(baseURL string, timeout time.Duration, logger *log.Entry) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = log.New().WithField("component", "stock-client")
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type reserveRequest struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id,omitempty"`
	Qty       int32  `json:"qty"`
}

type reserveResponse struct {
	Token string `json:"token"`
}

// Reserve удерживает qty единиц товара и возвращает токен резерва.
// Отказ склада транслируется в ErrStockUnavailable, сбои и 5xx — в ErrStockTemporary.
func (c *Client) Reserve(ctx context.Context, productID, variantID string, qty int32) (string, error) {
	body, err := json.Marshal(reserveRequest{ProductID: productID, VariantID: variantID, Qty: qty})
	if err != nil {
		return "", fmt.Errorf("marshal reserve request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/reservations", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build reserve request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrStockTemporary, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		var parsed reserveResponse
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			return "", fmt.Errorf("decode reserve response: %w", err)
		}
		if parsed.Token == "" {
			return "", domain.ErrReservationTokenRequired
		}
		return parsed.Token, nil
	case resp.StatusCode == http.StatusConflict || resp.StatusCode == http.StatusUnprocessableEntity:
		return "", fmt.Errorf("%w: product %s", domain.ErrStockUnavailable, productID)
	case resp.StatusCode >= 500:
		return "", fmt.Errorf("%w: status %d", domain.ErrStockTemporary, resp.StatusCode)
	default:
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w: status %d: %s", domain.ErrStockUnavailable, resp.StatusCode, payload)
	}
}

// Release снимает резерв по токену. Ошибки транслируются в ErrReleaseFailed.
func (c *Client) Release(ctx context.Context, token string) error {
	if token == "" {
		return domain.ErrReservationTokenRequired
	}

	endpoint := c.baseURL + "/api/v1/reservations/" + url.PathEscape(token)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build release request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrReleaseFailed, err)
	}
	defer resp.Body.Close()

	// Повторное снятие уже отпущенного резерва не ошибка.
	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusNotFound {
		return nil
	}
	return fmt.Errorf("%w: status %d", domain.ErrReleaseFailed, resp.StatusCode)
}

var _ domain.StockReservationClient = (*Client)(nil)
