package stock_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
	"github.com/vladislavdragonenkov/orderflow/internal/service/stock"
)

func TestClient_Reserve(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/reservations" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}

		var req map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request failed: %v", err)
		}
		if req["product_id"] != "product-1" {
			t.Errorf("unexpected product_id %v", req["product_id"])
		}
		if req["qty"] != float64(2) {
			t.Errorf("unexpected qty %v", req["qty"])
		}

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{"token": "token-abc"})
	}))
	defer server.Close()

	client := stock.NewClient(server.URL, time.Second, nil)

	token, err := client.Reserve(context.Background(), "product-1", "variant-1", 2)
	if err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	if token != "token-abc" {
		t.Fatalf("expected token-abc, got %s", token)
	}
}

func TestClient_ReserveUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer server.Close()

	client := stock.NewClient(server.URL, time.Second, nil)

	if _, err := client.Reserve(context.Background(), "product-1", "", 1); !errors.Is(err, domain.ErrStockUnavailable) {
		t.Fatalf("expected ErrStockUnavailable, got %v", err)
	}
}

func TestClient_ReserveTemporary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := stock.NewClient(server.URL, time.Second, nil)

	if _, err := client.Reserve(context.Background(), "product-1", "", 1); !errors.Is(err, domain.ErrStockTemporary) {
		t.Fatalf("expected ErrStockTemporary, got %v", err)
	}
}

func TestClient_Release(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if r.Method != http.MethodDelete {
			t.Errorf("unexpected method %s", r.Method)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := stock.NewClient(server.URL, time.Second, nil)

	if err := client.Release(context.Background(), "token-abc"); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if gotPath != "/api/v1/reservations/token-abc" {
		t.Fatalf("unexpected path %s", gotPath)
	}
}

func TestClient_ReleaseIdempotent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := stock.NewClient(server.URL, time.Second, nil)

	// Неизвестный токен означает уже снятый резерв.
	if err := client.Release(context.Background(), "token-gone"); err != nil {
		t.Fatalf("release of unknown token must succeed: %v", err)
	}
}

func TestClient_ReleaseFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := stock.NewClient(server.URL, time.Second, nil)

	if err := client.Release(context.Background(), "token-abc"); !errors.Is(err, domain.ErrReleaseFailed) {
		t.Fatalf("expected ErrReleaseFailed, got %v", err)
	}
}
