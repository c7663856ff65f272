// Package papertrade provides a Go client for the papertrade-server
// HTTP API.
package papertrade

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"papertrade/internal/domain"
	"papertrade/internal/forecast"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("papertrade: server responded %d: %s", e.Status, e.Message)
}

// Client calls the papertrade-server API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string) *Client {
	for len(baseURL) > 0 && baseURL[len(baseURL)-1] == '/' {
		baseURL = baseURL[:len(baseURL)-1]
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// CreateOrder places a buy or sell order and returns the booked order.
func (c *Client) CreateOrder(ctx context.Context, portfolioID, isin string, side domain.OrderSide, quantity decimal.Decimal) (*domain.Order, error) {
	body, err := json.Marshal(map[string]any{
		"portfolio_id": portfolioID,
		"isin":         isin,
		"side":         string(side),
		"quantity":     quantity,
	})
	if err != nil {
		return nil, err
	}

	var order domain.Order
	if err := c.do(ctx, http.MethodPost, "/orders", body, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrder fetches one order by id.
func (c *Client) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	var order domain.Order
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/orders/%d", id), nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// CancelOrder cancels an order, reversing its ledger effects, and
// returns the cancelled order.
func (c *Client) CancelOrder(ctx context.Context, id int64) (*domain.Order, error) {
	var order domain.Order
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/orders/%d", id), nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// ListOrders lists orders, optionally filtered by status ("" lists all).
func (c *Client) ListOrders(ctx context.Context, status domain.OrderStatus) ([]domain.Order, error) {
	path := "/orders"
	if status != "" {
		path += "?status=" + url.QueryEscape(string(status))
	}
	var out struct {
		Orders []domain.Order `json:"orders"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Orders, nil
}

// GetPrediction fetches the AI forecast for an ISIN over horizonDays.
func (c *Client) GetPrediction(ctx context.Context, isin string, horizonDays int) (*forecast.Prediction, error) {
	path := fmt.Sprintf("/predictions/%s?horizon_days=%d", url.PathEscape(isin), horizonDays)
	var p forecast.Prediction
	if err := c.do(ctx, http.MethodGet, path, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Health reports whether the server answers its health endpoint.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("papertrade: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode, Message: resp.Status}
		// Decode the structured error body when present.
		_ = json.NewDecoder(resp.Body).Decode(apiErr)
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("papertrade: decoding response: %w", err)
	}
	return nil
}
