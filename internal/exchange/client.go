package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// TransientError marks a probe failure that says nothing about the order's
// real state: network trouble, 5xx, undecodable body. Callers must treat the
// order as still pending and retry later, never as terminally failed.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string { return fmt.Sprintf("exchange %s: %v", e.Op, e.Err) }
func (e *TransientError) Unwrap() error { return e.Err }

// Order is the exchange aggregator's view of one conversion order.
type Order struct {
	ID             string          `json:"id"`
	Status         Status          `json:"status"`
	DepositCoin    string          `json:"depositCoin"`
	DepositNetwork string          `json:"depositNetwork"`
	SettleCoin     string          `json:"settleCoin"`
	SettleNetwork  string          `json:"settleNetwork"`
	DepositAddress string          `json:"depositAddress"`
	DepositAmount  decimal.Decimal `json:"depositAmount"`
	SettleAmount   decimal.Decimal `json:"settleAmount"`
	DepositHash    string          `json:"depositHash"`
	SettleHash     string          `json:"settleHash"`
	ExpiresAt      time.Time       `json:"expiresAt"`
}

type CreateOrderRequest struct {
	DepositCoin    string          `json:"depositCoin"`
	DepositNetwork string          `json:"depositNetwork"`
	SettleCoin     string          `json:"settleCoin"`
	SettleNetwork  string          `json:"settleNetwork"`
	SettleAmount   decimal.Decimal `json:"settleAmount"`
	SettleAddress  string          `json:"settleAddress,omitempty"`
	RefundAddress  string          `json:"refundAddress,omitempty"`
}

type Coin struct {
	Coin     string   `json:"coin"`
	Name     string   `json:"name"`
	Networks []string `json:"networks"`
}

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

// rawOrder is the wire shape; amounts arrive as decimal strings.
type rawOrder struct {
	ID             string `json:"id"`
	Status         string `json:"status"`
	DepositCoin    string `json:"depositCoin"`
	DepositNetwork string `json:"depositNetwork"`
	SettleCoin     string `json:"settleCoin"`
	SettleNetwork  string `json:"settleNetwork"`
	DepositAddress string `json:"depositAddress"`
	DepositAmount  string `json:"depositAmount"`
	SettleAmount   string `json:"settleAmount"`
	DepositHash    string `json:"depositHash"`
	SettleHash     string `json:"settleHash"`
	ExpiresAt      string `json:"expiresAt"`
}

func (r rawOrder) toOrder() Order {
	o := Order{
		ID:             r.ID,
		Status:         NormalizeStatus(r.Status),
		DepositCoin:    r.DepositCoin,
		DepositNetwork: r.DepositNetwork,
		SettleCoin:     r.SettleCoin,
		SettleNetwork:  r.SettleNetwork,
		DepositAddress: r.DepositAddress,
		DepositHash:    r.DepositHash,
		SettleHash:     r.SettleHash,
	}
	if d, err := decimal.NewFromString(r.DepositAmount); err == nil {
		o.DepositAmount = d
	}
	if d, err := decimal.NewFromString(r.SettleAmount); err == nil {
		o.SettleAmount = d
	}
	if t, err := time.Parse(time.RFC3339, r.ExpiresAt); err == nil {
		o.ExpiresAt = t
	}
	return o
}

// GetOrder fetches the current state of an order. Pure read.
func (c *Client) GetOrder(ctx context.Context, id string) (Order, error) {
	var raw rawOrder
	if err := c.do(ctx, http.MethodGet, "/shifts/"+id, nil, &raw); err != nil {
		return Order{}, err
	}
	return raw.toOrder(), nil
}

// CreateOrder opens a fixed-rate conversion order.
func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (Order, error) {
	var raw rawOrder
	if err := c.do(ctx, http.MethodPost, "/shifts/fixed", req, &raw); err != nil {
		return Order{}, err
	}
	return raw.toOrder(), nil
}

// ListCoins returns the aggregator's coin/network metadata.
func (c *Client) ListCoins(ctx context.Context) ([]Coin, error) {
	var coins []Coin
	if err := c.do(ctx, http.MethodGet, "/coins", nil, &coins); err != nil {
		return nil, err
	}
	return coins, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransientError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrOrderNotFound
	case resp.StatusCode >= 500:
		return &TransientError{Op: method + " " + path, Err: fmt.Errorf("status %d", resp.StatusCode)}
	case resp.StatusCode >= 400:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		slog.Warn("exchange rejected request", "path", path, "status", resp.StatusCode, "body", string(b))
		return fmt.Errorf("exchange %s: status %d: %s", path, resp.StatusCode, string(b))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &TransientError{Op: method + " " + path, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
