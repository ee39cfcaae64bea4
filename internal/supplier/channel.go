package supplier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ViniMktd/FlowBot-sub001/internal/domain"
)

// ErrSupplierUnreachable wraps any network-level failure talking to a
// supplier endpoint. It is retried like every other handler error.
var ErrSupplierUnreachable = errors.New("supplier unreachable")

// OrderPayload is the wire shape posted to a supplier's order endpoint.
// Suppliers are idempotent on ExternalID.
type OrderPayload struct {
	ExternalID string             `json:"external_id"`
	Customer   string             `json:"customer"`
	Address    string             `json:"address"`
	Items      []domain.OrderItem `json:"items"`
}

type Ack struct {
	Reference string `json:"reference"`
}

type InventoryItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Channel is the supplier communication contract.
type Channel interface {
	Send(ctx context.Context, endpoint string, payload OrderPayload) (Ack, error)
	Inventory(ctx context.Context, endpoint string) ([]InventoryItem, error)
}

// HTTPChannel talks JSON over HTTP to each supplier's own endpoint.
type HTTPChannel struct {
	client *http.Client
}

func NewHTTPChannel() *HTTPChannel {
	return &HTTPChannel{client: &http.Client{Timeout: 30 * time.Second}}
}

func (c *HTTPChannel) Send(ctx context.Context, endpoint string, payload OrderPayload) (Ack, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Ack{}, fmt.Errorf("encode order payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		endpoint+"/orders", bytes.NewReader(body))
	if err != nil {
		return Ack{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Ack{}, fmt.Errorf("%w: %v", ErrSupplierUnreachable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return Ack{}, fmt.Errorf("%w: status %d from %s", ErrSupplierUnreachable,
			resp.StatusCode, endpoint)
	}

	var ack Ack
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return Ack{}, fmt.Errorf("decode supplier ack: %w", err)
	}
	return ack, nil
}

func (c *HTTPChannel) Inventory(ctx context.Context, endpoint string) ([]InventoryItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"/inventory", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSupplierUnreachable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d from %s", ErrSupplierUnreachable,
			resp.StatusCode, endpoint)
	}

	var items []InventoryItem
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("decode supplier inventory: %w", err)
	}
	return items, nil
}
