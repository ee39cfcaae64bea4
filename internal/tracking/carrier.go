package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrCarrierUnavailable wraps any failure from the carrier tracking API.
var ErrCarrierUnavailable = errors.New("carrier unavailable")

// Status is one tracking checkpoint from the carrier.
type Status struct {
	Code        string    `json:"code"` // posted | in_transit | out_for_delivery | delivered
	Description string    `json:"description"`
	UpdatedAt   time.Time `json:"updated_at"`
}

const StatusDelivered = "delivered"

// Carrier is the external tracking API contract.
type Carrier interface {
	GetStatus(ctx context.Context, trackingCode string) (Status, error)
}

// HTTPCarrier queries the carrier's REST tracking endpoint.
type HTTPCarrier struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewHTTPCarrier(baseURL, token string) *HTTPCarrier {
	return &HTTPCarrier{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPCarrier) GetStatus(ctx context.Context, trackingCode string) (Status, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/tracking/%s", c.baseURL, trackingCode), nil)
	if err != nil {
		return Status{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return Status{}, fmt.Errorf("%w: %v", ErrCarrierUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return Status{}, fmt.Errorf("%w: status %d for %s", ErrCarrierUnavailable,
			resp.StatusCode, trackingCode)
	}

	var st Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return Status{}, fmt.Errorf("decode carrier status: %w", err)
	}
	return st, nil
}
