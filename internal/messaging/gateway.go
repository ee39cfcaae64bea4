package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrDeliveryFailed wraps any failure from the messaging gateway. Handlers
// propagate it so the queue's retry policy owns the decision.
var ErrDeliveryFailed = errors.New("delivery failed")

// Receipt is the gateway's acknowledgement of one accepted message.
type Receipt struct {
	MessageID string `json:"message_id"`
}

// Gateway delivers one rendered message to one recipient. dedupeKey makes
// redelivery safe: the downstream service is idempotent on it, so a retried
// send with the same key produces one external message, not two.
type Gateway interface {
	Send(ctx context.Context, recipient, dedupeKey, message string) (Receipt, error)
}

// WhatsAppGateway posts to the WhatsApp Business API.
type WhatsAppGateway struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewWhatsAppGateway(baseURL, token string) *WhatsAppGateway {
	return &WhatsAppGateway{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (g *WhatsAppGateway) Send(ctx context.Context, recipient, dedupeKey, message string) (Receipt, error) {
	body, err := json.Marshal(map[string]any{
		"messaging_product": "whatsapp",
		"to":                recipient,
		"type":              "text",
		"text":              map[string]string{"body": message},
		"biz_opaque_callback_data": dedupeKey,
	})
	if err != nil {
		return Receipt{}, fmt.Errorf("encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return Receipt{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.token)

	resp, err := g.client.Do(req)
	if err != nil {
		return Receipt{}, fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return Receipt{}, fmt.Errorf("%w: status %d", ErrDeliveryFailed, resp.StatusCode)
	}

	var out struct {
		Messages []struct {
			ID string `json:"id"`
		} `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Receipt{}, fmt.Errorf("decode gateway response: %w", err)
	}
	if len(out.Messages) == 0 {
		return Receipt{}, fmt.Errorf("%w: empty response", ErrDeliveryFailed)
	}
	return Receipt{MessageID: out.Messages[0].ID}, nil
}
