package domain

import (
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderConfirmed  OrderStatus = "confirmed"
	OrderDispatched OrderStatus = "dispatched"
	OrderInTransit  OrderStatus = "in_transit"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
	OrderReturned   OrderStatus = "returned"
)

// Order is the fulfillment view of a storefront order. ExternalID is the
// storefront's own identifier (Shopify order name); downstream collaborators
// are idempotent on it, which is what makes job retries safe.
type Order struct {
	ID               uuid.UUID
	ExternalID       string
	CustomerName     string
	CustomerPhone    string
	ShippingAddress  string
	Items            []OrderItem
	Status           OrderStatus
	SupplierID       *uuid.UUID
	TrackingCode     *string
	PromisedDelivery *time.Time
	ConfirmedAt      *time.Time
	DeliveredAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type OrderItem struct {
	ProductID string `json:"product_id"`
	SKU       string `json:"sku"`
	Quantity  int    `json:"quantity"`
}

type Supplier struct {
	ID        uuid.UUID
	Name      string
	Endpoint  string
	Active    bool
	CreatedAt time.Time
}
