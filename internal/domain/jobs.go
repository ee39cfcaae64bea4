package domain

import (
	"time"

	"github.com/google/uuid"
)

// Queue names. One queue per business domain; created at process start and
// drained on shutdown.
const (
	QueueOrders       = "order-processing"
	QueueSupplier     = "supplier-communication"
	QueueMessaging    = "customer-messaging"
	QueueTracking     = "tracking"
	QueueNotification = "notification"
)

// Job types, grouped per queue. Each type has exactly one payload struct
// below and exactly one registered handler.
const (
	JobProcessOrder       = "processOrder"
	JobUpdateOrderStatus  = "updateOrderStatus"
	JobReconcileInventory = "reconcileInventory"

	JobSendOrderToSupplier        = "sendOrderToSupplier"
	JobIngestSupplierConfirmation = "ingestSupplierConfirmation"
	JobSyncSupplierInventory      = "syncSupplierInventory"
	JobRelayTrackingUpdate        = "relayTrackingUpdate"
	JobIngestReturnedProduct      = "ingestReturnedProduct"
	JobMonitorSupplierPerformance = "monitorSupplierPerformance"

	JobSendOrderConfirmation    = "sendOrderConfirmation"
	JobSendShippingNotification = "sendShippingNotification"
	JobSendDeliveryNotification = "sendDeliveryNotification"
	JobSendCancellationNotice   = "sendCancellationNotice"
	JobSendReviewReminder       = "sendReviewReminder"
	JobHandleInboundMessage     = "handleInboundMessage"

	JobPollCarrierStatus      = "pollCarrierStatus"
	JobDetectOverdueOrders    = "detectOverdueOrders"
	JobGenerateTrackingReport = "generateTrackingReport"

	JobDeliverNotification  = "deliverNotification"
	JobDeliverBatch         = "deliverBatch"
	JobCleanupNotifications = "cleanupNotifications"
)

type ProcessOrderPayload struct {
	ExternalID       string      `json:"externalId"`
	CustomerName     string      `json:"customerName"`
	Phone            string      `json:"phone"`
	Address          string      `json:"address"`
	Items            []OrderItem `json:"items"`
	PromisedDelivery *time.Time  `json:"promisedDelivery,omitempty"`
}

type UpdateOrderStatusPayload struct {
	OrderID uuid.UUID   `json:"orderId"`
	Status  OrderStatus `json:"status"`
}

type ReconcileInventoryPayload struct {
	SupplierID uuid.UUID `json:"supplierId"`
	ProductID  string    `json:"productId"`
	Delta      int       `json:"delta"`
}

type SendOrderToSupplierPayload struct {
	OrderID uuid.UUID `json:"orderId"`
}

type SupplierConfirmationPayload struct {
	OrderID     uuid.UUID `json:"orderId"`
	SupplierRef string    `json:"supplierRef"`
}

type SyncSupplierInventoryPayload struct {
	SupplierID uuid.UUID `json:"supplierId"`
}

type RelayTrackingUpdatePayload struct {
	OrderID      uuid.UUID `json:"orderId"`
	TrackingCode string    `json:"trackingCode"`
}

type ReturnedProductPayload struct {
	OrderID uuid.UUID `json:"orderId"`
	Reason  string    `json:"reason"`
}

type MonitorSupplierPerformancePayload struct {
	WindowHours int `json:"windowHours"`
}

// CustomerMessagePayload covers confirmation, delivery, cancellation and
// review-reminder sends; shipping adds the tracking code.
type CustomerMessagePayload struct {
	OrderID uuid.UUID `json:"orderId"`
	Phone   string    `json:"phone"`
}

type ShippingNotificationPayload struct {
	OrderID      string `json:"orderId"`
	Phone        string `json:"phone"`
	TrackingCode string `json:"trackingCode"`
}

type InboundMessagePayload struct {
	From string `json:"from"`
	Body string `json:"body"`
}

type PollCarrierStatusPayload struct {
	OrderID      uuid.UUID `json:"orderId"`
	TrackingCode string    `json:"trackingCode"`
}

// DeliverNotificationPayload carries one outbound delivery. DedupeKey makes
// the persisted row idempotent across queue retries; when empty, the worker
// derives one from the job ID.
type DeliverNotificationPayload struct {
	Channel   NotificationChannel `json:"channel"`
	Recipient string              `json:"recipient"`
	Subject   string              `json:"subject,omitempty"`
	Body      string              `json:"body"`
	DedupeKey string              `json:"dedupeKey,omitempty"`
}

type DeliverBatchPayload struct {
	Limit int `json:"limit"`
}

type CleanupNotificationsPayload struct {
	RetentionDays int `json:"retentionDays"`
}
