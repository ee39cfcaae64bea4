// Package supplier implements the supplier-communication queue workers:
// order transmission, confirmation and return ingestion, inventory sync,
// tracking relay, and rolling performance monitoring.
package supplier

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ViniMktd/FlowBot-sub001/internal/domain"
	"github.com/ViniMktd/FlowBot-sub001/internal/pipeline"
)

type Store interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	FindSupplier(ctx context.Context, id uuid.UUID) (*domain.Supplier, error)
	ListActiveSuppliers(ctx context.Context) ([]*domain.Supplier, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) error
	SetTracking(ctx context.Context, id uuid.UUID, trackingCode string) error
	SetInventory(ctx context.Context, supplierID uuid.UUID, productID string, quantity int) error
	AdjustInventory(ctx context.Context, supplierID uuid.UUID, productID string, delta int) error
}

type Service struct {
	store   Store
	channel Channel
	metrics Metrics
	jobs    pipeline.Enqueuer
	logger  *slog.Logger
}

func NewService(store Store, channel Channel, metrics Metrics, jobs pipeline.Enqueuer, logger *slog.Logger) *Service {
	return &Service{store: store, channel: channel, metrics: metrics, jobs: jobs, logger: logger}
}

func (s *Service) orderWithSupplier(ctx context.Context, orderID uuid.UUID) (*domain.Order, *domain.Supplier, error) {
	order, err := s.store.FindByID(ctx, orderID)
	if err != nil {
		return nil, nil, fmt.Errorf("load order %s: %w", orderID, err)
	}
	if order.SupplierID == nil {
		return nil, nil, fmt.Errorf("order %s has no supplier assigned", orderID)
	}
	sup, err := s.store.FindSupplier(ctx, *order.SupplierID)
	if err != nil {
		return nil, nil, fmt.Errorf("load supplier for order %s: %w", orderID, err)
	}
	return order, sup, nil
}

// SendOrderToSupplier transmits the new-order payload to the assigned
// supplier's endpoint. The supplier is idempotent on the external id, so a
// retried transmission cannot double-ship.
func (s *Service) SendOrderToSupplier() pipeline.Handler {
	return pipeline.Typed(func(ctx context.Context, job *pipeline.Job, p domain.SendOrderToSupplierPayload) error {
		order, sup, err := s.orderWithSupplier(ctx, p.OrderID)
		if err != nil {
			return err
		}
		job.ReportProgress(30)

		ack, err := s.channel.Send(ctx, sup.Endpoint, OrderPayload{
			ExternalID: order.ExternalID,
			Customer:   order.CustomerName,
			Address:    order.ShippingAddress,
			Items:      order.Items,
		})
		if err != nil {
			return fmt.Errorf("send order %s to %s: %w", order.ExternalID, sup.Name, err)
		}
		job.ReportProgress(80)

		if err := s.metrics.RecordOrderSent(ctx, sup.ID); err != nil {
			s.logger.Warn("order-sent metric failed", "supplier", sup.ID, "err", err)
		}
		s.logger.Info("order sent to supplier",
			"order_id", order.ID, "supplier", sup.Name, "reference", ack.Reference)
		return nil
	})
}

// IngestSupplierConfirmation marks the order confirmed and records the
// supplier's processing latency (confirmation time minus order creation).
func (s *Service) IngestSupplierConfirmation() pipeline.Handler {
	return pipeline.Typed(func(ctx context.Context, job *pipeline.Job, p domain.SupplierConfirmationPayload) error {
		order, sup, err := s.orderWithSupplier(ctx, p.OrderID)
		if err != nil {
			return err
		}
		if err := s.store.UpdateStatus(ctx, order.ID, domain.OrderConfirmed); err != nil {
			return fmt.Errorf("confirm order %s: %w", order.ID, err)
		}
		if err := s.metrics.RecordConfirmation(ctx, sup.ID, time.Since(order.CreatedAt)); err != nil {
			s.logger.Warn("confirmation metric failed", "supplier", sup.ID, "err", err)
		}
		s.logger.Info("supplier confirmation ingested",
			"order_id", order.ID, "supplier", sup.Name, "supplier_ref", p.SupplierRef)
		return nil
	})
}

// SyncSupplierInventory pulls the supplier's current stock snapshot and
// overwrites local counts.
func (s *Service) SyncSupplierInventory() pipeline.Handler {
	return pipeline.Typed(func(ctx context.Context, job *pipeline.Job, p domain.SyncSupplierInventoryPayload) error {
		sup, err := s.store.FindSupplier(ctx, p.SupplierID)
		if err != nil {
			return fmt.Errorf("load supplier %s: %w", p.SupplierID, err)
		}
		items, err := s.channel.Inventory(ctx, sup.Endpoint)
		if err != nil {
			return fmt.Errorf("fetch inventory from %s: %w", sup.Name, err)
		}
		for i, item := range items {
			if err := s.store.SetInventory(ctx, sup.ID, item.ProductID, item.Quantity); err != nil {
				return fmt.Errorf("store inventory %s/%s: %w", sup.ID, item.ProductID, err)
			}
			job.ReportProgress((i + 1) * 100 / len(items))
		}
		s.logger.Info("supplier inventory synced", "supplier", sup.Name, "products", len(items))
		return nil
	})
}

// RelayTrackingUpdate stores the tracking code the supplier reported and
// fans out the customer shipping notification.
func (s *Service) RelayTrackingUpdate() pipeline.Handler {
	return pipeline.Typed(func(ctx context.Context, job *pipeline.Job, p domain.RelayTrackingUpdatePayload) error {
		order, err := s.store.FindByID(ctx, p.OrderID)
		if err != nil {
			return fmt.Errorf("load order %s: %w", p.OrderID, err)
		}
		if err := s.store.SetTracking(ctx, order.ID, p.TrackingCode); err != nil {
			return fmt.Errorf("set tracking on %s: %w", order.ID, err)
		}
		_, err = s.jobs.Enqueue(domain.QueueMessaging, domain.JobSendShippingNotification,
			domain.ShippingNotificationPayload{
				OrderID:      order.ExternalID,
				Phone:        order.CustomerPhone,
				TrackingCode: p.TrackingCode,
			})
		if err != nil {
			return fmt.Errorf("enqueue shipping notification: %w", err)
		}
		return nil
	})
}

// IngestReturnedProduct marks the order returned and restocks its items at
// the assigned supplier.
func (s *Service) IngestReturnedProduct() pipeline.Handler {
	return pipeline.Typed(func(ctx context.Context, job *pipeline.Job, p domain.ReturnedProductPayload) error {
		order, sup, err := s.orderWithSupplier(ctx, p.OrderID)
		if err != nil {
			return err
		}
		if err := s.store.UpdateStatus(ctx, order.ID, domain.OrderReturned); err != nil {
			return fmt.Errorf("mark order %s returned: %w", order.ID, err)
		}
		for _, item := range order.Items {
			if err := s.store.AdjustInventory(ctx, sup.ID, item.ProductID, item.Quantity); err != nil {
				return fmt.Errorf("restock %s at %s: %w", item.ProductID, sup.Name, err)
			}
		}
		s.logger.Info("returned product ingested",
			"order_id", order.ID, "supplier", sup.Name, "reason", p.Reason)
		return nil
	})
}

// MonitorSupplierPerformance scans every active supplier's rolling window
// and raises an ops alert per SLA breach. Heavyweight: runs with a low
// concurrency cap and reports progress per supplier.
func (s *Service) MonitorSupplierPerformance() pipeline.Handler {
	return pipeline.Typed(func(ctx context.Context, job *pipeline.Job, p domain.MonitorSupplierPerformancePayload) error {
		window := time.Duration(p.WindowHours) * time.Hour
		if window <= 0 {
			window = 7 * 24 * time.Hour
		}
		suppliers, err := s.store.ListActiveSuppliers(ctx)
		if err != nil {
			return fmt.Errorf("list suppliers: %w", err)
		}

		for i, sup := range suppliers {
			snap, err := s.metrics.Snapshot(ctx, sup.ID, window)
			if err != nil {
				return fmt.Errorf("snapshot %s: %w", sup.Name, err)
			}
			for _, alert := range Evaluate(snap) {
				s.logger.Warn("supplier SLA breach",
					"supplier", sup.Name, "metric", alert.Metric, "detail", alert.Message)
				_, err := s.jobs.Enqueue(domain.QueueNotification, domain.JobDeliverNotification,
					domain.DeliverNotificationPayload{
						Channel:   domain.ChannelEmail,
						Recipient: "ops@flowbot.com.br",
						Subject:   fmt.Sprintf("Supplier alert: %s", sup.Name),
						Body:      alert.Message,
					})
				if err != nil {
					return fmt.Errorf("enqueue SLA alert: %w", err)
				}
			}
			job.ReportProgress((i + 1) * 100 / len(suppliers))
		}
		return nil
	})
}
