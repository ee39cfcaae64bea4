// Package orders implements the order-processing queue workers: order
// creation with supplier assignment, status updates, and inventory
// reconciliation.
package orders

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ViniMktd/FlowBot-sub001/internal/domain"
	"github.com/ViniMktd/FlowBot-sub001/internal/pipeline"
)

// Store is the order persistence contract. Each call is transactional on its
// own; handlers never span two calls in one transaction.
type Store interface {
	Create(ctx context.Context, o *domain.Order) (*domain.Order, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) error
	AssignSupplier(ctx context.Context, orderID uuid.UUID) (*domain.Supplier, error)
	AdjustInventory(ctx context.Context, supplierID uuid.UUID, productID string, delta int) error
}

type Service struct {
	store  Store
	jobs   pipeline.Enqueuer
	logger *slog.Logger
}

func NewService(store Store, jobs pipeline.Enqueuer, logger *slog.Logger) *Service {
	return &Service{store: store, jobs: jobs, logger: logger}
}

// ProcessOrder creates the order row, assigns the least loaded supplier and
// fans out the supplier transmission and the customer confirmation message.
// Create is idempotent on the storefront's external id, so a retried job
// does not produce a second order.
func (s *Service) ProcessOrder() pipeline.Handler {
	return pipeline.Typed(func(ctx context.Context, job *pipeline.Job, p domain.ProcessOrderPayload) error {
		if p.ExternalID == "" {
			return fmt.Errorf("processOrder: externalId is required")
		}

		order, err := s.store.Create(ctx, &domain.Order{
			ExternalID:       p.ExternalID,
			CustomerName:     p.CustomerName,
			CustomerPhone:    p.Phone,
			ShippingAddress:  p.Address,
			Items:            p.Items,
			PromisedDelivery: p.PromisedDelivery,
		})
		if err != nil {
			return fmt.Errorf("create order %s: %w", p.ExternalID, err)
		}
		job.ReportProgress(30)

		supplier, err := s.store.AssignSupplier(ctx, order.ID)
		if err != nil {
			return fmt.Errorf("assign supplier for %s: %w", p.ExternalID, err)
		}
		job.ReportProgress(60)

		s.logger.Info("order processed",
			"order_id", order.ID, "external_id", order.ExternalID,
			"supplier", supplier.Name)

		if _, err := s.jobs.Enqueue(domain.QueueSupplier, domain.JobSendOrderToSupplier,
			domain.SendOrderToSupplierPayload{OrderID: order.ID}); err != nil {
			return fmt.Errorf("enqueue supplier send: %w", err)
		}
		if _, err := s.jobs.Enqueue(domain.QueueMessaging, domain.JobSendOrderConfirmation,
			domain.CustomerMessagePayload{OrderID: order.ID, Phone: order.CustomerPhone}); err != nil {
			return fmt.Errorf("enqueue order confirmation: %w", err)
		}
		return nil
	})
}

// UpdateOrderStatus applies a status transition reported by a collaborator
// or an operator.
func (s *Service) UpdateOrderStatus() pipeline.Handler {
	return pipeline.Typed(func(ctx context.Context, job *pipeline.Job, p domain.UpdateOrderStatusPayload) error {
		if err := s.store.UpdateStatus(ctx, p.OrderID, p.Status); err != nil {
			return fmt.Errorf("update order %s to %s: %w", p.OrderID, p.Status, err)
		}
		s.logger.Info("order status updated", "order_id", p.OrderID, "status", p.Status)
		return nil
	})
}

// ReconcileInventory applies a stock delta for one supplier product.
func (s *Service) ReconcileInventory() pipeline.Handler {
	return pipeline.Typed(func(ctx context.Context, job *pipeline.Job, p domain.ReconcileInventoryPayload) error {
		if p.ProductID == "" {
			return fmt.Errorf("reconcileInventory: productId is required")
		}
		if err := s.store.AdjustInventory(ctx, p.SupplierID, p.ProductID, p.Delta); err != nil {
			return fmt.Errorf("adjust inventory %s/%s: %w", p.SupplierID, p.ProductID, err)
		}
		return nil
	})
}
