// Package tracking implements the tracking queue workers: carrier polling,
// overdue detection, and the daily fulfillment report.
package tracking

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ViniMktd/FlowBot-sub001/internal/domain"
	"github.com/ViniMktd/FlowBot-sub001/internal/pipeline"
)

type Store interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) error
	ListOverdue(ctx context.Context, asOf time.Time) ([]*domain.Order, error)
	CountByStatus(ctx context.Context) (map[domain.OrderStatus]int, error)
}

// DeliveryRecorder is the slice of the supplier metrics surface the tracking
// workers need.
type DeliveryRecorder interface {
	RecordDelivery(ctx context.Context, supplierID uuid.UUID, onTime bool) error
}

type Service struct {
	store   Store
	carrier Carrier
	metrics DeliveryRecorder
	jobs    pipeline.Enqueuer
	logger  *slog.Logger
	now     func() time.Time
}

func NewService(store Store, carrier Carrier, metrics DeliveryRecorder, jobs pipeline.Enqueuer, logger *slog.Logger) *Service {
	return &Service{store: store, carrier: carrier, metrics: metrics, jobs: jobs, logger: logger, now: time.Now}
}

// PollCarrierStatus asks the carrier for the latest checkpoint of an order in
// transit. On delivery it closes the order, records the on-time datapoint for
// the supplier, and fans out the customer delivery message. Non-terminal
// checkpoints are logged and left for the next poll.
func (s *Service) PollCarrierStatus() pipeline.Handler {
	return pipeline.Typed(func(ctx context.Context, job *pipeline.Job, p domain.PollCarrierStatusPayload) error {
		order, err := s.store.FindByID(ctx, p.OrderID)
		if err != nil {
			return fmt.Errorf("load order %s: %w", p.OrderID, err)
		}
		if order.Status == domain.OrderDelivered || order.Status == domain.OrderCancelled {
			return nil // a stale poll; nothing left to track
		}

		st, err := s.carrier.GetStatus(ctx, p.TrackingCode)
		if err != nil {
			return fmt.Errorf("poll %s: %w", p.TrackingCode, err)
		}
		if st.Code != StatusDelivered {
			s.logger.Info("carrier checkpoint",
				"order_id", order.ID, "tracking", p.TrackingCode, "status", st.Code)
			return nil
		}

		if err := s.store.UpdateStatus(ctx, order.ID, domain.OrderDelivered); err != nil {
			return fmt.Errorf("mark order %s delivered: %w", order.ID, err)
		}
		if order.SupplierID != nil && order.PromisedDelivery != nil {
			onTime := !st.UpdatedAt.After(*order.PromisedDelivery)
			if err := s.metrics.RecordDelivery(ctx, *order.SupplierID, onTime); err != nil {
				s.logger.Warn("delivery metric failed", "supplier", *order.SupplierID, "err", err)
			}
		}
		_, err = s.jobs.Enqueue(domain.QueueMessaging, domain.JobSendDeliveryNotification,
			domain.CustomerMessagePayload{OrderID: order.ID, Phone: order.CustomerPhone})
		if err != nil {
			return fmt.Errorf("enqueue delivery notification: %w", err)
		}
		s.logger.Info("order delivered", "order_id", order.ID, "tracking", p.TrackingCode)
		return nil
	})
}

// DetectOverdueOrders finds every open order past its promised delivery date
// and raises a single aggregated ops alert. Each overdue order is also logged
// individually for the audit trail.
func (s *Service) DetectOverdueOrders() pipeline.Handler {
	return pipeline.Typed(func(ctx context.Context, job *pipeline.Job, _ struct{}) error {
		overdue, err := s.store.ListOverdue(ctx, s.now())
		if err != nil {
			return fmt.Errorf("list overdue: %w", err)
		}
		if len(overdue) == 0 {
			return nil
		}

		var b strings.Builder
		fmt.Fprintf(&b, "%d orders past promised delivery:\n", len(overdue))
		for _, o := range overdue {
			s.logger.Warn("order overdue",
				"order_id", o.ID, "external_id", o.ExternalID,
				"status", o.Status, "promised", o.PromisedDelivery)
			fmt.Fprintf(&b, "- %s (%s, promised %s)\n",
				o.ExternalID, o.Status, o.PromisedDelivery.Format("2006-01-02"))
		}

		_, err = s.jobs.Enqueue(domain.QueueNotification, domain.JobDeliverNotification,
			domain.DeliverNotificationPayload{
				Channel:   domain.ChannelEmail,
				Recipient: "ops@flowbot.com.br",
				Subject:   fmt.Sprintf("%d overdue orders", len(overdue)),
				Body:      b.String(),
			})
		if err != nil {
			return fmt.Errorf("enqueue overdue alert: %w", err)
		}
		return nil
	})
}

// GenerateTrackingReport summarizes the order book by status. The report is
// emitted as a structured log line and mailed to ops.
func (s *Service) GenerateTrackingReport() pipeline.Handler {
	return pipeline.Typed(func(ctx context.Context, job *pipeline.Job, _ struct{}) error {
		counts, err := s.store.CountByStatus(ctx)
		if err != nil {
			return fmt.Errorf("count orders: %w", err)
		}
		job.ReportProgress(50)

		statuses := []domain.OrderStatus{
			domain.OrderPending, domain.OrderConfirmed, domain.OrderDispatched,
			domain.OrderInTransit, domain.OrderDelivered, domain.OrderCancelled,
			domain.OrderReturned,
		}
		var b strings.Builder
		b.WriteString("Fulfillment report\n")
		attrs := make([]any, 0, 2*len(statuses))
		for _, st := range statuses {
			fmt.Fprintf(&b, "%-12s %d\n", st, counts[st])
			attrs = append(attrs, string(st), counts[st])
		}
		s.logger.Info("tracking report", attrs...)

		_, err = s.jobs.Enqueue(domain.QueueNotification, domain.JobDeliverNotification,
			domain.DeliverNotificationPayload{
				Channel:   domain.ChannelEmail,
				Recipient: "ops@flowbot.com.br",
				Subject:   "Daily fulfillment report",
				Body:      b.String(),
			})
		if err != nil {
			return fmt.Errorf("enqueue report: %w", err)
		}
		return nil
	})
}
