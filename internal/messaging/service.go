// Package messaging implements the customer-messaging queue workers:
// multilingual outbound sends through the messaging gateway and keyword
// classification plus auto-response for inbound messages.
package messaging

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ViniMktd/FlowBot-sub001/internal/domain"
	"github.com/ViniMktd/FlowBot-sub001/internal/pipeline"
)

type Store interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	FindByExternalID(ctx context.Context, externalID string) (*domain.Order, error)
	FindByPhone(ctx context.Context, phone string) (*domain.Order, error)
}

type Service struct {
	store   Store
	gateway Gateway
	jobs    pipeline.Enqueuer
	logger  *slog.Logger
}

func NewService(store Store, gateway Gateway, jobs pipeline.Enqueuer, logger *slog.Logger) *Service {
	return &Service{store: store, gateway: gateway, jobs: jobs, logger: logger}
}

// sendOrderMessage renders and delivers one templated message for an order.
// The dedupe key is derived from (order, kind) so a retried job cannot
// produce a second external message.
func (s *Service) sendOrderMessage(ctx context.Context, order *domain.Order, phone string, kind MessageKind, vars map[string]string) error {
	if phone == "" {
		phone = order.CustomerPhone
	}
	lang := DetectLanguage(phone)

	if vars == nil {
		vars = map[string]string{}
	}
	vars["name"] = order.CustomerName
	vars["order"] = order.ExternalID

	msg, err := Render(lang, kind, vars)
	if err != nil {
		return err
	}

	dedupe := fmt.Sprintf("%s:%s", order.ExternalID, kind)
	receipt, err := s.gateway.Send(ctx, phone, dedupe, msg)
	if err != nil {
		return fmt.Errorf("send %s for order %s: %w", kind, order.ExternalID, err)
	}
	s.logger.Info("customer message sent",
		"order", order.ExternalID, "kind", kind, "lang", lang,
		"message_id", receipt.MessageID)
	return nil
}

func (s *Service) orderMessageHandler(kind MessageKind) pipeline.Handler {
	return pipeline.Typed(func(ctx context.Context, job *pipeline.Job, p domain.CustomerMessagePayload) error {
		order, err := s.store.FindByID(ctx, p.OrderID)
		if err != nil {
			return fmt.Errorf("load order %s: %w", p.OrderID, err)
		}
		return s.sendOrderMessage(ctx, order, p.Phone, kind, nil)
	})
}

func (s *Service) SendOrderConfirmation() pipeline.Handler {
	return s.orderMessageHandler(MsgOrderConfirmation)
}

func (s *Service) SendDeliveryNotification() pipeline.Handler {
	return s.orderMessageHandler(MsgDeliveryNotification)
}

func (s *Service) SendCancellationNotice() pipeline.Handler {
	return s.orderMessageHandler(MsgCancellationNotice)
}

func (s *Service) SendReviewReminder() pipeline.Handler {
	return s.orderMessageHandler(MsgReviewReminder)
}

// SendShippingNotification carries the tracking code; the payload addresses
// the order by its storefront external id.
func (s *Service) SendShippingNotification() pipeline.Handler {
	return pipeline.Typed(func(ctx context.Context, job *pipeline.Job, p domain.ShippingNotificationPayload) error {
		order, err := s.store.FindByExternalID(ctx, p.OrderID)
		if err != nil {
			return fmt.Errorf("load order %s: %w", p.OrderID, err)
		}
		return s.sendOrderMessage(ctx, order, p.Phone, MsgShippingNotification,
			map[string]string{"tracking": p.TrackingCode})
	})
}

// HandleInboundMessage classifies an inbound customer message against the
// per-language lexicon, auto-responds, and fans out a cancellation request
// to the order-processing queue.
func (s *Service) HandleInboundMessage() pipeline.Handler {
	return pipeline.Typed(func(ctx context.Context, job *pipeline.Job, p domain.InboundMessagePayload) error {
		lang := DetectLanguage(p.From)
		intent := Classify(lang, p.Body)
		job.ReportProgress(40)

		dedupe := fmt.Sprintf("reply:%s:%s:%s", p.From, intent, p.Body)
		if _, err := s.gateway.Send(ctx, p.From, dedupe, AutoReply(lang, intent)); err != nil {
			return fmt.Errorf("auto-reply to %s: %w", p.From, err)
		}

		s.logger.Info("inbound message handled",
			"from", p.From, "lang", lang, "intent", intent)

		if intent != IntentCancelRequest {
			return nil
		}
		order, err := s.store.FindByPhone(ctx, p.From)
		if err != nil {
			return fmt.Errorf("find order for cancellation from %s: %w", p.From, err)
		}
		if _, err := s.jobs.Enqueue(domain.QueueOrders, domain.JobUpdateOrderStatus,
			domain.UpdateOrderStatusPayload{OrderID: order.ID, Status: domain.OrderCancelled}); err != nil {
			return fmt.Errorf("enqueue cancellation: %w", err)
		}
		if _, err := s.jobs.Enqueue(domain.QueueMessaging, domain.JobSendCancellationNotice,
			domain.CustomerMessagePayload{OrderID: order.ID, Phone: p.From}); err != nil {
			return fmt.Errorf("enqueue cancellation notice: %w", err)
		}
		return nil
	})
}
