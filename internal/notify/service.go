// Package notify implements the notification queue workers: single and
// batched delivery plus retention cleanup.
package notify

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
	Insert(ctx context.Context, n *domain.Notification) (uuid.UUID, domain.NotificationStatus, error)
	ListDue(ctx context.Context, limit int) ([]*domain.Notification, error)
	MarkSent(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type Service struct {
	store     Store
	senders   Registry
	batchSize int
	retention time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(store Store, senders Registry, batchSize, retentionDays int, logger *slog.Logger) *Service {
	return &Service{
		store:     store,
		senders:   senders,
		batchSize: batchSize,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		logger:    logger,
		now:       time.Now,
	}
}

// DeliverNotification persists the notification and sends it immediately.
// The row exists before the send so a crash mid-delivery leaves it pending
// for the batch worker instead of losing it. The insert is keyed on a dedupe
// key (the job ID unless the payload carries its own), so a queue retry
// lands on the row the first attempt created; if the batch worker delivered
// it in the meantime, the retry sees the sent status and stops.
func (s *Service) DeliverNotification() pipeline.Handler {
	return pipeline.Typed(func(ctx context.Context, job *pipeline.Job, p domain.DeliverNotificationPayload) error {
		sender, err := s.senders.Lookup(p.Channel)
		if err != nil {
			return err
		}
		key := p.DedupeKey
		if key == "" {
			key = "job:" + job.ID.String()
		}
		id, status, err := s.store.Insert(ctx, &domain.Notification{
			Channel:   p.Channel,
			Recipient: p.Recipient,
			Subject:   p.Subject,
			Body:      p.Body,
			DedupeKey: key,
		})
		if err != nil {
			return fmt.Errorf("persist notification: %w", err)
		}
		if status == domain.NotificationSent {
			s.logger.Info("notification already delivered",
				"id", id, "dedupeKey", key, "channel", p.Channel)
			return nil
		}
		job.ReportProgress(50)

		if err := sender.Send(ctx, p.Recipient, p.Subject, p.Body); err != nil {
			return fmt.Errorf("send %s to %s: %w", p.Channel, p.Recipient, err)
		}
		if err := s.store.MarkSent(ctx, id); err != nil {
			return fmt.Errorf("mark sent %s: %w", id, err)
		}
		return nil
	})
}

// DeliverBatch drains due pending rows. A failed send marks the row failed
// and moves on; the batch itself only fails on store errors. Runs with
// concurrency 1 so a row is never claimed twice.
func (s *Service) DeliverBatch() pipeline.Handler {
	return pipeline.Typed(func(ctx context.Context, job *pipeline.Job, p domain.DeliverBatchPayload) error {
		limit := p.Limit
		if limit <= 0 {
			limit = s.batchSize
		}
		due, err := s.store.ListDue(ctx, limit)
		if err != nil {
			return fmt.Errorf("list due notifications: %w", err)
		}
		if len(due) == 0 {
			return nil
		}

		var sent, failed int
		for i, n := range due {
			sender, err := s.senders.Lookup(n.Channel)
			if err == nil {
				err = sender.Send(ctx, n.Recipient, n.Subject, n.Body)
			}
			if err != nil {
				s.logger.Warn("notification delivery failed",
					"id", n.ID, "channel", n.Channel, "recipient", n.Recipient, "err", err)
				if err := s.store.MarkFailed(ctx, n.ID); err != nil {
					return fmt.Errorf("mark failed %s: %w", n.ID, err)
				}
				failed++
			} else {
				if err := s.store.MarkSent(ctx, n.ID); err != nil {
					return fmt.Errorf("mark sent %s: %w", n.ID, err)
				}
				sent++
			}
			job.ReportProgress((i + 1) * 100 / len(due))
		}
		s.logger.Info("notification batch delivered", "sent", sent, "failed", failed)
		return nil
	})
}

// CleanupNotifications prunes delivered and failed rows past retention.
func (s *Service) CleanupNotifications() pipeline.Handler {
	return pipeline.Typed(func(ctx context.Context, job *pipeline.Job, p domain.CleanupNotificationsPayload) error {
		retention := s.retention
		if p.RetentionDays > 0 {
			retention = time.Duration(p.RetentionDays) * 24 * time.Hour
		}
		n, err := s.store.DeleteOlderThan(ctx, s.now().Add(-retention))
		if err != nil {
			return fmt.Errorf("prune notifications: %w", err)
		}
		s.logger.Info("notifications pruned", "deleted", n, "retention", retention)
		return nil
	})
}
