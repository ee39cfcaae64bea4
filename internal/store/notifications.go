package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ViniMktd/FlowBot-sub001/internal/domain"
)

// Notifications persists scheduled multi-channel deliveries and backs the
// batch/cleanup workers on the notification queue.
type Notifications struct {
	pool *pgxpool.Pool
}

func NewNotifications(pool *pgxpool.Pool) *Notifications {
	return &Notifications{pool: pool}
}

// Insert persists one delivery. A non-empty dedupe key upserts: on conflict
// the existing row's id and status come back untouched, so a retried job
// sees whether an earlier attempt (or the batch worker) already sent it.
func (s *Notifications) Insert(ctx context.Context, n *domain.Notification) (uuid.UUID, domain.NotificationStatus, error) {
	scheduledAt := n.ScheduledAt
	if scheduledAt.IsZero() {
		scheduledAt = time.Now()
	}
	var (
		id     uuid.UUID
		status string
	)
	err := s.pool.QueryRow(ctx, `
		INSERT INTO notifications (channel, recipient, subject, body, dedupe_key, scheduled_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (dedupe_key) WHERE dedupe_key <> ''
		DO UPDATE SET dedupe_key = notifications.dedupe_key
		RETURNING id, status`,
		n.Channel, n.Recipient, n.Subject, n.Body, n.DedupeKey, scheduledAt).Scan(&id, &status)
	return id, domain.NotificationStatus(status), err
}

// ListDue returns pending rows whose scheduled time has passed, oldest
// first. The batch worker runs with concurrency 1 so a row is never handed
// to two senders at once.
func (s *Notifications) ListDue(ctx context.Context, limit int) ([]*domain.Notification, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, channel, recipient, subject, body, dedupe_key, status, scheduled_at, sent_at, created_at
		FROM notifications
		WHERE status = 'pending' AND scheduled_at <= NOW()
		ORDER BY scheduled_at ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Notification
	for rows.Next() {
		var n domain.Notification
		err := rows.Scan(&n.ID, (*string)(&n.Channel), &n.Recipient, &n.Subject,
			&n.Body, &n.DedupeKey, (*string)(&n.Status), &n.ScheduledAt, &n.SentAt, &n.CreatedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, &n)
	}
	return out, rows.Err()
}

func (s *Notifications) MarkSent(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE notifications SET status = 'sent', sent_at = NOW()
		WHERE id = $1`, id)
	return err
}

func (s *Notifications) MarkFailed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE notifications SET status = 'failed'
		WHERE id = $1`, id)
	return err
}

// DeleteOlderThan removes delivered and failed rows older than cutoff and
// returns how many were deleted.
func (s *Notifications) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM notifications
		WHERE status IN ('sent', 'failed') AND created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
