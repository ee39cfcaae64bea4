package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ViniMktd/FlowBot-sub001/internal/domain"
	"github.com/ViniMktd/FlowBot-sub001/internal/pipeline"
)

type fakeStore struct {
	mu      sync.Mutex
	rows    map[uuid.UUID]*domain.Notification
	due     []*domain.Notification
	deleted time.Time
	pruned  int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: map[uuid.UUID]*domain.Notification{}}
}

func (f *fakeStore) Insert(_ context.Context, n *domain.Notification) (uuid.UUID, domain.NotificationStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n.DedupeKey != "" {
		for _, row := range f.rows {
			if row.DedupeKey == n.DedupeKey {
				return row.ID, row.Status, nil
			}
		}
	}
	row := *n
	row.ID = uuid.New()
	row.Status = domain.NotificationPending
	f.rows[row.ID] = &row
	return row.ID, row.Status, nil
}

func (f *fakeStore) ListDue(_ context.Context, limit int) ([]*domain.Notification, error) {
	if len(f.due) > limit {
		return f.due[:limit], nil
	}
	return f.due, nil
}

func (f *fakeStore) MarkSent(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if row, ok := f.rows[id]; ok {
		row.Status = domain.NotificationSent
	}
	return nil
}

func (f *fakeStore) MarkFailed(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if row, ok := f.rows[id]; ok {
		row.Status = domain.NotificationFailed
	}
	return nil
}

func (f *fakeStore) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	f.deleted = cutoff
	return f.pruned, nil
}

type delivery struct {
	Channel   domain.NotificationChannel
	Recipient string
	Subject   string
}

type recordingSender struct {
	mu        sync.Mutex
	channel   domain.NotificationChannel
	delivered *[]delivery
	err       error
}

func (r *recordingSender) Send(_ context.Context, recipient, subject, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	*r.delivered = append(*r.delivered, delivery{r.channel, recipient, subject})
	return nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func runJob(t *testing.T, h pipeline.Handler, payload any) error {
	t.Helper()
	b, err := json.Marshal(payload)
	require.NoError(t, err)
	return h(context.Background(), &pipeline.Job{ID: uuid.New(), Payload: b})
}

func testService(store *fakeStore) (*Service, *[]delivery, *recordingSender) {
	delivered := &[]delivery{}
	email := &recordingSender{channel: domain.ChannelEmail, delivered: delivered}
	senders := Registry{
		domain.ChannelEmail: email,
		domain.ChannelPush:  &recordingSender{channel: domain.ChannelPush, delivered: delivered},
		domain.ChannelSMS:   &recordingSender{channel: domain.ChannelSMS, delivered: delivered},
	}
	return NewService(store, senders, 50, 30, discard()), delivered, email
}

func TestDeliverNotificationPersistsThenSends(t *testing.T) {
	store := newFakeStore()
	svc, delivered, _ := testService(store)

	err := runJob(t, svc.DeliverNotification(), domain.DeliverNotificationPayload{
		Channel:   domain.ChannelEmail,
		Recipient: "ops@flowbot.com.br",
		Subject:   "Supplier alert",
		Body:      "confirmation rate below threshold",
	})
	require.NoError(t, err)

	require.Len(t, *delivered, 1)
	assert.Equal(t, "ops@flowbot.com.br", (*delivered)[0].Recipient)

	require.Len(t, store.rows, 1)
	for _, row := range store.rows {
		assert.Equal(t, domain.NotificationSent, row.Status)
	}
}

// A failed send leaves the persisted row pending so the batch worker can
// pick it up; the job error drives the queue retry.
func TestDeliverNotificationFailureLeavesRowPending(t *testing.T) {
	store := newFakeStore()
	svc, _, email := testService(store)
	email.err = errors.New("smtp down")

	err := runJob(t, svc.DeliverNotification(), domain.DeliverNotificationPayload{
		Channel:   domain.ChannelEmail,
		Recipient: "ops@flowbot.com.br",
		Body:      "x",
	})
	require.Error(t, err)

	require.Len(t, store.rows, 1)
	for _, row := range store.rows {
		assert.Equal(t, domain.NotificationPending, row.Status)
	}
}

// A retried delivery job must not insert a second row, and must not send
// again if the batch worker delivered the pending row between attempts.
func TestRetriedDeliveryUpsertsRowAndSkipsSentOnes(t *testing.T) {
	store := newFakeStore()
	svc, delivered, email := testService(store)

	b, err := json.Marshal(domain.DeliverNotificationPayload{
		Channel:   domain.ChannelEmail,
		Recipient: "ops@flowbot.com.br",
		Subject:   "Supplier alert",
		Body:      "confirmation rate below threshold",
	})
	require.NoError(t, err)
	job := &pipeline.Job{ID: uuid.New(), Payload: b}

	email.err = errors.New("smtp down")
	require.Error(t, svc.DeliverNotification()(context.Background(), job))
	require.Len(t, store.rows, 1)

	// The batch worker picks the pending row up before the retry fires.
	email.err = nil
	var id uuid.UUID
	for _, row := range store.rows {
		id = row.ID
	}
	require.NoError(t, store.MarkSent(context.Background(), id))

	require.NoError(t, svc.DeliverNotification()(context.Background(), job))

	assert.Len(t, store.rows, 1, "retry upserts onto the first attempt's row")
	assert.Empty(t, *delivered, "already-sent rows are not delivered twice")
}

func TestDeliverNotificationUnknownChannel(t *testing.T) {
	svc := NewService(newFakeStore(), Registry{}, 50, 30, discard())
	err := runJob(t, svc.DeliverNotification(), domain.DeliverNotificationPayload{
		Channel:   "carrier_pigeon",
		Recipient: "x",
	})
	assert.ErrorContains(t, err, "no sender registered")
}

func TestDeliverBatchMixedResults(t *testing.T) {
	store := newFakeStore()
	svc, delivered, email := testService(store)

	good := &domain.Notification{Channel: domain.ChannelSMS, Recipient: "+5511988887777", Body: "hi"}
	bad := &domain.Notification{Channel: domain.ChannelEmail, Recipient: "ops@flowbot.com.br", Body: "hi"}
	goodID, _, _ := store.Insert(context.Background(), good)
	badID, _, _ := store.Insert(context.Background(), bad)
	store.due = []*domain.Notification{store.rows[goodID], store.rows[badID]}
	email.err = errors.New("smtp down")

	err := runJob(t, svc.DeliverBatch(), domain.DeliverBatchPayload{})
	require.NoError(t, err, "individual send failures do not fail the batch")

	assert.Len(t, *delivered, 1)
	assert.Equal(t, domain.NotificationSent, store.rows[goodID].Status)
	assert.Equal(t, domain.NotificationFailed, store.rows[badID].Status)
}

func TestDeliverBatchHonorsLimit(t *testing.T) {
	store := newFakeStore()
	svc, delivered, _ := testService(store)

	for i := 0; i < 5; i++ {
		n := &domain.Notification{Channel: domain.ChannelPush, Recipient: "user", Body: "n"}
		id, _, _ := store.Insert(context.Background(), n)
		store.due = append(store.due, store.rows[id])
	}

	err := runJob(t, svc.DeliverBatch(), domain.DeliverBatchPayload{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, *delivered, 2)
}

func TestDeliverBatchEmptyIsANoop(t *testing.T) {
	store := newFakeStore()
	svc, delivered, _ := testService(store)
	require.NoError(t, runJob(t, svc.DeliverBatch(), domain.DeliverBatchPayload{}))
	assert.Empty(t, *delivered)
}

func TestCleanupNotificationsUsesRetention(t *testing.T) {
	store := newFakeStore()
	store.pruned = 7
	svc, _, _ := testService(store)

	err := runJob(t, svc.CleanupNotifications(), domain.CleanupNotificationsPayload{})
	require.NoError(t, err)

	wantCutoff := time.Now().Add(-30 * 24 * time.Hour)
	assert.WithinDuration(t, wantCutoff, store.deleted, time.Minute)
}

func TestCleanupNotificationsPayloadOverride(t *testing.T) {
	store := newFakeStore()
	svc, _, _ := testService(store)

	err := runJob(t, svc.CleanupNotifications(),
		domain.CleanupNotificationsPayload{RetentionDays: 7})
	require.NoError(t, err)

	wantCutoff := time.Now().Add(-7 * 24 * time.Hour)
	assert.WithinDuration(t, wantCutoff, store.deleted, time.Minute)
}
