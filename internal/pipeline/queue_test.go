package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureSink records every event and exposes a channel so tests can wait
// for specific transitions without sleeping.
type captureSink struct {
	mu     sync.Mutex
	events []Event
	ch     chan Event
}

func newCaptureSink() *captureSink {
	return &captureSink{ch: make(chan Event, 1024)}
}

func (s *captureSink) Publish(e Event) {
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
	s.ch <- e
}

func (s *captureSink) waitFor(t *testing.T, kind EventKind, jobID uuid.UUID) Event {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case e := <-s.ch:
			if e.Kind == kind && (jobID == uuid.Nil || e.JobID == jobID) {
				return e
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s event", kind)
		}
	}
}

func (s *captureSink) count(kind EventKind, jobID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.events {
		if e.Kind == kind && (jobID == uuid.Nil || e.JobID == jobID) {
			n++
		}
	}
	return n
}

func testPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}
}

func TestEnqueueUnknownJobTypeFailsWithoutRetry(t *testing.T) {
	sink := newCaptureSink()
	q := NewQueue(context.Background(), "customer-messaging", testPolicy(), sink)
	q.Process("sendShippingNotification", 10, func(ctx context.Context, job *Job) error {
		return nil
	})

	id, err := q.Enqueue("sendCarrierPigeon", map[string]string{"orderId": "BR-001"})
	require.NoError(t, err, "enqueue must accept unknown types; failure is reported asynchronously")

	e := sink.waitFor(t, EventFailed, id)
	assert.ErrorIs(t, e.Err, ErrUnknownJobType)
	assert.Equal(t, 0, e.Attempts)
	assert.Zero(t, sink.count(EventRetrying, id))

	info, ok := q.Lookup(id)
	require.True(t, ok)
	assert.Equal(t, StateFailed, info.State)
}

func TestJobCompletesFirstTry(t *testing.T) {
	sink := newCaptureSink()
	q := NewQueue(context.Background(), "customer-messaging", testPolicy(), sink)

	var calls atomic.Int32
	var gotPayload map[string]string
	q.Process("sendShippingNotification", 10, func(ctx context.Context, job *Job) error {
		calls.Add(1)
		return json.Unmarshal(job.Payload, &gotPayload)
	})

	id, err := q.Enqueue("sendShippingNotification", map[string]string{
		"orderId":      "BR-001",
		"phone":        "+5511999999999",
		"trackingCode": "BR123456789",
	})
	require.NoError(t, err)

	e := sink.waitFor(t, EventCompleted, id)
	assert.Equal(t, 1, e.Attempts)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "BR123456789", gotPayload["trackingCode"])
	assert.Zero(t, sink.count(EventRetrying, id))

	info, _ := q.Lookup(id)
	assert.Equal(t, StateCompleted, info.State)
	assert.Equal(t, 100, info.Progress)
}

func TestRetryThenSucceed(t *testing.T) {
	sink := newCaptureSink()
	q := NewQueue(context.Background(), "customer-messaging", testPolicy(), sink)

	var calls atomic.Int32
	q.Process("sendShippingNotification", 10, func(ctx context.Context, job *Job) error {
		if calls.Add(1) <= 2 {
			return errors.New("gateway timeout")
		}
		return nil
	})

	id, err := q.Enqueue("sendShippingNotification", map[string]string{"orderId": "BR-001"})
	require.NoError(t, err)

	e := sink.waitFor(t, EventCompleted, id)
	assert.Equal(t, 3, e.Attempts, "attempts = failures + 1")
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 2, sink.count(EventRetrying, id))
}

func TestExhaustedRetriesFailExactlyAtMaxAttempts(t *testing.T) {
	sink := newCaptureSink()
	q := NewQueue(context.Background(), "customer-messaging", testPolicy(), sink)

	var calls atomic.Int32
	q.Process("sendShippingNotification", 10, func(ctx context.Context, job *Job) error {
		calls.Add(1)
		return errors.New("gateway down")
	})

	id, err := q.Enqueue("sendShippingNotification", map[string]string{"orderId": "BR-001"})
	require.NoError(t, err)

	e := sink.waitFor(t, EventFailed, id)
	assert.Equal(t, 3, e.Attempts)
	assert.EqualError(t, e.Err, "gateway down")

	// No fourth invocation is ever scheduled.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 2, sink.count(EventRetrying, id))

	info, _ := q.Lookup(id)
	assert.Equal(t, StateFailed, info.State)
	assert.Equal(t, "gateway down", info.LastError)
}

func TestPerJobMaxAttemptsOverride(t *testing.T) {
	sink := newCaptureSink()
	q := NewQueue(context.Background(), "tracking", testPolicy(), sink)

	var calls atomic.Int32
	q.Process("pollCarrierStatus", 2, func(ctx context.Context, job *Job) error {
		calls.Add(1)
		return errors.New("carrier unavailable")
	})

	id, err := q.Enqueue("pollCarrierStatus", map[string]string{"trackingCode": "X"},
		WithMaxAttempts(1))
	require.NoError(t, err)

	e := sink.waitFor(t, EventFailed, id)
	assert.Equal(t, 1, e.Attempts)
	assert.Equal(t, int32(1), calls.Load())
}

func TestConcurrencyCapNeverExceeded(t *testing.T) {
	const limit = 3
	const jobs = 20

	sink := newCaptureSink()
	q := NewQueue(context.Background(), "supplier-communication", testPolicy(), sink)

	var active, peak atomic.Int32
	q.Process("sendOrderToSupplier", limit, func(ctx context.Context, job *Job) error {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		active.Add(-1)
		return nil
	})

	for i := 0; i < jobs; i++ {
		_, err := q.Enqueue("sendOrderToSupplier", map[string]int{"n": i})
		require.NoError(t, err)
	}
	// Completions land in arbitrary order across the cap's slots, so wait on
	// the total count rather than on individual job IDs.
	for i := 0; i < jobs; i++ {
		sink.waitFor(t, EventCompleted, uuid.Nil)
	}

	assert.LessOrEqual(t, peak.Load(), int32(limit))
	assert.Equal(t, jobs, sink.count(EventCompleted, uuid.Nil))
}

func TestFIFOWithinType(t *testing.T) {
	sink := newCaptureSink()
	q := NewQueue(context.Background(), "order-processing", testPolicy(), sink)
	q.Pause()

	var mu sync.Mutex
	var order []int
	q.Process("processOrder", 1, Typed(func(ctx context.Context, job *Job, p struct{ N int }) error {
		mu.Lock()
		order = append(order, p.N)
		mu.Unlock()
		return nil
	}))

	var last uuid.UUID
	for i := 0; i < 10; i++ {
		id, err := q.Enqueue("processOrder", struct{ N int }{N: i})
		require.NoError(t, err)
		last = id
	}
	q.Resume()
	sink.waitFor(t, EventCompleted, last)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, order, 10)
	for i, n := range order {
		assert.Equal(t, i, n, "jobs of one type dispatch oldest-first")
	}
}

func TestPauseStopsDispatchAndResumeRestarts(t *testing.T) {
	sink := newCaptureSink()
	q := NewQueue(context.Background(), "notification", testPolicy(), sink)

	var calls atomic.Int32
	q.Process("deliverNotification", 5, func(ctx context.Context, job *Job) error {
		calls.Add(1)
		return nil
	})

	q.Pause()
	sink.waitFor(t, EventPaused, uuid.Nil)

	id, err := q.Enqueue("deliverNotification", map[string]string{"channel": "push"})
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	assert.Zero(t, calls.Load(), "paused queue must not dispatch")
	info, _ := q.Lookup(id)
	assert.Equal(t, StatePending, info.State)

	q.Resume()
	sink.waitFor(t, EventResumed, uuid.Nil)
	sink.waitFor(t, EventCompleted, id)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRemovePendingJobOnly(t *testing.T) {
	sink := newCaptureSink()
	q := NewQueue(context.Background(), "notification", testPolicy(), sink)
	q.Pause()

	started := make(chan struct{})
	release := make(chan struct{})
	q.Process("deliverNotification", 1, func(ctx context.Context, job *Job) error {
		close(started)
		<-release
		return nil
	})

	pendingID, err := q.Enqueue("deliverNotification", map[string]string{"n": "1"})
	require.NoError(t, err)

	require.NoError(t, q.Remove(pendingID))
	sink.waitFor(t, EventRemoved, pendingID)
	info, _ := q.Lookup(pendingID)
	assert.Equal(t, StateRemoved, info.State)

	q.Resume()
	activeID, err := q.Enqueue("deliverNotification", map[string]string{"n": "2"})
	require.NoError(t, err)
	<-started

	assert.Error(t, q.Remove(activeID), "started jobs cannot be removed")
	close(release)
	sink.waitFor(t, EventCompleted, activeID)

	// The removed job never ran.
	assert.Zero(t, sink.count(EventActive, pendingID))
}

func TestDrainAndCloseWaitsForInflight(t *testing.T) {
	sink := newCaptureSink()
	q := NewQueue(context.Background(), "tracking", testPolicy(), sink)

	release := make(chan struct{})
	started := make(chan struct{}, 1)
	q.Process("pollCarrierStatus", 2, func(ctx context.Context, job *Job) error {
		started <- struct{}{}
		<-release
		return nil
	})

	id, err := q.Enqueue("pollCarrierStatus", map[string]string{"trackingCode": "BR1"})
	require.NoError(t, err)
	<-started

	drainDone := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		drainDone <- q.DrainAndClose(ctx)
	}()

	time.Sleep(10 * time.Millisecond)
	select {
	case err := <-drainDone:
		t.Fatalf("drain resolved while a job was in flight: %v", err)
	default:
	}

	close(release)
	require.NoError(t, <-drainDone)
	sink.waitFor(t, EventDrained, uuid.Nil)

	info, _ := q.Lookup(id)
	assert.Equal(t, StateCompleted, info.State, "in-flight jobs reach a terminal state before drain resolves")

	_, err = q.Enqueue("pollCarrierStatus", map[string]string{"trackingCode": "BR2"})
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestDrainTimesOutOnStuckJob(t *testing.T) {
	sink := newCaptureSink()
	q := NewQueue(context.Background(), "tracking", testPolicy(), sink)

	block := make(chan struct{})
	started := make(chan struct{})
	q.Process("pollCarrierStatus", 1, func(ctx context.Context, job *Job) error {
		close(started)
		<-block
		return nil
	})

	_, err := q.Enqueue("pollCarrierStatus", map[string]string{"trackingCode": "STUCK"})
	require.NoError(t, err)
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = q.DrainAndClose(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(block)
}

func TestJobFailingDuringDrainIsFailedNotParked(t *testing.T) {
	sink := newCaptureSink()
	q := NewQueue(context.Background(), "tracking", testPolicy(), sink)

	release := make(chan struct{})
	started := make(chan struct{})
	q.Process("pollCarrierStatus", 1, func(ctx context.Context, job *Job) error {
		close(started)
		<-release
		return errors.New("carrier unavailable")
	})

	id, err := q.Enqueue("pollCarrierStatus", map[string]string{"trackingCode": "BR1"})
	require.NoError(t, err)
	<-started

	drainDone := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		drainDone <- q.DrainAndClose(ctx)
	}()

	// Once the queue refuses new work, the drain has begun.
	require.Eventually(t, func() bool {
		_, err := q.Enqueue("pollCarrierStatus", map[string]string{"trackingCode": "BR2"})
		return errors.Is(err, ErrQueueClosed)
	}, time.Second, time.Millisecond)

	close(release)
	require.NoError(t, <-drainDone)

	e := sink.waitFor(t, EventFailed, id)
	assert.Equal(t, 1, e.Attempts)
	assert.Zero(t, sink.count(EventRetrying, id))

	info, _ := q.Lookup(id)
	assert.Equal(t, StateFailed, info.State,
		"an error during the drain must fail the job, not park it pending")
}

func TestTerminalJobsEvictedAfterRetention(t *testing.T) {
	sink := newCaptureSink()
	q := NewQueue(context.Background(), "notification", testPolicy(), sink)
	q.retention = 20 * time.Millisecond

	q.Process("deliverNotification", 1, func(ctx context.Context, job *Job) error { return nil })

	id, err := q.Enqueue("deliverNotification", map[string]string{"channel": "email"})
	require.NoError(t, err)
	sink.waitFor(t, EventCompleted, id)

	_, ok := q.Lookup(id)
	assert.True(t, ok, "terminal jobs stay visible inside the retention window")

	require.Eventually(t, func() bool {
		_, ok := q.Lookup(id)
		return !ok
	}, time.Second, 5*time.Millisecond, "completed envelope ages out of the lookup map")
}

func TestProgressIsAdvisoryTelemetry(t *testing.T) {
	sink := newCaptureSink()
	q := NewQueue(context.Background(), "supplier-communication", testPolicy(), sink)

	q.Process("syncSupplierInventory", 2, func(ctx context.Context, job *Job) error {
		job.ReportProgress(25)
		job.ReportProgress(75)
		return nil
	})

	id, err := q.Enqueue("syncSupplierInventory", map[string]string{"supplierId": "S1"})
	require.NoError(t, err)
	sink.waitFor(t, EventCompleted, id)

	assert.Equal(t, 2, sink.count(EventProgress, id))
	info, _ := q.Lookup(id)
	assert.Equal(t, 100, info.Progress, "completion implies 100%")
}

func TestRetriedJobReentersAtBackOfBucket(t *testing.T) {
	sink := newCaptureSink()
	q := NewQueue(context.Background(), "order-processing", testPolicy(), sink)
	q.Pause()

	var mu sync.Mutex
	var seen []string
	failedOnce := false
	q.Process("processOrder", 1, Typed(func(ctx context.Context, job *Job, p struct{ ID string }) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, p.ID)
		if p.ID == "first" && !failedOnce {
			failedOnce = true
			return errors.New("transient")
		}
		return nil
	}))

	first, err := q.Enqueue("processOrder", struct{ ID string }{ID: "first"})
	require.NoError(t, err)
	second, err := q.Enqueue("processOrder", struct{ ID string }{ID: "second"})
	require.NoError(t, err)
	q.Resume()

	sink.waitFor(t, EventCompleted, second)
	sink.waitFor(t, EventCompleted, first)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"first", "second", "first"}, seen,
		"a retried job goes to the back, not its original position")
}

func TestStatsCountsPendingAndActive(t *testing.T) {
	sink := newCaptureSink()
	q := NewQueue(context.Background(), "notification", testPolicy(), sink)
	q.Pause()

	q.Process("deliverNotification", 1, func(ctx context.Context, job *Job) error { return nil })
	for i := 0; i < 4; i++ {
		_, err := q.Enqueue("deliverNotification", map[string]int{"n": i})
		require.NoError(t, err)
	}

	s := q.Stats()
	assert.Equal(t, "notification", s.Queue)
	assert.Equal(t, 4, s.Pending["deliverNotification"])
	assert.Zero(t, s.Active["deliverNotification"])
	assert.Equal(t, 1, s.Concurrency["deliverNotification"])
}

