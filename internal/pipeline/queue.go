package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrUnknownJobType is carried by the failed event of a job whose type
	// has no registered handler. Such jobs are never retried.
	ErrUnknownJobType = errors.New("unknown job type")

	// ErrQueueClosed is returned by Enqueue after DrainAndClose has begun.
	ErrQueueClosed = errors.New("queue closed")
)

// Handler is the function signature every job handler must implement.
// A non-nil error hands the retry decision back to the queue; handlers must
// never swallow a collaborator failure and return nil.
type Handler func(ctx context.Context, job *Job) error

// RetryPolicy controls how a queue re-runs failed jobs. Delay before the
// n-th retry is BaseDelay * n (linear), so a job that keeps failing backs
// off gradually without the queue tracking per-job schedules.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultRetryPolicy matches the original deployment: three executions with
// a five second base delay.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: 5 * time.Second}
}

type workerSlot struct {
	handler     Handler
	concurrency int
	active      int
}

// terminalRetention is how long completed, failed, and removed envelopes
// stay visible to Lookup before they are evicted. The durable history is the
// event sink's audit trail; the in-memory map must not grow with uptime.
const terminalRetention = 30 * time.Minute

// Queue buffers job envelopes for one business domain and dispatches them to
// registered handlers subject to per-type concurrency caps.
//
// FIFO within a (queue, type) bucket is best-effort only: retried jobs
// re-enter at the back, and types dispatch independently of each other.
type Queue struct {
	name      string
	policy    RetryPolicy
	sink      Sink
	ctx       context.Context
	retention time.Duration

	mu       sync.Mutex
	slots    map[string]*workerSlot
	pending  map[string][]*Job
	jobs     map[uuid.UUID]*Job
	timers   map[uuid.UUID]*time.Timer
	paused   bool
	draining bool
	inflight sync.WaitGroup
}

// NewQueue creates a queue. ctx is the process context handed to handlers;
// it is not used to cancel in-flight jobs — once a handler starts it runs to
// completion or failure.
func NewQueue(ctx context.Context, name string, policy RetryPolicy, sink Sink) *Queue {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = DefaultRetryPolicy().MaxAttempts
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = DefaultRetryPolicy().BaseDelay
	}
	if sink == nil {
		sink = nopSink{}
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return &Queue{
		name:      name,
		policy:    policy,
		sink:      sink,
		ctx:       ctx,
		retention: terminalRetention,
		slots:     make(map[string]*workerSlot),
		pending:   make(map[string][]*Job),
		jobs:      make(map[uuid.UUID]*Job),
		timers:    make(map[uuid.UUID]*time.Timer),
	}
}

func (q *Queue) Name() string { return q.name }

// Process registers a handler for jobType with at most concurrency jobs of
// that type in flight at once. Call during startup, before jobs of the type
// are dispatched; registrations are never mutated afterwards.
func (q *Queue) Process(jobType string, concurrency int, h Handler) {
	if concurrency <= 0 {
		concurrency = 1
	}
	q.mu.Lock()
	q.slots[jobType] = &workerSlot{handler: h, concurrency: concurrency}
	q.dispatchLocked()
	q.mu.Unlock()
}

// EnqueueOption adjusts a single submission.
type EnqueueOption func(*Job)

// WithMaxAttempts overrides the queue retry policy for one job.
func WithMaxAttempts(n int) EnqueueOption {
	return func(j *Job) {
		if n > 0 {
			j.MaxAttempts = n
		}
	}
}

// Enqueue accepts a job synchronously and returns its ID. payload is JSON
// encoded into the envelope; acceptance says nothing about eventual
// processing success — callers treat this as fire-and-forget.
func (q *Queue) Enqueue(jobType string, payload any, opts ...EnqueueOption) (uuid.UUID, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return uuid.Nil, fmt.Errorf("encode %s payload: %w", jobType, err)
	}

	job := &Job{
		ID:          uuid.New(),
		Queue:       q.name,
		Type:        jobType,
		Payload:     body,
		MaxAttempts: q.policy.MaxAttempts,
		State:       StatePending,
		EnqueuedAt:  time.Now(),
		queue:       q,
	}
	for _, opt := range opts {
		opt(job)
	}

	q.mu.Lock()
	if q.draining {
		q.mu.Unlock()
		return uuid.Nil, ErrQueueClosed
	}
	q.jobs[job.ID] = job
	q.pending[jobType] = append(q.pending[jobType], job)
	q.dispatchLocked()
	q.mu.Unlock()

	return job.ID, nil
}

// Lookup returns a snapshot of a job previously accepted by this queue.
func (q *Queue) Lookup(id uuid.UUID) (JobInfo, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[id]
	if !ok {
		return JobInfo{}, false
	}
	return job.infoLocked(), true
}

// Remove drops a job that has not started yet. Active and finished jobs
// cannot be removed — there is no mid-flight cancellation.
func (q *Queue) Remove(id uuid.UUID) error {
	q.mu.Lock()
	job, ok := q.jobs[id]
	if !ok {
		q.mu.Unlock()
		return fmt.Errorf("job %s not found", id)
	}
	if job.State != StatePending {
		q.mu.Unlock()
		return fmt.Errorf("job %s is %s, only pending jobs can be removed", id, job.State)
	}
	job.State = StateRemoved
	bucket := q.pending[job.Type]
	for i, p := range bucket {
		if p.ID == id {
			q.pending[job.Type] = append(bucket[:i], bucket[i+1:]...)
			break
		}
	}
	if t, ok := q.timers[id]; ok {
		t.Stop()
		delete(q.timers, id)
	}
	q.mu.Unlock()

	q.evictAfterRetention(id)
	q.publish(Event{
		Kind: EventRemoved, Queue: q.name,
		JobID: id, Type: job.Type, At: time.Now(),
	})
	return nil
}

// Pause stops dispatching pending jobs. In-flight jobs finish normally.
func (q *Queue) Pause() {
	q.mu.Lock()
	was := q.paused
	q.paused = true
	q.mu.Unlock()
	if !was {
		q.publish(Event{Kind: EventPaused, Queue: q.name, At: time.Now()})
	}
}

// Resume restarts dispatching after Pause.
func (q *Queue) Resume() {
	q.mu.Lock()
	if q.draining {
		q.mu.Unlock()
		return
	}
	was := q.paused
	q.paused = false
	q.dispatchLocked()
	q.mu.Unlock()
	if was {
		q.publish(Event{Kind: EventResumed, Queue: q.name, At: time.Now()})
	}
}

// DrainAndClose pauses dispatch, waits for every in-flight job to reach a
// terminal state, then releases resources. Further Enqueue calls fail with
// ErrQueueClosed. An in-flight job that errors during the drain is failed
// outright rather than parked for a retry that would never run. Pending jobs
// that had not started are left undispatched; durability across restarts
// belongs to the backing store, not this queue.
func (q *Queue) DrainAndClose(ctx context.Context) error {
	q.mu.Lock()
	if q.draining {
		q.mu.Unlock()
		return nil
	}
	q.paused = true
	q.draining = true
	for id, t := range q.timers {
		t.Stop()
		delete(q.timers, id)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.publish(Event{Kind: EventDrained, Queue: q.name, At: time.Now()})
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain %s: %w", q.name, ctx.Err())
	}
}

// Stats reports pending and active counts per job type, plus the
// registered concurrency cap per type.
type Stats struct {
	Queue       string         `json:"queue"`
	Pending     map[string]int `json:"pending"`
	Active      map[string]int `json:"active"`
	Concurrency map[string]int `json:"concurrency"`
}

func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	s := Stats{
		Queue:       q.name,
		Pending:     make(map[string]int),
		Active:      make(map[string]int),
		Concurrency: make(map[string]int),
	}
	for typ, bucket := range q.pending {
		if len(bucket) > 0 {
			s.Pending[typ] = len(bucket)
		}
	}
	for typ, slot := range q.slots {
		if slot.active > 0 {
			s.Active[typ] = slot.active
		}
		s.Concurrency[typ] = slot.concurrency
	}
	return s
}

// dispatchLocked starts as many pending jobs as free concurrency slots
// allow. Jobs for types with no registered handler fail immediately —
// nothing will ever pick them up. Caller holds q.mu.
func (q *Queue) dispatchLocked() {
	if q.paused || q.draining {
		return
	}
	for typ, bucket := range q.pending {
		slot, ok := q.slots[typ]
		if !ok {
			for _, job := range bucket {
				job.State = StateFailed
				job.LastError = ErrUnknownJobType.Error()
				q.evictAfterRetention(job.ID)
				q.publishAsync(Event{
					Kind: EventFailed, Queue: q.name,
					JobID: job.ID, Type: typ, Attempts: job.Attempts,
					Err: fmt.Errorf("%w: %q", ErrUnknownJobType, typ),
					At:  time.Now(),
				})
			}
			q.pending[typ] = nil
			continue
		}
		for len(bucket) > 0 && slot.active < slot.concurrency {
			job := bucket[0]
			bucket = bucket[1:]
			q.startLocked(job, slot)
		}
		q.pending[typ] = bucket
	}
}

func (q *Queue) startLocked(job *Job, slot *workerSlot) {
	job.State = StateActive
	job.Attempts++
	job.ProcessedAt = time.Now()
	slot.active++
	q.inflight.Add(1)
	go q.run(job, slot)
}

func (q *Queue) run(job *Job, slot *workerSlot) {
	defer q.inflight.Done()

	started := time.Now()
	q.publish(Event{
		Kind: EventActive, Queue: q.name,
		JobID: job.ID, Type: job.Type, Attempts: job.Attempts,
		At: started,
	})

	err := slot.handler(q.ctx, job)
	elapsed := time.Since(started)

	q.mu.Lock()
	slot.active--
	var out Event
	switch {
	case err == nil:
		job.State = StateCompleted
		job.progress.Store(100)
		out = Event{
			Kind: EventCompleted, Queue: q.name,
			JobID: job.ID, Type: job.Type, Attempts: job.Attempts,
			Progress: 100, Elapsed: elapsed, At: time.Now(),
		}
	case job.Attempts < job.MaxAttempts && !q.draining:
		job.State = StatePending
		job.LastError = err.Error()
		q.scheduleRetryLocked(job)
		out = Event{
			Kind: EventRetrying, Queue: q.name,
			JobID: job.ID, Type: job.Type, Attempts: job.Attempts,
			Err: err, Elapsed: elapsed, At: time.Now(),
		}
	default:
		job.State = StateFailed
		job.LastError = err.Error()
		out = Event{
			Kind: EventFailed, Queue: q.name,
			JobID: job.ID, Type: job.Type, Attempts: job.Attempts,
			Err: err, Elapsed: elapsed, At: time.Now(),
		}
	}
	q.dispatchLocked()
	terminal := job.State == StateCompleted || job.State == StateFailed
	q.mu.Unlock()

	if terminal {
		q.evictAfterRetention(job.ID)
	}
	q.publish(out)
}

// scheduleRetryLocked parks a failed job until its linear backoff window
// elapses, then appends it to the back of its type bucket. Caller holds q.mu.
func (q *Queue) scheduleRetryLocked(job *Job) {
	if q.draining {
		return
	}
	delay := q.policy.BaseDelay * time.Duration(job.Attempts)
	q.timers[job.ID] = time.AfterFunc(delay, func() {
		q.mu.Lock()
		delete(q.timers, job.ID)
		if q.draining || job.State != StatePending {
			q.mu.Unlock()
			return
		}
		q.pending[job.Type] = append(q.pending[job.Type], job)
		q.dispatchLocked()
		q.mu.Unlock()
	})
}

// evictAfterRetention drops a terminal envelope from the lookup map once the
// retention window passes. A job that was re-enqueued under the same id in
// the meantime is left alone.
func (q *Queue) evictAfterRetention(id uuid.UUID) {
	time.AfterFunc(q.retention, func() {
		q.mu.Lock()
		if job, ok := q.jobs[id]; ok &&
			job.State != StatePending && job.State != StateActive {
			delete(q.jobs, id)
		}
		q.mu.Unlock()
	})
}

func (q *Queue) publish(e Event) { q.sink.Publish(e) }

// publishAsync defers sink delivery off the dispatch path. Used where the
// caller holds q.mu and the sink must not observe the lock held.
func (q *Queue) publishAsync(e Event) { go q.sink.Publish(e) }
