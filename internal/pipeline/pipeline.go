package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is the shutdown coordinator's phase. Transitions are one-way:
// Running -> Draining -> Closed, with Closed entered exactly once.
type State string

const (
	StateRunning  State = "running"
	StateDraining State = "draining"
	StateClosed   State = "closed"
)

// Enqueuer is the narrow surface handlers and HTTP routes use to submit
// jobs. *Pipeline implements it; tests substitute a recorder.
type Enqueuer interface {
	Enqueue(queue, jobType string, payload any) (uuid.UUID, error)
}

// Config assembles a Pipeline.
type Config struct {
	// Queues lists the queue names to create, in creation order.
	Queues []string
	// Retry applies to every queue; per-job overrides go through
	// WithMaxAttempts at enqueue time.
	Retry RetryPolicy
	// Sink receives every lifecycle event from every queue.
	Sink Sink
	// DrainTimeout bounds Shutdown. Zero means 30 seconds.
	DrainTimeout time.Duration
}

// Pipeline owns the process's queues and the shutdown coordinator. Build one
// at startup and pass it by reference to anything that needs to enqueue —
// there are deliberately no package-level singletons.
type Pipeline struct {
	queues map[string]*Queue
	order  []string
	sink   Sink

	drainTimeout time.Duration

	mu        sync.Mutex
	state     State
	closeOnce sync.Once
	closeErr  error
}

// New creates the pipeline and its queues. ctx is handed to every handler
// invocation; canceling it does not abort in-flight jobs.
func New(ctx context.Context, cfg Config) *Pipeline {
	if cfg.Sink == nil {
		cfg.Sink = nopSink{}
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 30 * time.Second
	}
	p := &Pipeline{
		queues:       make(map[string]*Queue, len(cfg.Queues)),
		order:        append([]string(nil), cfg.Queues...),
		sink:         cfg.Sink,
		drainTimeout: cfg.DrainTimeout,
		state:        StateRunning,
	}
	for _, name := range cfg.Queues {
		p.queues[name] = NewQueue(ctx, name, cfg.Retry, cfg.Sink)
	}
	return p
}

// Queue returns a queue by name, or nil when the name was not configured.
func (p *Pipeline) Queue(name string) *Queue { return p.queues[name] }

// QueueNames returns the configured queue names in creation order.
func (p *Pipeline) QueueNames() []string { return append([]string(nil), p.order...) }

// Enqueue submits a job to a named queue. Fire-and-forget: success means the
// envelope was accepted, not that processing will succeed.
func (p *Pipeline) Enqueue(queue, jobType string, payload any) (uuid.UUID, error) {
	q, ok := p.queues[queue]
	if !ok {
		return uuid.Nil, fmt.Errorf("unknown queue %q", queue)
	}
	return q.Enqueue(jobType, payload)
}

// Lookup finds a job snapshot across a named queue.
func (p *Pipeline) Lookup(queue string, id uuid.UUID) (JobInfo, bool) {
	q, ok := p.queues[queue]
	if !ok {
		return JobInfo{}, false
	}
	return q.Lookup(id)
}

// State reports the coordinator phase.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Shutdown drains every queue: dispatch stops immediately, in-flight jobs
// run to completion, and after the drain timeout the pipeline closes anyway
// so the process never hangs on a stuck job. Safe to call more than once;
// later calls return the first result.
func (p *Pipeline) Shutdown(ctx context.Context) error {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.state = StateDraining
		p.mu.Unlock()

		for _, name := range p.order {
			p.queues[name].Pause()
		}

		drainCtx, cancel := context.WithTimeout(ctx, p.drainTimeout)
		defer cancel()

		var wg sync.WaitGroup
		errs := make([]error, len(p.order))
		for i, name := range p.order {
			wg.Add(1)
			go func(i int, q *Queue) {
				defer wg.Done()
				errs[i] = q.DrainAndClose(drainCtx)
			}(i, p.queues[name])
		}
		wg.Wait()

		p.mu.Lock()
		p.state = StateClosed
		p.mu.Unlock()

		p.closeErr = errors.Join(errs...)
	})
	return p.closeErr
}
