package pipeline

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

type JobState string

const (
	StatePending   JobState = "pending"
	StateActive    JobState = "active"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
	StateRemoved   JobState = "removed"
)

// Job is the envelope handed to exactly one handler at a time. Payload is
// opaque JSON; only the handler registered for Type interprets it.
type Job struct {
	ID          uuid.UUID
	Queue       string
	Type        string
	Payload     []byte
	MaxAttempts int

	// Mutable fields below are owned by the queue's mutex, except progress
	// which handlers update concurrently via ReportProgress.
	State       JobState
	Attempts    int
	LastError   string
	EnqueuedAt  time.Time
	ProcessedAt time.Time

	progress atomic.Int32
	queue    *Queue
}

// ReportProgress records advisory completion telemetry (0–100). The queue
// never reads it for control decisions; it is forwarded on the event sink
// so operators can watch long-running jobs.
func (j *Job) ReportProgress(pct int) {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	j.progress.Store(int32(pct))
	if j.queue != nil {
		j.queue.publish(Event{
			Kind:     EventProgress,
			Queue:    j.Queue,
			JobID:    j.ID,
			Type:     j.Type,
			Attempts: j.Attempts,
			Progress: pct,
			At:       time.Now(),
		})
	}
}

// Progress returns the last value passed to ReportProgress.
func (j *Job) Progress() int { return int(j.progress.Load()) }

// JobInfo is a point-in-time copy of a job's observable state, safe to hold
// after the queue has moved on.
type JobInfo struct {
	ID          uuid.UUID `json:"id"`
	Queue       string    `json:"queue"`
	Type        string    `json:"type"`
	State       JobState  `json:"state"`
	Attempts    int       `json:"attempts"`
	MaxAttempts int       `json:"max_attempts"`
	Progress    int       `json:"progress"`
	LastError   string    `json:"last_error,omitempty"`
	EnqueuedAt  time.Time `json:"enqueued_at"`
	ProcessedAt time.Time `json:"processed_at"`
}

func (j *Job) infoLocked() JobInfo {
	return JobInfo{
		ID:          j.ID,
		Queue:       j.Queue,
		Type:        j.Type,
		State:       j.State,
		Attempts:    j.Attempts,
		MaxAttempts: j.MaxAttempts,
		Progress:    j.Progress(),
		LastError:   j.LastError,
		EnqueuedAt:  j.EnqueuedAt,
		ProcessedAt: j.ProcessedAt,
	}
}
