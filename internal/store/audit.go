package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ViniMktd/FlowBot-sub001/internal/pipeline"
)

// JobEvents persists pipeline lifecycle events. Rows are the audit trail a
// failed job leaves behind: one row per attempt plus the terminal outcome.
type JobEvents struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewJobEvents(pool *pgxpool.Pool, logger *slog.Logger) *JobEvents {
	return &JobEvents{pool: pool, logger: logger}
}

// Publish implements pipeline.Sink. Write failures are logged and dropped —
// the job's state transition has already happened and losing one audit row
// is non-fatal.
func (s *JobEvents) Publish(e pipeline.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	errMsg := ""
	if e.Err != nil {
		errMsg = e.Err.Error()
	}
	var jobID any
	if e.JobID != uuid.Nil {
		jobID = e.JobID
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO job_events
			(queue, job_id, job_type, kind, attempts, progress, error, elapsed_ms, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.Queue, jobID, e.Type, string(e.Kind), e.Attempts, e.Progress,
		errMsg, e.Elapsed.Milliseconds(), e.At)
	if err != nil {
		s.logger.Error("job event write failed",
			"queue", e.Queue, "kind", e.Kind, "job_id", e.JobID, "err", err)
	}
}
