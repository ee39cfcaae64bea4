package dispatch

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/ViniMktd/FlowBot-sub001/internal/pipeline"
)

// LogSink reports every lifecycle event as a structured log line. Failures
// log at ERROR, retries at WARN, everything else at DEBUG to keep the steady
// state quiet.
func LogSink(logger *slog.Logger) pipeline.Sink {
	return pipeline.SinkFunc(func(e pipeline.Event) {
		attrs := []any{"queue", e.Queue, "event", string(e.Kind)}
		if e.JobID != uuid.Nil {
			attrs = append(attrs, "job_id", e.JobID, "type", e.Type, "attempts", e.Attempts)
		}
		if e.Kind == pipeline.EventProgress {
			attrs = append(attrs, "progress", e.Progress)
		}
		if e.Elapsed > 0 {
			attrs = append(attrs, "elapsed", e.Elapsed)
		}
		switch e.Kind {
		case pipeline.EventFailed:
			logger.Error("job failed", append(attrs, "err", e.Err)...)
		case pipeline.EventRetrying:
			logger.Warn("job retrying", append(attrs, "err", e.Err)...)
		case pipeline.EventCompleted:
			logger.Info("job completed", attrs...)
		default:
			logger.Debug("queue event", attrs...)
		}
	})
}
