package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
)

// Typed wraps a strongly typed handler so each job type declares the one
// payload shape it accepts. Decode failures count as handler errors and go
// through the normal retry path — the queue itself performs no schema
// validation.
func Typed[P any](fn func(ctx context.Context, job *Job, payload P) error) Handler {
	return func(ctx context.Context, job *Job) error {
		var p P
		if err := json.Unmarshal(job.Payload, &p); err != nil {
			return fmt.Errorf("decode %s payload: %w", job.Type, err)
		}
		return fn(ctx, job, p)
	}
}
