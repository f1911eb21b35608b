package result

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Run statuses.
const (
	RunSucceeded   = "succeeded"
	RunRateLimited = "rate_limited"
	RunFailed      = "failed"
)

// Run records one pipeline execution.
type Run struct {
	ID         uuid.UUID
	Pipeline   string
	Input      string
	Status     string
	Rows       int
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// NewRun starts a run record for pipeline over input.
func NewRun(pipeline, input string, now time.Time) *Run {
	return &Run{ID: uuid.New(), Pipeline: pipeline, Input: input, StartedAt: now}
}

// Finish stamps the outcome of the run.
func (r *Run) Finish(rows int, status string, err error, now time.Time) {
	r.Rows = rows
	r.Status = status
	if err != nil {
		r.Error = err.Error()
	}
	r.FinishedAt = now
}

// RunRecorder persists run records.
type RunRecorder interface {
	RecordRun(ctx context.Context, r *Run) error
}
