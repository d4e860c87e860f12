package river

import (
	"context"
	"log/slog"

	"github.com/riverqueue/river"
)

// EventWorker processes lifecycle event jobs from the River queue.
// For now it logs the event; future versions will dispatch partner webhooks
// and settlement notifications.
type EventWorker struct {
	river.WorkerDefaults[EventJobArgs]
}

// Work processes a single event job.
func (w *EventWorker) Work(ctx context.Context, job *river.Job[EventJobArgs]) error {
	slog.InfoContext(ctx, "processing lifecycle event",
		"event", job.Args.Event,
		"account_id", job.Args.AccountID,
		"domain", job.Args.Domain,
		"job_id", job.ID,
		"attempt", job.Attempt,
	)
	return nil
}
