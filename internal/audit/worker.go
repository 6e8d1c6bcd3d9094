package audit

import (
	"context"
	"log/slog"
)

// Worker consumes audit events from a channel and persists them. Sink
// failures are logged and skipped; the worker only stops on context
// cancellation.
type Worker struct {
	store  Store
	inbox  <-chan Event
	logger *slog.Logger
}

func NewWorker(store Store, inbox <-chan Event, logger *slog.Logger) *Worker {
	return &Worker{store: store, inbox: inbox, logger: logger}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.store.Append(ctx, event); err != nil && w.logger != nil {
				w.logger.ErrorContext(ctx, "failed to persist audit event",
					"action", event.Action,
					"tenant_id", event.TenantID,
					"error", err,
				)
			}
		}
	}
}
