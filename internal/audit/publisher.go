package audit

import (
	"context"
	"log/slog"
	"time"
)

// Publisher hands events to the worker through a buffered channel without
// blocking the emitting operation. When the buffer is full the event is
// dropped and logged; losing an ops event is preferable to stalling a
// request.
type Publisher struct {
	inbox  chan Event
	logger *slog.Logger
}

// NewPublisher creates a publisher with the given buffer size.
func NewPublisher(buffer int, logger *slog.Logger) *Publisher {
	if buffer <= 0 {
		buffer = 256
	}
	return &Publisher{
		inbox:  make(chan Event, buffer),
		logger: logger,
	}
}

// Inbox is the channel the worker consumes.
func (p *Publisher) Inbox() <-chan Event {
	return p.inbox
}

// Emit enqueues an event. Never blocks; never returns an error for a full
// buffer.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case p.inbox <- event:
	default:
		if p.logger != nil {
			p.logger.WarnContext(ctx, "audit buffer full, dropping event",
				"action", event.Action,
				"tenant_id", event.TenantID,
			)
		}
	}
	return nil
}
