// Package notify emits status-change events to the notification collaborator.
// Delivery is fire-and-forget from the core's perspective: a dispatch failure
// must never roll back or delay the committed transition.
package notify

import (
	"context"
	"log/slog"
	"time"

	appmodels "licensure/internal/application/models"
	id "licensure/pkg/domain"
)

// Event is the logical notification emitted after every successful
// transition. Delivery (email, in-app) is the collaborator's concern.
type Event struct {
	ApplicationID id.ApplicationID `json:"application_id"`
	OldStatus     appmodels.Status `json:"old_status"`
	NewStatus     appmodels.Status `json:"new_status"`
	OccurredAt    time.Time        `json:"occurred_at"`
}

// Dispatcher hands an event to the notification collaborator. Implementations
// must not block the caller on delivery.
type Dispatcher interface {
	Dispatch(ctx context.Context, event Event)
}

// LogDispatcher records events to the structured log. Default when no broker
// is configured.
type LogDispatcher struct {
	logger *slog.Logger
}

func NewLogDispatcher(logger *slog.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger}
}

func (d *LogDispatcher) Dispatch(ctx context.Context, event Event) {
	d.logger.InfoContext(ctx, "application status changed",
		"application_id", event.ApplicationID.String(),
		"old_status", string(event.OldStatus),
		"new_status", string(event.NewStatus),
	)
}

// ChannelDispatcher buffers events for a Worker. The send never blocks; when
// the buffer is full the event is dropped and counted against the logger,
// preserving the fire-and-forget contract under backpressure.
type ChannelDispatcher struct {
	inbox  chan Event
	logger *slog.Logger
}

func NewChannelDispatcher(buffer int, logger *slog.Logger) *ChannelDispatcher {
	return &ChannelDispatcher{inbox: make(chan Event, buffer), logger: logger}
}

func (d *ChannelDispatcher) Dispatch(ctx context.Context, event Event) {
	select {
	case d.inbox <- event:
	default:
		d.logger.WarnContext(ctx, "notification buffer full, event dropped",
			"application_id", event.ApplicationID.String(),
			"new_status", string(event.NewStatus),
		)
	}
}

// Inbox exposes the buffered events for the Worker.
func (d *ChannelDispatcher) Inbox() <-chan Event { return d.inbox }

// Worker drains a dispatcher's inbox into a sink (typically the Kafka
// publisher), keeping delivery off the request path.
type Worker struct {
	sink  Dispatcher
	inbox <-chan Event
}

func NewWorker(sink Dispatcher, inbox <-chan Event) *Worker {
	return &Worker{sink: sink, inbox: inbox}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			w.sink.Dispatch(ctx, event)
		}
	}
}
