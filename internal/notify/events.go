package notify

import (
	"context"

	"github.com/Gustavofrb/relatorio-mensal/internal/amqp"
	"github.com/Gustavofrb/relatorio-mensal/internal/core"
)

// EventPublisher is the part of the AMQP client the event notifier needs.
type EventPublisher interface {
	PublishClosingEvent(ctx context.Context, ev amqp.ClosingEvent) error
}

// EventNotifier publishes a closing event for every run outcome.
type EventNotifier struct {
	publisher EventPublisher
}

func NewEventNotifier(publisher EventPublisher) *EventNotifier {
	return &EventNotifier{publisher: publisher}
}

func (e *EventNotifier) Success(ctx context.Context, report core.RunReport) error {
	return e.publisher.PublishClosingEvent(ctx, amqp.SucceededEvent(report))
}

func (e *EventNotifier) Failure(ctx context.Context, month string, runErr error) error {
	return e.publisher.PublishClosingEvent(ctx, amqp.FailedEvent(month, runErr))
}

// Summary is a no-op; the success event already carries the stats.
func (e *EventNotifier) Summary(context.Context, core.RunReport) error {
	return nil
}
