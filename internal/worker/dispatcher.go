// Package worker consumes ledger events from AMQP and fans them out to the
// configured sinks.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"hucha/internal/events"
)

// Notifier pushes a human-readable rendering of the event somewhere.
type Notifier interface {
	Notify(ctx context.Context, ev events.Event) error
}

// Exporter records the event in an external archive.
type Exporter interface {
	Export(ctx context.Context, ev events.Event) error
}

// Dispatcher routes consumed events to the sinks. Either sink may be nil
// when not configured.
type Dispatcher struct {
	notifier Notifier
	exporter Exporter
}

func NewDispatcher(notifier Notifier, exporter Exporter) *Dispatcher {
	return &Dispatcher{notifier: notifier, exporter: exporter}
}

// Handle processes one event. A notifier failure is logged but does not fail
// the delivery; an exporter failure does, so the message is requeued and the
// archive stays complete.
func (d *Dispatcher) Handle(ctx context.Context, ev events.Event) error {
	slog.InfoContext(ctx, "Processing event",
		"type", ev.Type,
		"owner_id", ev.OwnerID,
		"movement_id", ev.MovementID,
		"goal_id", ev.GoalID)

	if d.notifier != nil {
		if err := d.notifier.Notify(ctx, ev); err != nil {
			slog.ErrorContext(ctx, "Notification failed",
				"type", ev.Type,
				"error", err)
		}
	}

	if d.exporter != nil {
		if err := d.exporter.Export(ctx, ev); err != nil {
			return fmt.Errorf("export event: %w", err)
		}
	}

	return nil
}
