package ledger

import (
	"context"
	"log/slog"

	"hucha/internal/events"
)

// Service orchestrates ledger operations against the store and publishes
// lifecycle events after commit.
type Service struct {
	store Store
	pub   Publisher
}

func NewService(store Store, pub Publisher) *Service {
	return &Service{
		store: store,
		pub:   pub,
	}
}

// publish emits an event without failing the caller. The mutation has
// already committed; a broker outage must not turn it into an error.
func (s *Service) publish(ctx context.Context, ev events.Event) {
	if s.pub == nil {
		return
	}
	if err := s.pub.Publish(ctx, ev); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"type", ev.Type,
			"owner_id", ev.OwnerID,
			"error", err)
	}
}
