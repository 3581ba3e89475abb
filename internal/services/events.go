package services

import (
	"context"

	"moneymanager/internal/amqp"
	"moneymanager/internal/log"
)

// publish sends a ledger event for a committed mutation. Failures are logged
// and never reach the caller: the mutation is already durable.
func (d deps) publish(ctx context.Context, event *amqp.LedgerEvent) {
	logger := log.FromContext(ctx).WithComponent(log.ComponentAMQP)
	if d.events == nil {
		logger.DebugContext(ctx, "No event publisher configured, skipping ledger event",
			log.FieldEventType, string(event.Type))
		return
	}

	event.OccurredAt = d.now()
	if err := d.events.PublishLedgerEvent(ctx, event); err != nil {
		logger.Failure(ctx, "Failed to publish ledger event", err, log.OpPublish,
			log.NewFields().WithOwner(event.OwnerID).With(log.FieldEventType, string(event.Type)))
	}
}
