package crm

import (
	"context"

	"github.com/opencrm/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// publisher wraps the optional event publisher shared by the CRM services
type publisher struct {
	eventPublisher shared.EventPublisher
}

// SetEventPublisher sets the event publisher for publishing domain events
func (p *publisher) SetEventPublisher(eventPublisher shared.EventPublisher) {
	p.eventPublisher = eventPublisher
}

// publish sends the pending events of each source and clears them.
// A publish failure is logged and never fails the operation that already committed.
func (p *publisher) publish(ctx context.Context, sources ...shared.EventSource) {
	for _, source := range sources {
		events := source.GetDomainEvents()
		source.ClearDomainEvents()
		if p.eventPublisher == nil || len(events) == 0 {
			continue
		}
		if err := p.eventPublisher.Publish(ctx, events...); err != nil {
			zap.L().Named("application.crm").Error("failed to publish domain events",
				zap.String("event_type", events[0].EventType()),
				zap.String("aggregate_id", events[0].AggregateID().String()),
				zap.Int("count", len(events)),
				zap.Error(err),
			)
		}
	}
}

// unchanged reports whether a mutation left nothing to persist
func unchanged(source shared.EventSource) bool {
	return len(source.GetDomainEvents()) == 0
}
