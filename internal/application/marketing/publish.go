package marketing

import (
	"context"

	"github.com/opencrm/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// publisher wraps the optional event publisher of the marketing services
type publisher struct {
	eventPublisher shared.EventPublisher
}

// SetEventPublisher sets the event publisher for publishing domain events
func (p *publisher) SetEventPublisher(eventPublisher shared.EventPublisher) {
	p.eventPublisher = eventPublisher
}

// publish sends the pending events of each source and clears them
func (p *publisher) publish(ctx context.Context, sources ...shared.EventSource) {
	for _, source := range sources {
		events := source.GetDomainEvents()
		source.ClearDomainEvents()
		p.publishEvents(ctx, events...)
	}
}

// publishEvents sends events that are not held by an aggregate.
// A failure is logged and never fails the committed operation.
func (p *publisher) publishEvents(ctx context.Context, events ...shared.DomainEvent) {
	if p.eventPublisher == nil || len(events) == 0 {
		return
	}
	if err := p.eventPublisher.Publish(ctx, events...); err != nil {
		zap.L().Named("application.marketing").Error("failed to publish domain events",
			zap.String("event_type", events[0].EventType()),
			zap.String("aggregate_id", events[0].AggregateID().String()),
			zap.Int("count", len(events)),
			zap.Error(err),
		)
	}
}

func unchanged(source shared.EventSource) bool {
	return len(source.GetDomainEvents()) == 0
}
