package event

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/opencrm/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// BusStats counts deliveries since the bus was created
type BusStats struct {
	Published  int64 `json:"published"`
	Dispatched int64 `json:"dispatched"`
	Failed     int64 `json:"failed"`
	Panicked   int64 `json:"panicked"`
}

// InMemoryEventBus delivers events synchronously to the handlers registered
// for their type. A failing or panicking handler is logged and counted; the
// remaining handlers still run and the publisher never sees the error.
type InMemoryEventBus struct {
	registry *HandlerRegistry
	logger   *zap.Logger
	running  atomic.Bool

	published  atomic.Int64
	dispatched atomic.Int64
	failed     atomic.Int64
	panicked   atomic.Int64
}

// NewInMemoryEventBus creates a new in-memory event bus
func NewInMemoryEventBus(logger *zap.Logger) *InMemoryEventBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InMemoryEventBus{
		registry: NewHandlerRegistry(),
		logger:   logger.Named("event_bus"),
	}
}

// Publish delivers each event to its handlers in registration order
func (b *InMemoryEventBus) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	for _, event := range events {
		if event == nil {
			continue
		}
		b.published.Add(1)

		for _, handler := range b.registry.GetHandlers(event.EventType()) {
			b.dispatched.Add(1)
			if err := b.dispatch(ctx, handler, event); err != nil {
				b.failed.Add(1)
				b.logger.Error("event handler failed",
					zap.String("handler", fmt.Sprintf("%T", handler)),
					zap.String("event_type", event.EventType()),
					zap.String("event_id", event.EventID().String()),
					zap.String("tenant_id", event.TenantID().String()),
					zap.Error(err),
				)
			}
		}
	}
	return nil
}

// Subscribe registers a handler. Without explicit types the handler's own
// EventTypes are used; an empty list makes it a wildcard handler.
func (b *InMemoryEventBus) Subscribe(handler shared.EventHandler, eventTypes ...string) {
	if len(eventTypes) == 0 {
		eventTypes = handler.EventTypes()
	}
	b.registry.Register(handler, eventTypes...)
	b.logger.Debug("handler subscribed",
		zap.String("handler", fmt.Sprintf("%T", handler)),
		zap.Strings("event_types", eventTypes),
	)
}

// Unsubscribe removes a handler
func (b *InMemoryEventBus) Unsubscribe(handler shared.EventHandler) {
	b.registry.Unregister(handler)
}

// Start marks the bus as running
func (b *InMemoryEventBus) Start(_ context.Context) error {
	b.running.Store(true)
	b.logger.Info("event bus started", zap.Int("handlers", len(b.registry.GetAllHandlers())))
	return nil
}

// Stop marks the bus as stopped. Delivery is synchronous so nothing is in flight
// once the last Publish call has returned.
func (b *InMemoryEventBus) Stop(_ context.Context) error {
	b.running.Store(false)
	stats := b.Stats()
	b.logger.Info("event bus stopped",
		zap.Int64("published", stats.Published),
		zap.Int64("failed", stats.Failed),
	)
	return nil
}

// Running reports whether Start has been called without a matching Stop
func (b *InMemoryEventBus) Running() bool {
	return b.running.Load()
}

// Stats returns a snapshot of the delivery counters
func (b *InMemoryEventBus) Stats() BusStats {
	return BusStats{
		Published:  b.published.Load(),
		Dispatched: b.dispatched.Load(),
		Failed:     b.failed.Load(),
		Panicked:   b.panicked.Load(),
	}
}

func (b *InMemoryEventBus) dispatch(ctx context.Context, handler shared.EventHandler, event shared.DomainEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.panicked.Add(1)
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return handler.Handle(ctx, event)
}

var _ shared.EventBus = (*InMemoryEventBus)(nil)
