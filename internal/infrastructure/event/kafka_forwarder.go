package event

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/opencrm/backend/internal/domain/shared"
	"github.com/opencrm/backend/internal/infrastructure/config"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Kafka message header names
const (
	HeaderEventType     = "event_type"
	HeaderTenantID      = "tenant_id"
	HeaderAggregateType = "aggregate_type"
)

// messageWriter is the subset of *kafka.Writer the forwarder needs
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaWriter builds a writer that hashes keys so all events of one
// aggregate land on the same partition in order
func NewKafkaWriter(cfg config.KafkaConfig) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: cfg.BatchTimeout,
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafka.RequireOne,
		Transport:    &kafka.Transport{ClientID: cfg.ClientID},
	}
}

// KafkaForwarder is a bus handler that exports domain events as integration
// events. It subscribes as a wildcard unless event types are given.
type KafkaForwarder struct {
	writer     messageWriter
	serializer *EventSerializer
	eventTypes []string
	logger     *zap.Logger

	forwarded atomic.Int64
	failed    atomic.Int64
}

// NewKafkaForwarder creates a forwarder on the given writer
func NewKafkaForwarder(writer messageWriter, serializer *EventSerializer, logger *zap.Logger, eventTypes ...string) *KafkaForwarder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaForwarder{
		writer:     writer,
		serializer: serializer,
		eventTypes: eventTypes,
		logger:     logger.Named("kafka_forwarder"),
	}
}

// EventTypes returns the forwarded types; empty means every event
func (f *KafkaForwarder) EventTypes() []string {
	return f.eventTypes
}

// Handle writes the event keyed by aggregate ID
func (f *KafkaForwarder) Handle(ctx context.Context, event shared.DomainEvent) error {
	value, err := f.serializer.Encode(event)
	if err != nil {
		f.failed.Add(1)
		return err
	}

	msg := kafka.Message{
		Key:   []byte(event.AggregateID().String()),
		Value: value,
		Time:  event.OccurredAt(),
		Headers: []kafka.Header{
			{Key: HeaderEventType, Value: []byte(event.EventType())},
			{Key: HeaderTenantID, Value: []byte(event.TenantID().String())},
			{Key: HeaderAggregateType, Value: []byte(event.AggregateType())},
		},
	}
	if err := f.writer.WriteMessages(ctx, msg); err != nil {
		f.failed.Add(1)
		return fmt.Errorf("forward %s %s: %w", event.EventType(), event.EventID(), err)
	}

	f.forwarded.Add(1)
	f.logger.Debug("event forwarded",
		zap.String("event_type", event.EventType()),
		zap.String("event_id", event.EventID().String()),
	)
	return nil
}

// Stats returns the forwarded and failed counts
func (f *KafkaForwarder) Stats() (forwarded, failed int64) {
	return f.forwarded.Load(), f.failed.Load()
}

// Close flushes and closes the writer
func (f *KafkaForwarder) Close() error {
	if err := f.writer.Close(); err != nil {
		return fmt.Errorf("close kafka writer: %w", err)
	}
	return nil
}

var _ shared.EventHandler = (*KafkaForwarder)(nil)
