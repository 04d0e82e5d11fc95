package event

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/opencrm/backend/internal/domain/shared"
)

// Envelope is the wire form of an integration event. The header is kept
// outside the payload because several events shadow the base "type" field.
type Envelope struct {
	EventID       uuid.UUID       `json:"event_id"`
	EventType     string          `json:"event_type"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   uuid.UUID       `json:"aggregate_id"`
	TenantID      uuid.UUID       `json:"tenant_id"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Payload       json.RawMessage `json:"payload"`
}

// EventSerializer encodes domain events into envelopes and decodes them back
// into their registered Go types
type EventSerializer struct {
	mu       sync.RWMutex
	registry map[string]reflect.Type // eventType -> struct type
}

// NewEventSerializer creates an empty serializer
func NewEventSerializer() *EventSerializer {
	return &EventSerializer{
		registry: make(map[string]reflect.Type),
	}
}

// Register maps an event type to the struct used to decode it
func (s *EventSerializer) Register(eventType string, eventInstance shared.DomainEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := reflect.TypeOf(eventInstance)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	s.registry[eventType] = t
}

// Encode wraps the event in an envelope
func (s *EventSerializer) Encode(event shared.DomainEvent) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", event.EventType(), err)
	}
	data, err := json.Marshal(Envelope{
		EventID:       event.EventID(),
		EventType:     event.EventType(),
		AggregateType: event.AggregateType(),
		AggregateID:   event.AggregateID(),
		TenantID:      event.TenantID(),
		OccurredAt:    event.OccurredAt().UTC(),
		Payload:       payload,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", event.EventType(), err)
	}
	return data, nil
}

// Decode rebuilds the typed event from an envelope
func (s *EventSerializer) Decode(data []byte) (shared.DomainEvent, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	s.mu.RLock()
	t, ok := s.registry[env.EventType]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown event type: %s", env.EventType)
	}

	ptr := reflect.New(t).Interface()
	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, ptr); err != nil {
			return nil, fmt.Errorf("unmarshal %s payload: %w", env.EventType, err)
		}
	}

	event, ok := ptr.(shared.DomainEvent)
	if !ok {
		return nil, fmt.Errorf("%s does not implement DomainEvent", t)
	}
	if m, ok := ptr.(interface{ Metadata() *shared.BaseDomainEvent }); ok {
		*m.Metadata() = shared.BaseDomainEvent{
			ID:            env.EventID,
			Type:          env.EventType,
			Timestamp:     env.OccurredAt,
			AggID:         env.AggregateID,
			AggType:       env.AggregateType,
			TenantIDValue: env.TenantID,
		}
	}
	return event, nil
}

// IsRegistered checks if an event type is registered
func (s *EventSerializer) IsRegistered(eventType string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.registry[eventType]
	return ok
}

// RegisteredTypes returns the registered event types in sorted order
func (s *EventSerializer) RegisteredTypes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	types := make([]string, 0, len(s.registry))
	for t := range s.registry {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
