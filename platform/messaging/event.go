package messaging

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const SchemaVersion = "1.0"

type EventType string

const (
	EventCreated EventType = "created"
	EventUpdated EventType = "updated"
	EventDeleted EventType = "deleted"
)

// DomainEvent is an immutable record of a committed state change. The payload
// bytes are owned by the event and only handed out as copies.
type DomainEvent struct {
	ID           string
	Type         EventType
	RoutingKey   string
	Source       string
	PartitionKey string
	EmittedAt    time.Time

	payload []byte
}

// NewEvent serializes payload once and stamps the event with a fresh id.
func NewEvent(routingKey, partitionKey string, payload any, emittedAt time.Time) (DomainEvent, error) {
	if err := ValidateRoutingKey(routingKey); err != nil {
		return DomainEvent{}, err
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return DomainEvent{}, fmt.Errorf("marshal %s payload: %w", routingKey, err)
	}
	return DomainEvent{
		ID:           uuid.NewString(),
		Type:         TypeOf(routingKey),
		RoutingKey:   routingKey,
		PartitionKey: partitionKey,
		EmittedAt:    emittedAt.UTC(),
		payload:      raw,
	}, nil
}

// RestoreEvent rebuilds an event staged earlier, e.g. from an outbox row.
func RestoreEvent(id, routingKey, partitionKey, source string, payload []byte, emittedAt time.Time) DomainEvent {
	return DomainEvent{
		ID:           id,
		Type:         TypeOf(routingKey),
		RoutingKey:   routingKey,
		Source:       source,
		PartitionKey: partitionKey,
		EmittedAt:    emittedAt.UTC(),
		payload:      bytes.Clone(payload),
	}
}

// TypeOf derives the event type from the last word of the routing key.
func TypeOf(routingKey string) EventType {
	if i := strings.LastIndexByte(routingKey, '.'); i >= 0 {
		return EventType(routingKey[i+1:])
	}
	return EventType(routingKey)
}

func (e DomainEvent) Payload() []byte {
	return bytes.Clone(e.payload)
}

func (e DomainEvent) Decode(v any) error {
	if err := json.Unmarshal(e.payload, v); err != nil {
		return fmt.Errorf("%w: %s payload: %v", ErrDecode, e.RoutingKey, err)
	}
	return nil
}

func (e DomainEvent) WithSource(source string) DomainEvent {
	e.Source = source
	return e
}

type envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	RoutingKey    string          `json:"routing_key"`
	OccurredAt    time.Time       `json:"occurred_at"`
	SourceService string          `json:"source_service"`
	SchemaVersion string          `json:"schema_version"`
	PartitionKey  string          `json:"partition_key,omitempty"`
	Data          json.RawMessage `json:"data"`
}

// Encode produces the canonical UTF-8 JSON body carried on the bus.
func Encode(evt DomainEvent) ([]byte, error) {
	data := evt.payload
	if len(data) == 0 {
		data = []byte("null")
	}
	return json.Marshal(envelope{
		EventID:       evt.ID,
		EventType:     string(evt.Type),
		RoutingKey:    evt.RoutingKey,
		OccurredAt:    evt.EmittedAt.UTC(),
		SourceService: evt.Source,
		SchemaVersion: SchemaVersion,
		PartitionKey:  evt.PartitionKey,
		Data:          data,
	})
}

func Decode(body []byte) (DomainEvent, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return DomainEvent{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if strings.TrimSpace(env.EventID) == "" || strings.TrimSpace(env.RoutingKey) == "" || env.OccurredAt.IsZero() {
		return DomainEvent{}, fmt.Errorf("%w: missing event_id, routing_key or occurred_at", ErrDecode)
	}
	if len(env.Data) == 0 || bytes.Equal(env.Data, []byte("null")) {
		return DomainEvent{}, fmt.Errorf("%w: empty data", ErrDecode)
	}
	evt := RestoreEvent(env.EventID, env.RoutingKey, env.PartitionKey, env.SourceService, env.Data, env.OccurredAt)
	if env.EventType != "" {
		evt.Type = EventType(env.EventType)
	}
	return evt, nil
}
