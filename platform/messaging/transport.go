package messaging

import (
	"context"
	"time"
)

type ExchangeKind string

const ExchangeTopic ExchangeKind = "topic"

const (
	HeaderRoutingKey = "x-routing-key"
	HeaderEventID    = "x-event-id"
	HeaderQueue      = "x-queue"
	HeaderError      = "x-error"
	HeaderAttempts   = "x-attempts"
	HeaderFirstSeen  = "x-first-seen"
)

type Message struct {
	RoutingKey string
	// Key selects the partition; messages with the same key keep their order.
	Key     string
	Body    []byte
	Headers map[string]string
	Time    time.Time
}

type Delivery struct {
	Message
	Queue     string
	Partition int
	Offset    int64

	token any
}

// Binding attaches a queue to an exchange through a routing-key pattern.
// Exclusive queues live only as long as their consumer.
type Binding struct {
	Exchange  string
	Queue     string
	Pattern   string
	Exclusive bool
}

// Channel is one open session on the bus.
type Channel interface {
	DeclareExchange(ctx context.Context, name string, kind ExchangeKind, durable bool) error
	Publish(ctx context.Context, exchange string, msg Message) error
	Bind(ctx context.Context, binding Binding) (Queue, error)
	Close() error
}

type Queue interface {
	Fetch(ctx context.Context) (Delivery, error)
	Ack(ctx context.Context, d Delivery) error
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context) (Channel, error)
}

type DialerFunc func(ctx context.Context) (Channel, error)

func (f DialerFunc) Dial(ctx context.Context) (Channel, error) { return f(ctx) }
