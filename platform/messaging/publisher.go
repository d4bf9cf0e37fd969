package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Publisher hands domain events to the shared exchange.
type Publisher struct {
	conn     *ConnectionManager
	exchange string
	source   string
	timeout  time.Duration
	logger   *slog.Logger
	nowFn    func() time.Time
}

type PublishOption func(*publishOptions)

type publishOptions struct {
	partitionKey string
}

// WithPartitionKey keeps events for the same entity on one partition.
func WithPartitionKey(key string) PublishOption {
	return func(o *publishOptions) { o.partitionKey = key }
}

func NewPublisher(conn *ConnectionManager, source string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	cfg := conn.Config()
	return &Publisher{
		conn:     conn,
		exchange: cfg.Exchange,
		source:   source,
		timeout:  cfg.PublishTimeout,
		logger:   logger,
		nowFn:    func() time.Time { return time.Now().UTC() },
	}
}

func (p *Publisher) Exchange() string { return p.exchange }

// Publish is fire-and-forget. A failed hand-off is logged and the channel is
// dropped so the next publish reconnects; the caller's write is unaffected.
func (p *Publisher) Publish(ctx context.Context, routingKey string, payload any, opts ...PublishOption) {
	var o publishOptions
	for _, opt := range opts {
		opt(&o)
	}
	evt, err := NewEvent(routingKey, o.partitionKey, payload, p.nowFn())
	if err == nil {
		err = p.PublishEvent(ctx, evt)
	}
	if err != nil {
		p.logger.WarnContext(ctx, "event publish failed",
			"module", "messaging",
			"layer", "publisher",
			"operation", "publish",
			"outcome", "failure",
			"routing_key", routingKey,
			"error", err.Error(),
		)
	}
}

// PublishEvent returns an error wrapping ErrPublish when the bus did not
// accept the event.
func (p *Publisher) PublishEvent(ctx context.Context, evt DomainEvent) error {
	if evt.Source == "" {
		evt = evt.WithSource(p.source)
	}
	body, err := Encode(evt)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", ErrPublish, evt.RoutingKey, err)
	}
	pctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	ch, err := p.conn.EnsureChannel(pctx)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrPublish, evt.RoutingKey, err)
	}
	msg := Message{
		RoutingKey: evt.RoutingKey,
		Key:        evt.PartitionKey,
		Body:       body,
		Headers:    map[string]string{HeaderEventID: evt.ID},
		Time:       evt.EmittedAt,
	}
	if err := ch.Publish(pctx, p.exchange, msg); err != nil {
		p.conn.Invalidate(ch)
		return fmt.Errorf("%w: %s: %v", ErrPublish, evt.RoutingKey, err)
	}
	p.logger.DebugContext(ctx, "event published",
		"module", "messaging",
		"layer", "publisher",
		"operation", "publish",
		"outcome", "success",
		"routing_key", evt.RoutingKey,
		"event_id", evt.ID,
	)
	return nil
}
