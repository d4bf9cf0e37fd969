package messaging

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// StagedEvent is an event written to an outbox in the same transaction as the
// state change it describes.
type StagedEvent struct {
	Event    DomainEvent
	Attempts int
}

// EventLog is the outbox seen by the relay. Pending returns unpublished
// records in commit order, leaving out records that already failed
// maxAttempts times; maxAttempts <= 0 returns every unpublished record.
type EventLog interface {
	Pending(ctx context.Context, limit, maxAttempts int) ([]StagedEvent, error)
	MarkPublished(ctx context.Context, eventID string, at time.Time) error
	MarkFailed(ctx context.Context, eventID string, errMsg string, at time.Time) error
}

type EventSender interface {
	PublishEvent(ctx context.Context, evt DomainEvent) error
}

// DefaultRelayMaxAttempts is how many failed publishes a record gets before
// the relay parks it.
const DefaultRelayMaxAttempts = 20

// RelayOption tunes a Relay.
type RelayOption func(*Relay)

// WithMaxAttempts sets the publish attempts after which a record is parked.
// Zero or less keeps retrying forever.
func WithMaxAttempts(n int) RelayOption {
	return func(r *Relay) { r.maxAttempts = n }
}

// Relay drains an EventLog onto the bus. A record is marked published only
// after the bus accepted it, so a crash between commit and publish delays the
// event instead of losing it. A record that keeps failing is parked once it
// reaches the attempt cap: it stays in the outbox unpublished but no longer
// holds up newer records.
type Relay struct {
	logger      *slog.Logger
	log         EventLog
	sender      EventSender
	interval    time.Duration
	batchSize   int
	maxAttempts int
	kick        chan struct{}
	nowFn       func() time.Time
}

func NewRelay(logger *slog.Logger, log EventLog, sender EventSender, interval time.Duration, batchSize int, opts ...RelayOption) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	r := &Relay{
		logger:      logger,
		log:         log,
		sender:      sender,
		interval:    interval,
		batchSize:   batchSize,
		maxAttempts: DefaultRelayMaxAttempts,
		kick:        make(chan struct{}, 1),
		nowFn:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Kick wakes the relay ahead of its next tick. It never blocks.
func (r *Relay) Kick() {
	select {
	case r.kick <- struct{}{}:
	default:
	}
}

func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		if _, err := r.Flush(ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.logger.ErrorContext(ctx, "outbox relay iteration failed",
				"module", "messaging",
				"layer", "relay",
				"operation", "flush",
				"outcome", "failure",
				"error", err.Error(),
			)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-r.kick:
		}
	}
}

// Flush publishes one batch and reports how many records were delivered.
// After a failure, later records for the same partition key wait for the
// next pass so per-entity order is kept.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	staged, err := r.log.Pending(ctx, r.batchSize, r.maxAttempts)
	if err != nil {
		return 0, err
	}
	blocked := map[string]bool{}
	published := 0
	for _, rec := range staged {
		key := rec.Event.PartitionKey
		if key != "" && blocked[key] {
			continue
		}
		if err := r.sender.PublishEvent(ctx, rec.Event); err != nil {
			if key != "" {
				blocked[key] = true
			}
			if merr := r.log.MarkFailed(ctx, rec.Event.ID, err.Error(), r.nowFn()); merr != nil {
				return published, merr
			}
			r.logger.WarnContext(ctx, "outbox publish failed",
				"module", "messaging",
				"layer", "relay",
				"operation", "publish",
				"outcome", "failure",
				"event_id", rec.Event.ID,
				"routing_key", rec.Event.RoutingKey,
				"attempts", rec.Attempts+1,
				"error", err.Error(),
			)
			if r.maxAttempts > 0 && rec.Attempts+1 >= r.maxAttempts {
				r.logger.ErrorContext(ctx, "outbox record parked",
					"module", "messaging",
					"layer", "relay",
					"operation", "publish",
					"outcome", "parked",
					"event_id", rec.Event.ID,
					"routing_key", rec.Event.RoutingKey,
					"partition_key", key,
					"attempts", rec.Attempts+1,
				)
			}
			continue
		}
		if err := r.log.MarkPublished(ctx, rec.Event.ID, r.nowFn()); err != nil {
			return published, err
		}
		published++
	}
	return published, nil
}
