package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

type Outcome uint8

const (
	Success Outcome = iota
	RetryableFailure
	Poison
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case RetryableFailure:
		return "retryable_failure"
	case Poison:
		return "poison"
	default:
		return "unknown"
	}
}

// Result is what a handler reports for one delivery.
type Result struct {
	Outcome Outcome
	Err     error
}

func Ack() Result { return Result{Outcome: Success} }

func Retry(err error) Result {
	if err == nil {
		err = errors.New("retry requested")
	}
	return Result{Outcome: RetryableFailure, Err: err}
}

func Reject(err error) Result {
	if err == nil {
		err = errors.New("rejected")
	}
	return Result{Outcome: Poison, Err: err}
}

type HandlerFunc func(ctx context.Context, evt DomainEvent) Result

type SubscribeOption func(*subscription)

// WithConcurrency runs n lanes for a subscription. Deliveries are assigned to
// lanes by partition, so events for one entity stay in order.
func WithConcurrency(n int) SubscribeOption {
	return func(s *subscription) {
		if n > 0 {
			s.lanes = n
		}
	}
}

// WithQueueName binds a durable named queue instead of an exclusive one.
func WithQueueName(name string) SubscribeOption {
	return func(s *subscription) {
		s.queue = name
		s.exclusive = false
	}
}

type subscription struct {
	pattern   string
	handler   HandlerFunc
	lanes     int
	queue     string
	exclusive bool
}

// Consumer binds one queue per subscription and runs each in its own loop.
type Consumer struct {
	conn        *ConnectionManager
	cfg         Config
	service     string
	deadLetters DeadLetterSink
	logger      *slog.Logger
	nowFn       func() time.Time

	mu        sync.Mutex
	subs      []*subscription
	bound     map[*subscription]bool
	ready     chan struct{}
	readyOnce sync.Once
	running   bool
}

func NewConsumer(conn *ConnectionManager, service string, deadLetters DeadLetterSink, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		conn:        conn,
		cfg:         conn.Config(),
		service:     service,
		deadLetters: deadLetters,
		logger:      logger,
		nowFn:       func() time.Time { return time.Now().UTC() },
		bound:       map[*subscription]bool{},
		ready:       make(chan struct{}),
	}
}

func (c *Consumer) Subscribe(pattern string, handler HandlerFunc, opts ...SubscribeOption) error {
	if err := validatePattern(pattern); err != nil {
		return err
	}
	if handler == nil {
		return fmt.Errorf("subscribe %s: nil handler", pattern)
	}
	sub := &subscription{
		pattern:   pattern,
		handler:   handler,
		lanes:     1,
		queue:     fmt.Sprintf("%s.%s.%s", c.service, pattern, uuid.NewString()),
		exclusive: true,
	}
	if c.cfg.DurableQueues {
		sub.queue = fmt.Sprintf("%s.%s", c.service, pattern)
		sub.exclusive = false
	}
	for _, opt := range opts {
		opt(sub)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return fmt.Errorf("subscribe %s: consumer already running", pattern)
	}
	c.subs = append(c.subs, sub)
	return nil
}

// Ready is closed once every subscription has bound its queue at least once.
func (c *Consumer) Ready() <-chan struct{} { return c.ready }

// Run blocks until ctx ends. Broken channels are re-bound with backoff.
// A consumer runs once at a time; a concurrent Run returns ErrConsumerRunning.
func (c *Consumer) Run(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return ErrConsumerRunning
	}
	c.running = true
	subs := append([]*subscription(nil), c.subs...)
	if len(subs) == 0 {
		c.markReady()
	}
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()

	g, gctx := errgroup.WithContext(ctx)
	for _, sub := range subs {
		g.Go(func() error { return c.runSubscription(gctx, sub) })
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (c *Consumer) runSubscription(ctx context.Context, sub *subscription) error {
	for attempt := 1; ; attempt++ {
		err := c.consume(ctx, sub)
		if ctx.Err() != nil {
			return nil
		}
		c.logger.Warn("subscription interrupted, re-binding",
			"module", "messaging",
			"layer", "consumer",
			"operation", "rebind",
			"pattern", sub.pattern,
			"attempt", attempt,
			"error", errString(err),
		)
		if err := sleepCtx(ctx, c.cfg.Reconnect.Delay(attempt)); err != nil {
			return nil
		}
	}
}

func (c *Consumer) consume(ctx context.Context, sub *subscription) error {
	ch, err := c.conn.EnsureChannel(ctx)
	if err != nil {
		return err
	}
	q, err := ch.Bind(ctx, Binding{Exchange: c.cfg.Exchange, Queue: sub.queue, Pattern: sub.pattern, Exclusive: sub.exclusive})
	if err != nil {
		c.conn.Invalidate(ch)
		return fmt.Errorf("bind %s: %w", sub.pattern, err)
	}
	defer q.Close()
	c.markBound(sub)
	c.logger.Info("subscription bound",
		"module", "messaging",
		"layer", "consumer",
		"operation", "bind",
		"outcome", "success",
		"pattern", sub.pattern,
		"queue", sub.queue,
		"lanes", sub.lanes,
	)

	if sub.lanes <= 1 {
		err = c.serial(ctx, sub, q)
	} else {
		err = c.laned(ctx, sub, q)
	}
	if err != nil && ctx.Err() == nil {
		c.conn.Invalidate(ch)
	}
	return err
}

func (c *Consumer) serial(ctx context.Context, sub *subscription, q Queue) error {
	for {
		d, err := q.Fetch(ctx)
		if err != nil {
			return err
		}
		if err := c.process(ctx, sub, q, d); err != nil {
			return err
		}
	}
}

func (c *Consumer) laned(ctx context.Context, sub *subscription, q Queue) error {
	g, gctx := errgroup.WithContext(ctx)
	lanes := make([]chan Delivery, sub.lanes)
	for i := range lanes {
		lane := make(chan Delivery)
		lanes[i] = lane
		g.Go(func() error {
			for d := range lane {
				if err := c.process(gctx, sub, q, d); err != nil {
					return err
				}
			}
			return nil
		})
	}
	g.Go(func() error {
		defer func() {
			for _, lane := range lanes {
				close(lane)
			}
		}()
		for {
			d, err := q.Fetch(gctx)
			if err != nil {
				return err
			}
			select {
			case lanes[d.Partition%len(lanes)] <- d:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})
	return g.Wait()
}

// process settles one delivery. It acks only after success or after the
// delivery reached the dead-letter sink; any returned error leaves the
// delivery unacknowledged for redelivery.
func (c *Consumer) process(ctx context.Context, sub *subscription, q Queue, d Delivery) error {
	firstSeen := c.nowFn()
	evt, err := Decode(d.Body)
	if err != nil {
		if err := c.deadLetter(ctx, sub, d, d.Headers[HeaderEventID], 1, firstSeen, err); err != nil {
			return err
		}
		return q.Ack(ctx, d)
	}

	for attempt := 1; ; attempt++ {
		res := c.invoke(ctx, sub.handler, evt)
		switch res.Outcome {
		case Success:
			c.logger.Debug("event handled",
				"module", "messaging",
				"layer", "consumer",
				"operation", "handle",
				"outcome", "success",
				"routing_key", evt.RoutingKey,
				"event_id", evt.ID,
				"attempts", attempt,
			)
			return q.Ack(ctx, d)
		case Poison:
			if err := c.deadLetter(ctx, sub, d, evt.ID, attempt, firstSeen, res.Err); err != nil {
				return err
			}
			return q.Ack(ctx, d)
		default:
			if attempt >= c.cfg.MaxAttempts {
				if err := c.deadLetter(ctx, sub, d, evt.ID, attempt, firstSeen, res.Err); err != nil {
					return err
				}
				return q.Ack(ctx, d)
			}
			c.logger.Warn("event handler failed, retrying",
				"module", "messaging",
				"layer", "consumer",
				"operation", "handle",
				"outcome", "retry",
				"routing_key", evt.RoutingKey,
				"event_id", evt.ID,
				"attempt", attempt,
				"error", errString(res.Err),
			)
			if err := sleepCtx(ctx, c.cfg.RetryBackoff.Delay(attempt)); err != nil {
				return err
			}
		}
	}
}

func (c *Consumer) invoke(ctx context.Context, handler HandlerFunc, evt DomainEvent) (res Result) {
	hctx, cancel := context.WithTimeout(ctx, c.cfg.HandlerTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			res = Reject(fmt.Errorf("handler panic: %v", r))
		}
	}()
	res = handler(hctx, evt)
	if res.Outcome == RetryableFailure && res.Err == nil {
		res.Err = errors.New("retry requested")
	}
	return res
}

func (c *Consumer) deadLetter(ctx context.Context, sub *subscription, d Delivery, eventID string, attempts int, firstSeen time.Time, cause error) error {
	if c.deadLetters == nil {
		return fmt.Errorf("no dead-letter sink for %s: %w", sub.pattern, cause)
	}
	letter := DeadLetter{
		EventID:      eventID,
		RoutingKey:   d.RoutingKey,
		Queue:        sub.queue,
		ErrorSummary: summarize(cause),
		Attempts:     attempts,
		FirstSeenAt:  firstSeen,
		LastErrorAt:  c.nowFn(),
		Body:         d.Body,
	}
	if err := c.deadLetters.DeadLetter(ctx, letter); err != nil {
		c.logger.Error("dead-letter publish failed",
			"module", "messaging",
			"layer", "consumer",
			"operation", "dead_letter",
			"outcome", "failure",
			"event_id", eventID,
			"error", err.Error(),
		)
		return err
	}
	return nil
}

func (c *Consumer) markBound(sub *subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bound[sub] {
		return
	}
	c.bound[sub] = true
	if len(c.bound) == len(c.subs) {
		c.markReady()
	}
}

func (c *Consumer) markReady() {
	c.readyOnce.Do(func() { close(c.ready) })
}

func summarize(err error) string {
	msg := errString(err)
	if len(msg) > 512 {
		msg = msg[:512]
	}
	return strings.TrimSpace(msg)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
