package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"
)

// DeadLetterExchange names the exchange that receives deliveries no handler
// could apply.
func DeadLetterExchange(exchange string) string { return exchange + ".dlq" }

type DeadLetter struct {
	EventID      string
	RoutingKey   string
	Queue        string
	ErrorSummary string
	Attempts     int
	FirstSeenAt  time.Time
	LastErrorAt  time.Time
	Body         []byte
}

type DeadLetterSink interface {
	DeadLetter(ctx context.Context, letter DeadLetter) error
}

// BusDeadLetterSink republishes dead letters, body unchanged, on the dlq
// exchange with the failure details in headers.
type BusDeadLetterSink struct {
	conn     *ConnectionManager
	exchange string
	durable  bool
	logger   *slog.Logger

	mu       sync.Mutex
	declared bool
}

func NewBusDeadLetterSink(conn *ConnectionManager, logger *slog.Logger) *BusDeadLetterSink {
	if logger == nil {
		logger = slog.Default()
	}
	cfg := conn.Config()
	return &BusDeadLetterSink{
		conn:     conn,
		exchange: DeadLetterExchange(cfg.Exchange),
		durable:  true,
		logger:   logger,
	}
}

func (s *BusDeadLetterSink) Exchange() string { return s.exchange }

func (s *BusDeadLetterSink) DeadLetter(ctx context.Context, letter DeadLetter) error {
	if err := s.declare(ctx); err != nil {
		return err
	}
	ch, err := s.conn.EnsureChannel(ctx)
	if err != nil {
		return err
	}
	msg := Message{
		RoutingKey: letter.RoutingKey,
		Key:        letter.EventID,
		Body:       letter.Body,
		Headers: map[string]string{
			HeaderEventID:   letter.EventID,
			HeaderQueue:     letter.Queue,
			HeaderError:     letter.ErrorSummary,
			HeaderAttempts:  strconv.Itoa(letter.Attempts),
			HeaderFirstSeen: letter.FirstSeenAt.UTC().Format(time.RFC3339Nano),
		},
		Time: letter.LastErrorAt,
	}
	if msg.RoutingKey == "" {
		msg.RoutingKey = "unroutable"
	}
	if err := ch.Publish(ctx, s.exchange, msg); err != nil {
		s.conn.Invalidate(ch)
		return fmt.Errorf("%w: dead letter %s: %v", ErrPublish, letter.EventID, err)
	}
	s.logger.WarnContext(ctx, "event dead-lettered",
		"module", "messaging",
		"layer", "dead_letter",
		"operation", "dead_letter",
		"outcome", "success",
		"event_id", letter.EventID,
		"routing_key", letter.RoutingKey,
		"queue", letter.Queue,
		"attempts", letter.Attempts,
		"error", letter.ErrorSummary,
	)
	return nil
}

func (s *BusDeadLetterSink) declare(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.declared {
		return nil
	}
	if err := s.conn.DeclareExchange(ctx, s.exchange, ExchangeTopic, s.durable); err != nil {
		return err
	}
	s.declared = true
	return nil
}

// ReadDeadLetter rebuilds a DeadLetter from a message on the dlq exchange.
func ReadDeadLetter(d Delivery) DeadLetter {
	attempts, _ := strconv.Atoi(d.Headers[HeaderAttempts])
	firstSeen, _ := time.Parse(time.RFC3339Nano, d.Headers[HeaderFirstSeen])
	return DeadLetter{
		EventID:      d.Headers[HeaderEventID],
		RoutingKey:   d.RoutingKey,
		Queue:        d.Headers[HeaderQueue],
		ErrorSummary: d.Headers[HeaderError],
		Attempts:     attempts,
		FirstSeenAt:  firstSeen,
		LastErrorAt:  d.Time,
		Body:         d.Body,
	}
}

type MemoryDeadLetterSink struct {
	mu      sync.Mutex
	letters []DeadLetter
}

func NewMemoryDeadLetterSink() *MemoryDeadLetterSink {
	return &MemoryDeadLetterSink{}
}

func (s *MemoryDeadLetterSink) DeadLetter(_ context.Context, letter DeadLetter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.letters = append(s.letters, letter)
	return nil
}

func (s *MemoryDeadLetterSink) Letters() []DeadLetter {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]DeadLetter, len(s.letters))
	copy(out, s.letters)
	return out
}
