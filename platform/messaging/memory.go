package messaging

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"hash/fnv"
	"maps"
	"slices"
	"sync"
)

// MemoryBus is an in-process topic exchange. It backs tests and the
// single-process dev mode (messaging.driver: memory).
type MemoryBus struct {
	partitions int

	mu        sync.Mutex
	exchanges map[string]*memoryExchange
	queues    map[string]*memoryQueue
	channels  map[*memoryChannel]struct{}
	published map[string][]Message
	dialErrs  []error
	dials     int
}

type memoryExchange struct {
	kind    ExchangeKind
	durable bool
}

type memoryQueue struct {
	name      string
	exchange  string
	pattern   string
	exclusive bool

	mu       sync.Mutex
	ready    []Delivery
	inflight map[int64]Delivery
	signal   chan struct{}
	next     int64
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		partitions: 4,
		exchanges:  map[string]*memoryExchange{},
		queues:     map[string]*memoryQueue{},
		channels:   map[*memoryChannel]struct{}{},
		published:  map[string][]Message{},
	}
}

// FailDials makes the next len(errs) dials fail with the given errors.
func (b *MemoryBus) FailDials(errs ...error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dialErrs = append(b.dialErrs, errs...)
}

func (b *MemoryBus) Dials() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dials
}

// Disconnect closes every open channel, as a broker restart would. Durable
// queues keep their bindings and messages.
func (b *MemoryBus) Disconnect() {
	b.mu.Lock()
	open := make([]*memoryChannel, 0, len(b.channels))
	for ch := range b.channels {
		open = append(open, ch)
	}
	b.mu.Unlock()
	for _, ch := range open {
		_ = ch.Close()
	}
}

// Published returns every message accepted by the named exchange.
func (b *MemoryBus) Published(exchange string) []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Message, len(b.published[exchange]))
	copy(out, b.published[exchange])
	return out
}

func (b *MemoryBus) HasExchange(name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.exchanges[name]
	return ok
}

func (b *MemoryBus) Dial(ctx context.Context) (Channel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dials++
	if len(b.dialErrs) > 0 {
		err := b.dialErrs[0]
		b.dialErrs = b.dialErrs[1:]
		return nil, err
	}
	ch := &memoryChannel{bus: b, done: make(chan struct{})}
	b.channels[ch] = struct{}{}
	return ch, nil
}

func (b *MemoryBus) partitionOf(key string) int {
	if key == "" {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(b.partitions))
}

type memoryChannel struct {
	bus  *MemoryBus
	once sync.Once
	done chan struct{}
}

func (c *memoryChannel) isClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *memoryChannel) DeclareExchange(_ context.Context, name string, kind ExchangeKind, durable bool) error {
	if c.isClosed() {
		return ErrChannelClosed
	}
	c.bus.mu.Lock()
	defer c.bus.mu.Unlock()
	if existing, ok := c.bus.exchanges[name]; ok {
		if existing.kind != kind || existing.durable != durable {
			return fmt.Errorf("exchange %s redeclared with different properties", name)
		}
		return nil
	}
	c.bus.exchanges[name] = &memoryExchange{kind: kind, durable: durable}
	return nil
}

func (c *memoryChannel) Publish(ctx context.Context, exchange string, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.isClosed() {
		return ErrChannelClosed
	}
	c.bus.mu.Lock()
	if _, ok := c.bus.exchanges[exchange]; !ok {
		c.bus.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownExchange, exchange)
	}
	msg = cloneMessage(msg)
	c.bus.published[exchange] = append(c.bus.published[exchange], msg)
	var targets []*memoryQueue
	for _, q := range c.bus.queues {
		if q.exchange == exchange && MatchRoutingKey(q.pattern, msg.RoutingKey) {
			targets = append(targets, q)
		}
	}
	partition := c.bus.partitionOf(msg.Key)
	c.bus.mu.Unlock()

	for _, q := range targets {
		q.enqueue(cloneMessage(msg), partition)
	}
	return nil
}

func (c *memoryChannel) Bind(_ context.Context, binding Binding) (Queue, error) {
	if c.isClosed() {
		return nil, ErrChannelClosed
	}
	if err := validatePattern(binding.Pattern); err != nil {
		return nil, err
	}
	c.bus.mu.Lock()
	defer c.bus.mu.Unlock()
	if _, ok := c.bus.exchanges[binding.Exchange]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownExchange, binding.Exchange)
	}
	q, ok := c.bus.queues[binding.Queue]
	if !ok {
		q = &memoryQueue{
			name:      binding.Queue,
			exchange:  binding.Exchange,
			pattern:   binding.Pattern,
			exclusive: binding.Exclusive,
			inflight:  map[int64]Delivery{},
			signal:    make(chan struct{}),
		}
		c.bus.queues[binding.Queue] = q
	}
	return &memoryQueueHandle{bus: c.bus, ch: c, q: q}, nil
}

func (c *memoryChannel) Close() error {
	c.once.Do(func() {
		close(c.done)
		c.bus.mu.Lock()
		delete(c.bus.channels, c)
		c.bus.mu.Unlock()
	})
	return nil
}

func (q *memoryQueue) enqueue(msg Message, partition int) {
	q.mu.Lock()
	d := Delivery{Message: msg, Queue: q.name, Partition: partition, Offset: q.next}
	q.next++
	q.ready = append(q.ready, d)
	close(q.signal)
	q.signal = make(chan struct{})
	q.mu.Unlock()
}

type memoryQueueHandle struct {
	bus  *MemoryBus
	ch   *memoryChannel
	q    *memoryQueue
	once sync.Once
}

func (h *memoryQueueHandle) Fetch(ctx context.Context) (Delivery, error) {
	for {
		if h.ch.isClosed() {
			return Delivery{}, ErrChannelClosed
		}
		h.q.mu.Lock()
		if len(h.q.ready) > 0 {
			d := h.q.ready[0]
			h.q.ready = h.q.ready[1:]
			h.q.inflight[d.Offset] = d
			h.q.mu.Unlock()
			d.token = h.q
			return d, nil
		}
		wait := h.q.signal
		h.q.mu.Unlock()

		select {
		case <-ctx.Done():
			return Delivery{}, ctx.Err()
		case <-h.ch.done:
			return Delivery{}, ErrChannelClosed
		case <-wait:
		}
	}
}

func (h *memoryQueueHandle) Ack(_ context.Context, d Delivery) error {
	if h.ch.isClosed() {
		return ErrChannelClosed
	}
	h.q.mu.Lock()
	defer h.q.mu.Unlock()
	if _, ok := h.q.inflight[d.Offset]; !ok {
		return fmt.Errorf("ack unknown delivery %d on %s", d.Offset, h.q.name)
	}
	delete(h.q.inflight, d.Offset)
	return nil
}

// Close drops exclusive queues. Durable queues put unacknowledged deliveries
// back at the head so the next consumer sees them again.
func (h *memoryQueueHandle) Close() error {
	h.once.Do(func() {
		if h.q.exclusive {
			h.bus.mu.Lock()
			delete(h.bus.queues, h.q.name)
			h.bus.mu.Unlock()
			return
		}
		h.q.mu.Lock()
		pending := make([]Delivery, 0, len(h.q.inflight)+len(h.q.ready))
		for _, d := range h.q.inflight {
			pending = append(pending, d)
		}
		slices.SortFunc(pending, func(a, b Delivery) int { return cmp.Compare(a.Offset, b.Offset) })
		h.q.inflight = map[int64]Delivery{}
		h.q.ready = append(pending, h.q.ready...)
		h.q.mu.Unlock()
	})
	return nil
}

func cloneMessage(msg Message) Message {
	msg.Body = bytes.Clone(msg.Body)
	msg.Headers = maps.Clone(msg.Headers)
	return msg
}
