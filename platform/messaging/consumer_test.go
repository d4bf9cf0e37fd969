package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu   sync.Mutex
	keys []string
	ids  map[string][]string
}

func newRecorder() *recorder { return &recorder{ids: map[string][]string{}} }

func (r *recorder) record(evt DomainEvent) {
	var p samplePayload
	_ = evt.Decode(&p)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, evt.RoutingKey)
	r.ids[evt.PartitionKey] = append(r.ids[evt.PartitionKey], p.PostID)
}

func (r *recorder) routingKeys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.keys...)
}

func TestConsumerDeliversMatchingEventsInOrder(t *testing.T) {
	_, conn := newTestConn(t, testConfig())
	rec := newRecorder()
	consumer := NewConsumer(conn, "search-service", NewMemoryDeadLetterSink(), discardLogger())
	require.NoError(t, consumer.Subscribe("post.*", func(_ context.Context, evt DomainEvent) Result {
		rec.record(evt)
		return Ack()
	}))
	startConsumer(t, consumer)

	pub := NewPublisher(conn, "post-service", discardLogger())
	ctx := context.Background()
	pub.Publish(ctx, "post.created", samplePayload{PostID: "p1"})
	pub.Publish(ctx, "comment.created", samplePayload{PostID: "p1"})
	pub.Publish(ctx, "post.deleted", samplePayload{PostID: "p1"})

	require.Eventually(t, func() bool { return len(rec.routingKeys()) == 2 }, time.Second, 5*time.Millisecond)
	require.Equal(t, []string{"post.created", "post.deleted"}, rec.routingKeys())
}

func TestConsumerRetriesRetryableFailures(t *testing.T) {
	_, conn := newTestConn(t, testConfig())
	dlq := NewMemoryDeadLetterSink()
	var calls atomic.Int32
	consumer := NewConsumer(conn, "search-service", dlq, discardLogger())
	require.NoError(t, consumer.Subscribe("post.created", func(_ context.Context, _ DomainEvent) Result {
		if calls.Add(1) < 3 {
			return Retry(errors.New("store unavailable"))
		}
		return Ack()
	}))
	startConsumer(t, consumer)

	NewPublisher(conn, "post-service", discardLogger()).Publish(context.Background(), "post.created", samplePayload{PostID: "p1"})

	require.Eventually(t, func() bool { return calls.Load() == 3 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	require.EqualValues(t, 3, calls.Load())
	require.Empty(t, dlq.Letters())
}

func TestConsumerDeadLettersAfterMaxAttempts(t *testing.T) {
	_, conn := newTestConn(t, testConfig())
	dlq := NewMemoryDeadLetterSink()
	var calls atomic.Int32
	consumer := NewConsumer(conn, "search-service", dlq, discardLogger())
	require.NoError(t, consumer.Subscribe("post.created", func(_ context.Context, _ DomainEvent) Result {
		calls.Add(1)
		return Retry(errors.New("store unavailable"))
	}))
	startConsumer(t, consumer)

	NewPublisher(conn, "post-service", discardLogger()).Publish(context.Background(), "post.created", samplePayload{PostID: "p1"})

	require.Eventually(t, func() bool { return len(dlq.Letters()) == 1 }, time.Second, 5*time.Millisecond)
	letter := dlq.Letters()[0]
	require.Equal(t, 3, letter.Attempts)
	require.Equal(t, "post.created", letter.RoutingKey)
	require.Contains(t, letter.ErrorSummary, "store unavailable")
	require.EqualValues(t, 3, calls.Load())
}

func TestConsumerDeadLettersPoisonImmediately(t *testing.T) {
	_, conn := newTestConn(t, testConfig())
	dlq := NewMemoryDeadLetterSink()
	rec := newRecorder()
	consumer := NewConsumer(conn, "search-service", dlq, discardLogger())
	require.NoError(t, consumer.Subscribe("post.*", func(_ context.Context, evt DomainEvent) Result {
		var p samplePayload
		if err := evt.Decode(&p); err != nil || p.PostID == "" {
			return Reject(fmt.Errorf("missing postId"))
		}
		rec.record(evt)
		return Ack()
	}))
	startConsumer(t, consumer)

	pub := NewPublisher(conn, "post-service", discardLogger())
	ctx := context.Background()
	pub.Publish(ctx, "post.created", samplePayload{})
	pub.Publish(ctx, "post.created", samplePayload{PostID: "p2"})

	require.Eventually(t, func() bool { return len(rec.routingKeys()) == 1 }, time.Second, 5*time.Millisecond)
	letters := dlq.Letters()
	require.Len(t, letters, 1)
	require.Equal(t, 1, letters[0].Attempts)
}

func TestConsumerDeadLettersUndecodableBodies(t *testing.T) {
	_, conn := newTestConn(t, testConfig())
	dlq := NewMemoryDeadLetterSink()
	consumer := NewConsumer(conn, "search-service", dlq, discardLogger())
	require.NoError(t, consumer.Subscribe("post.*", func(context.Context, DomainEvent) Result { return Ack() }))
	startConsumer(t, consumer)

	ch, err := conn.EnsureChannel(context.Background())
	require.NoError(t, err)
	require.NoError(t, ch.Publish(context.Background(), DefaultExchange, Message{RoutingKey: "post.created", Body: []byte("{broken")}))

	require.Eventually(t, func() bool { return len(dlq.Letters()) == 1 }, time.Second, 5*time.Millisecond)
	require.Equal(t, []byte("{broken"), dlq.Letters()[0].Body)
}

func TestConsumerDeadLettersPanickingHandler(t *testing.T) {
	_, conn := newTestConn(t, testConfig())
	dlq := NewMemoryDeadLetterSink()
	consumer := NewConsumer(conn, "search-service", dlq, discardLogger())
	require.NoError(t, consumer.Subscribe("post.*", func(context.Context, DomainEvent) Result { panic("boom") }))
	startConsumer(t, consumer)

	NewPublisher(conn, "post-service", discardLogger()).Publish(context.Background(), "post.created", samplePayload{PostID: "p1"})

	require.Eventually(t, func() bool { return len(dlq.Letters()) == 1 }, time.Second, 5*time.Millisecond)
	require.Contains(t, dlq.Letters()[0].ErrorSummary, "boom")
}

func TestConsumerRebindsAfterDisconnect(t *testing.T) {
	cfg := testConfig()
	cfg.DurableQueues = true
	bus, conn := newTestConn(t, cfg)
	rec := newRecorder()
	consumer := NewConsumer(conn, "search-service", NewMemoryDeadLetterSink(), discardLogger())
	require.NoError(t, consumer.Subscribe("post.*", func(_ context.Context, evt DomainEvent) Result {
		rec.record(evt)
		return Ack()
	}))
	startConsumer(t, consumer)

	pub := NewPublisher(conn, "post-service", discardLogger())
	pub.Publish(context.Background(), "post.created", samplePayload{PostID: "p1"})
	require.Eventually(t, func() bool { return len(rec.routingKeys()) == 1 }, time.Second, 5*time.Millisecond)

	bus.Disconnect()
	evt, err := NewEvent("post.deleted", "p1", samplePayload{PostID: "p1"}, time.Now())
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return pub.PublishEvent(context.Background(), evt) == nil
	}, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool { return len(rec.routingKeys()) == 2 }, 2*time.Second, 5*time.Millisecond)
	require.Equal(t, []string{"post.created", "post.deleted"}, rec.routingKeys())
	require.GreaterOrEqual(t, bus.Dials(), 2)
}

func TestConsumerLanesKeepPerKeyOrder(t *testing.T) {
	_, conn := newTestConn(t, testConfig())
	rec := newRecorder()
	consumer := NewConsumer(conn, "search-service", NewMemoryDeadLetterSink(), discardLogger())
	require.NoError(t, consumer.Subscribe("post.*", func(_ context.Context, evt DomainEvent) Result {
		rec.record(evt)
		return Ack()
	}, WithConcurrency(4)))
	startConsumer(t, consumer)

	pub := NewPublisher(conn, "post-service", discardLogger())
	keys := []string{"a", "b", "c", "d", "e"}
	for i := 0; i < 4; i++ {
		for _, k := range keys {
			pub.Publish(context.Background(), "post.updated", samplePayload{PostID: fmt.Sprintf("%s-%d", k, i)}, WithPartitionKey(k))
		}
	}

	require.Eventually(t, func() bool { return len(rec.routingKeys()) == 20 }, 2*time.Second, 5*time.Millisecond)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	for _, k := range keys {
		require.Equal(t, []string{k + "-0", k + "-1", k + "-2", k + "-3"}, rec.ids[k])
	}
}

func TestSubscriptionsDoNotBlockEachOther(t *testing.T) {
	_, conn := newTestConn(t, testConfig())
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	rec := newRecorder()
	consumer := NewConsumer(conn, "media-service", NewMemoryDeadLetterSink(), discardLogger())
	require.NoError(t, consumer.Subscribe("post.created", func(ctx context.Context, _ DomainEvent) Result {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return Ack()
	}))
	require.NoError(t, consumer.Subscribe("post.deleted", func(_ context.Context, evt DomainEvent) Result {
		rec.record(evt)
		return Ack()
	}))
	startConsumer(t, consumer)

	pub := NewPublisher(conn, "post-service", discardLogger())
	pub.Publish(context.Background(), "post.created", samplePayload{PostID: "p1"})
	pub.Publish(context.Background(), "post.deleted", samplePayload{PostID: "p1"})

	require.Eventually(t, func() bool { return len(rec.routingKeys()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestSubscribeRejectsEmptyPattern(t *testing.T) {
	_, conn := newTestConn(t, testConfig())
	consumer := NewConsumer(conn, "search-service", nil, discardLogger())
	require.Error(t, consumer.Subscribe("", func(context.Context, DomainEvent) Result { return Ack() }))
}

func TestConsumerWithoutSubscriptionsRunsTwice(t *testing.T) {
	_, conn := newTestConn(t, testConfig())
	consumer := NewConsumer(conn, "search-service", nil, discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NotPanics(t, func() {
		require.NoError(t, consumer.Run(ctx))
		require.NoError(t, consumer.Run(ctx))
	})
	select {
	case <-consumer.Ready():
	default:
		t.Fatal("ready not closed")
	}
}

func TestConsumerRejectsConcurrentRun(t *testing.T) {
	_, conn := newTestConn(t, testConfig())
	consumer := NewConsumer(conn, "search-service", NewMemoryDeadLetterSink(), discardLogger())
	require.NoError(t, consumer.Subscribe("post.*", func(context.Context, DomainEvent) Result { return Ack() }))
	startConsumer(t, consumer)

	err := consumer.Run(context.Background())
	require.ErrorIs(t, err, ErrConsumerRunning)
}
