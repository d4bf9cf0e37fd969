package messaging

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type stagedRow struct {
	event     DomainEvent
	published bool
	attempts  int
	lastError string
}

type memoryEventLog struct {
	mu   sync.Mutex
	rows []*stagedRow
}

func (l *memoryEventLog) stage(t *testing.T, routingKey, partitionKey, postID string) DomainEvent {
	t.Helper()
	evt, err := NewEvent(routingKey, partitionKey, samplePayload{PostID: postID}, time.Now())
	require.NoError(t, err)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rows = append(l.rows, &stagedRow{event: evt})
	return evt
}

func (l *memoryEventLog) Pending(_ context.Context, limit, maxAttempts int) ([]StagedEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []StagedEvent
	for _, row := range l.rows {
		if row.published || (maxAttempts > 0 && row.attempts >= maxAttempts) {
			continue
		}
		out = append(out, StagedEvent{Event: row.event, Attempts: row.attempts})
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (l *memoryEventLog) MarkPublished(_ context.Context, eventID string, _ time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, row := range l.rows {
		if row.event.ID == eventID {
			row.published = true
		}
	}
	return nil
}

func (l *memoryEventLog) MarkFailed(_ context.Context, eventID, errMsg string, _ time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, row := range l.rows {
		if row.event.ID == eventID {
			row.attempts++
			row.lastError = errMsg
		}
	}
	return nil
}

type flakySender struct {
	mu         sync.Mutex
	failOnce   map[string]bool
	failAlways map[string]bool
	sent       []string
}

func (s *flakySender) PublishEvent(_ context.Context, evt DomainEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAlways[evt.ID] {
		return errors.New("message rejected")
	}
	if s.failOnce[evt.ID] {
		delete(s.failOnce, evt.ID)
		return errors.New("broker unavailable")
	}
	s.sent = append(s.sent, evt.ID)
	return nil
}

func (s *flakySender) sentIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sent...)
}

func TestRelayMarksOnlyDeliveredRecords(t *testing.T) {
	log := &memoryEventLog{}
	first := log.stage(t, "post.created", "p1", "p1")
	log.stage(t, "post.created", "p2", "p2")
	sender := &flakySender{failOnce: map[string]bool{first.ID: true}}
	relay := NewRelay(discardLogger(), log, sender, time.Hour, 10)

	n, err := relay.Flush(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, 1, log.rows[0].attempts)
	require.Equal(t, "broker unavailable", log.rows[0].lastError)
	require.False(t, log.rows[0].published)

	n, err = relay.Flush(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.True(t, log.rows[0].published)

	n, err = relay.Flush(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestRelayHoldsBackLaterEventsForFailedKey(t *testing.T) {
	log := &memoryEventLog{}
	created := log.stage(t, "post.created", "p1", "p1")
	deleted := log.stage(t, "post.deleted", "p1", "p1")
	other := log.stage(t, "post.created", "p2", "p2")
	sender := &flakySender{failOnce: map[string]bool{created.ID: true}}
	relay := NewRelay(discardLogger(), log, sender, time.Hour, 10)

	_, err := relay.Flush(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{other.ID}, sender.sentIDs())

	_, err = relay.Flush(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{other.ID, created.ID, deleted.ID}, sender.sentIDs())
}

func TestRelayParksRecordAfterMaxAttempts(t *testing.T) {
	log := &memoryEventLog{}
	poison := log.stage(t, "post.created", "p1", "p1")
	next := log.stage(t, "post.created", "p2", "p2")
	sender := &flakySender{failAlways: map[string]bool{poison.ID: true}}
	relay := NewRelay(discardLogger(), log, sender, time.Hour, 1, WithMaxAttempts(3))

	for i := 0; i < 3; i++ {
		n, err := relay.Flush(context.Background())
		require.NoError(t, err)
		require.Zero(t, n)
	}
	require.Empty(t, sender.sentIDs())
	require.Equal(t, 3, log.rows[0].attempts)

	n, err := relay.Flush(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, []string{next.ID}, sender.sentIDs())
	require.False(t, log.rows[0].published)
	require.Equal(t, 3, log.rows[0].attempts)
}

func TestRelayWithoutCapKeepsRetrying(t *testing.T) {
	log := &memoryEventLog{}
	poison := log.stage(t, "post.created", "p1", "p1")
	sender := &flakySender{failAlways: map[string]bool{poison.ID: true}}
	relay := NewRelay(discardLogger(), log, sender, time.Hour, 1, WithMaxAttempts(0))

	for i := 0; i < DefaultRelayMaxAttempts+2; i++ {
		_, err := relay.Flush(context.Background())
		require.NoError(t, err)
	}
	require.Equal(t, DefaultRelayMaxAttempts+2, log.rows[0].attempts)
}

func TestRelayKickPublishesBeforeNextTick(t *testing.T) {
	log := &memoryEventLog{}
	sender := &flakySender{failOnce: map[string]bool{}}
	relay := NewRelay(discardLogger(), log, sender, time.Hour, 10)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})

	evt := log.stage(t, "post.created", "p1", "p1")
	relay.Kick()

	require.Eventually(t, func() bool {
		ids := sender.sentIDs()
		return len(ids) == 1 && ids[0] == evt.ID
	}, time.Second, 5*time.Millisecond)
}

func TestRelayDeliversThroughBus(t *testing.T) {
	bus, conn := newTestConn(t, testConfig())
	log := &memoryEventLog{}
	evt := log.stage(t, "post.deleted", "p1", "p1")
	relay := NewRelay(discardLogger(), log, NewPublisher(conn, "post-service", discardLogger()), time.Hour, 10)

	n, err := relay.Flush(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)

	msgs := bus.Published(DefaultExchange)
	require.Len(t, msgs, 1)
	require.Equal(t, evt.ID, msgs[0].Headers[HeaderEventID])
	require.Equal(t, "p1", msgs[0].Key)
}
