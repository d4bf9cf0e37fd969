package messaging

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() Config {
	return Config{
		ConnectAttempts: 3,
		Reconnect:       Backoff{Initial: time.Millisecond, Max: 5 * time.Millisecond, Multiplier: 2},
		RetryBackoff:    Backoff{Initial: time.Millisecond, Max: 2 * time.Millisecond, Multiplier: 2},
		HandlerTimeout:  time.Second,
		MaxAttempts:     3,
		PublishTimeout:  200 * time.Millisecond,
	}
}

func newTestConn(t *testing.T, cfg Config) (*MemoryBus, *ConnectionManager) {
	t.Helper()
	bus := NewMemoryBus()
	conn := NewConnectionManager(cfg, bus, discardLogger())
	require.NoError(t, conn.DeclareExchange(context.Background(), conn.Config().Exchange, ExchangeTopic, false))
	t.Cleanup(func() { _ = conn.Close() })
	return bus, conn
}

func startConsumer(t *testing.T, c *Consumer) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	select {
	case <-c.Ready():
	case <-time.After(2 * time.Second):
		cancel()
		t.Fatal("consumer did not bind in time")
	}
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
}
