package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

type exchangeDecl struct {
	kind    ExchangeKind
	durable bool
}

// ConnectionManager owns the single live channel to the bus. Every publisher
// and consumer in a process obtains its channel here, so a reconnect is shared.
type ConnectionManager struct {
	cfg    Config
	dialer Dialer
	logger *slog.Logger

	mu        sync.Mutex
	ch        Channel
	exchanges map[string]exchangeDecl
	order     []string
	closed    bool
}

func NewConnectionManager(cfg Config, dialer Dialer, logger *slog.Logger) *ConnectionManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConnectionManager{
		cfg:       cfg.withDefaults(),
		dialer:    dialer,
		logger:    logger,
		exchanges: map[string]exchangeDecl{},
	}
}

func (m *ConnectionManager) Config() Config { return m.cfg }

// Connect dials with a bounded number of attempts. Callers treat the returned
// ErrConnection as fatal.
func (m *ConnectionManager) Connect(ctx context.Context) (Channel, error) {
	var lastErr error
	for attempt := 1; attempt <= m.cfg.ConnectAttempts; attempt++ {
		ch, err := m.tryDial(ctx)
		if err == nil {
			return ch, nil
		}
		if errors.Is(err, ErrClosed) {
			return nil, err
		}
		lastErr = err
		m.logger.Warn("broker dial failed",
			"module", "messaging",
			"layer", "connection",
			"operation", "connect",
			"attempt", attempt,
			"error", err.Error(),
		)
		if attempt == m.cfg.ConnectAttempts {
			break
		}
		if err := sleepCtx(ctx, m.cfg.Reconnect.Delay(attempt)); err != nil {
			lastErr = err
			break
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrConnection, lastErr)
}

// EnsureChannel returns the live channel, re-dialing with backoff until ctx
// ends. Exchanges declared before the outage are declared again.
func (m *ConnectionManager) EnsureChannel(ctx context.Context) (Channel, error) {
	for attempt := 1; ; attempt++ {
		ch, err := m.tryDial(ctx)
		if err == nil {
			if attempt > 1 {
				m.logger.Info("broker channel restored",
					"module", "messaging",
					"layer", "connection",
					"operation", "reconnect",
					"outcome", "success",
					"attempts", attempt,
				)
			}
			return ch, nil
		}
		if errors.Is(err, ErrClosed) {
			return nil, err
		}
		m.logger.Warn("broker reconnect failed",
			"module", "messaging",
			"layer", "connection",
			"operation", "reconnect",
			"attempt", attempt,
			"error", err.Error(),
		)
		if serr := sleepCtx(ctx, m.cfg.Reconnect.Delay(attempt)); serr != nil {
			return nil, fmt.Errorf("%w: %v", ErrConnection, err)
		}
	}
}

func (m *ConnectionManager) tryDial(ctx context.Context) (Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	if m.ch != nil {
		return m.ch, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ch, err := m.dialer.Dial(ctx)
	if err != nil {
		return nil, err
	}
	for _, name := range m.order {
		decl := m.exchanges[name]
		if err := ch.DeclareExchange(ctx, name, decl.kind, decl.durable); err != nil {
			_ = ch.Close()
			return nil, fmt.Errorf("redeclare exchange %s: %w", name, err)
		}
	}
	m.ch = ch
	return ch, nil
}

// DeclareExchange is idempotent. The declaration is remembered and replayed on
// every reconnect.
func (m *ConnectionManager) DeclareExchange(ctx context.Context, name string, kind ExchangeKind, durable bool) error {
	ch, err := m.EnsureChannel(ctx)
	if err != nil {
		return err
	}
	if err := ch.DeclareExchange(ctx, name, kind, durable); err != nil {
		m.Invalidate(ch)
		return fmt.Errorf("declare exchange %s: %w", name, err)
	}
	m.mu.Lock()
	if _, ok := m.exchanges[name]; !ok {
		m.order = append(m.order, name)
	}
	m.exchanges[name] = exchangeDecl{kind: kind, durable: durable}
	m.mu.Unlock()
	return nil
}

// Invalidate drops ch if it is still the live channel. Stale handles are ignored.
func (m *ConnectionManager) Invalidate(ch Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ch == nil || m.ch != ch {
		return
	}
	_ = m.ch.Close()
	m.ch = nil
}

func (m *ConnectionManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	if m.ch == nil {
		return nil
	}
	err := m.ch.Close()
	m.ch = nil
	return err
}
