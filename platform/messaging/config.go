package messaging

import "time"

const DefaultExchange = "socmed_events"

type Config struct {
	Brokers           []string
	Exchange          string
	Durable           bool
	Partitions        int
	ReplicationFactor int
	DialTimeout       time.Duration
	// ConnectAttempts bounds the startup dial loop in Connect.
	ConnectAttempts int
	Reconnect       Backoff

	DurableQueues  bool
	HandlerTimeout time.Duration
	MaxAttempts    int
	RetryBackoff   Backoff
	PublishTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Exchange == "" {
		c.Exchange = DefaultExchange
	}
	if c.Partitions <= 0 {
		c.Partitions = 3
	}
	if c.ReplicationFactor <= 0 {
		c.ReplicationFactor = 1
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.ConnectAttempts <= 0 {
		c.ConnectAttempts = 5
	}
	if c.Reconnect.Initial <= 0 {
		c.Reconnect = DefaultBackoff()
	}
	if c.HandlerTimeout <= 0 {
		c.HandlerTimeout = 30 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.RetryBackoff.Initial <= 0 {
		c.RetryBackoff = Backoff{Initial: 100 * time.Millisecond, Max: 5 * time.Second, Multiplier: 2, Jitter: true}
	}
	if c.PublishTimeout <= 0 {
		c.PublishTimeout = 5 * time.Second
	}
	return c
}
