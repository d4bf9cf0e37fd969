package config

import (
	"context"

	"github.com/viralforge/socmed/platform/cache"
	"github.com/viralforge/socmed/platform/messaging"
)

// Dialer returns the bus transport for the configured driver. Every call with
// the memory driver yields a fresh bus private to the process.
func (m Messaging) Dialer() messaging.Dialer {
	if m.Driver == DriverMemory {
		return messaging.NewMemoryBus()
	}
	return messaging.NewKafkaDialer(m.BusConfig())
}

// OpenStore connects the cache store and returns it with its close func.
func (c Cache) OpenStore(ctx context.Context) (cache.Store, func() error, error) {
	if c.Driver == DriverMemory {
		return cache.NewMemoryStore(), func() error { return nil }, nil
	}
	client, err := cache.Connect(ctx, c.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	return cache.NewRedisStore(client), client.Close, nil
}
