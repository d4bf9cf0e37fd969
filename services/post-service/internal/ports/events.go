package ports

import (
	"context"

	"github.com/viralforge/socmed/platform/messaging"
)

type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload any, opts ...messaging.PublishOption)
}

// RelayTrigger wakes the outbox relay after a commit.
type RelayTrigger interface {
	Kick()
}

type CacheInvalidator interface {
	Invalidate(ctx context.Context, entityID string)
}
