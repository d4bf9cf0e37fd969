package ports

import (
	"context"

	"github.com/viralforge/socmed/platform/messaging"
	"github.com/viralforge/socmed/services/post-service/internal/domain"
)

// PostRepository writes a post and, when evt is non-nil, stages evt in the
// outbox within the same transaction.
type PostRepository interface {
	Create(ctx context.Context, post domain.Post, evt *messaging.DomainEvent) error
	Get(ctx context.Context, id string) (domain.Post, error)
	List(ctx context.Context, offset, limit int) ([]domain.Post, int64, error)
	Update(ctx context.Context, post domain.Post, evt *messaging.DomainEvent) error
	Delete(ctx context.Context, id string, evt *messaging.DomainEvent) error
}

type OutboxRepository interface {
	messaging.EventLog
}
