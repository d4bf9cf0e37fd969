package events

import (
	"context"
	"errors"

	"github.com/viralforge/socmed/platform/contracts"
	"github.com/viralforge/socmed/platform/messaging"
	"github.com/viralforge/socmed/services/media-service/internal/application"
	"github.com/viralforge/socmed/services/media-service/internal/domain"
)

type Handlers struct {
	service *application.Service
}

func NewHandlers(service *application.Service) *Handlers {
	return &Handlers{service: service}
}

func (h *Handlers) Register(consumer *messaging.Consumer, lanes int, opts ...messaging.SubscribeOption) error {
	subOpts := append([]messaging.SubscribeOption{messaging.WithConcurrency(lanes)}, opts...)
	return consumer.Subscribe(contracts.PostDeleted, h.PostDeleted, subOpts...)
}

func (h *Handlers) PostDeleted(ctx context.Context, evt messaging.DomainEvent) messaging.Result {
	var p contracts.PostDeletedPayload
	if err := evt.Decode(&p); err != nil {
		return messaging.Reject(err)
	}
	if err := p.Validate(); err != nil {
		return messaging.Reject(err)
	}
	if len(p.MediaIDs) == 0 {
		return messaging.Ack()
	}
	meta := domain.EventMeta{ID: evt.ID, RoutingKey: evt.RoutingKey, EmittedAt: evt.EmittedAt}
	_, err := h.service.HandlePostDeleted(ctx, meta, p.PostID, p.AuthorID, p.MediaIDs)
	switch {
	case err == nil:
		return messaging.Ack()
	case errors.Is(err, domain.ErrInvalidInput):
		return messaging.Reject(err)
	default:
		return messaging.Retry(err)
	}
}
